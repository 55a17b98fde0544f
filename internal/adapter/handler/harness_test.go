package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shoe-store/internal/adapter/auth"
	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/core/service"
	"github.com/rl1809/shoe-store/internal/port/porttest"
)

const testSecret = "test-secret"

type harness struct {
	store    *porttest.Store
	cache    *porttest.Cache
	notifier *porttest.Notifier
	feed     *service.StockFeed
	verifier *auth.Verifier

	orders    *service.OrderService
	inventory *service.InventoryService
	server    *httptest.Server
}

func newHarness(t *testing.T, shoes ...domain.Shoe) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		store:    porttest.NewStore(shoes...),
		cache:    porttest.NewCache(),
		notifier: &porttest.Notifier{},
		feed:     service.NewStockFeed(100, logger),
		verifier: auth.NewVerifier(testSecret, "shoe-store"),
	}
	t.Cleanup(h.feed.Close)

	repos := service.Repositories{Shoes: h.store, Orders: h.store, Users: h.store}
	identity := auth.ContextProvider{}
	h.orders = service.NewOrderService(repos, h.cache, identity, h.feed, service.OrderConfig{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		Timeout:     time.Second,
		Pricing:     service.DefaultPricing(),
	}, logger)
	h.inventory = service.NewInventoryService(repos, porttest.Blobs{}, identity, h.feed, time.Second, logger)

	handler := NewHTTPHandler(HTTPDeps{
		Orders:        h.orders,
		Inventory:     h.inventory,
		Users:         service.NewUserService(repos, identity, time.Second, logger),
		Carts:         service.NewCartService(h.cache, time.Second),
		Notifier:      h.notifier,
		Verifier:      h.verifier,
		CheckoutRPS:   100,
		CheckoutBurst: 100,
		Logger:        logger,
	})
	h.server = httptest.NewServer(handler.Routes())
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) token(t *testing.T, email string) string {
	t.Helper()
	token, err := h.verifier.Issue(domain.Identity{Subject: "sub-" + email, Email: email, Name: email}, time.Hour)
	require.NoError(t, err)
	return token
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	session string
}

type decoded struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	Kind      string             `json:"kind"`
	Data      json.RawMessage    `json:"data"`
	Shortages []service.Shortage `json:"shortages"`
}

func (h *harness) do(t *testing.T, c call) (int, decoded) {
	t.Helper()

	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(c.method, h.server.URL+c.path, body)
	require.NoError(t, err)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.session != "" {
		req.Header.Set(cartSessionHeader, c.session)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out decoded
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func decodeData[T any](t *testing.T, d decoded) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(d.Data, &v))
	return v
}

func testShoe(id string, price int64, sizes ...domain.SizeStock) domain.Shoe {
	return domain.Shoe{ID: id, Name: "shoe " + id, Brand: "acme", Category: "running", Price: decimal.NewFromInt(price), Sizes: sizes}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
