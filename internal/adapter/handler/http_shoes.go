package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

const (
	watchWriteWait  = 10 * time.Second
	watchPongWait   = 60 * time.Second
	watchPingPeriod = watchPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type CreateShoeHTTPRequest struct {
	Name          string             `json:"name"`
	Brand         string             `json:"brand"`
	Category      string             `json:"category"`
	Description   string             `json:"description"`
	Alt           string             `json:"alt"`
	Price         decimal.Decimal    `json:"price"`
	DiscountPrice *decimal.Decimal   `json:"discount_price"`
	Sizes         []domain.SizeStock `json:"sizes"`
	ImageID       string             `json:"image_id"`
}

// ChangeHTTPRequest is one entry of a PATCH body, e.g.
// {"op": "price", "value": "120.00"}.
type ChangeHTTPRequest struct {
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value"`
}

type UpdateShoeHTTPRequest struct {
	Changes []ChangeHTTPRequest `json:"changes"`
}

func (h *HTTPHandler) QueryShoes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.ShoeQuery{
		IDs:        splitList(q["id"]),
		Brands:     splitList(q["brand"]),
		Categories: splitList(q["category"]),
	}
	if take := q.Get("take"); take != "" {
		n, err := strconv.Atoi(take)
		if err != nil {
			badRequest(w, "take must be a number")
			return
		}
		query.Take = n
	}

	shoes, err := h.inventory.Query(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, shoes)
}

func (h *HTTPHandler) PageShoes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			badRequest(w, "limit must be a number")
			return
		}
		limit = n
	}

	page, err := h.inventory.Page(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

func (h *HTTPHandler) DistinctShoes(w http.ResponseWriter, r *http.Request) {
	values, err := h.inventory.Distinct(r.Context(), domain.ShoeField(chi.URLParam(r, "field")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, values)
}

func (h *HTTPHandler) GetShoe(w http.ResponseWriter, r *http.Request) {
	shoe, err := h.inventory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, shoe)
}

func (h *HTTPHandler) ReadStock(w http.ResponseWriter, r *http.Request) {
	sizes, err := h.inventory.ReadStock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sizes)
}

func (h *HTTPHandler) CreateShoe(w http.ResponseWriter, r *http.Request) {
	var req CreateShoeHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	shoe, err := h.inventory.Create(r.Context(), domain.Shoe{
		Name:          req.Name,
		Brand:         req.Brand,
		Category:      req.Category,
		Description:   req.Description,
		Alt:           req.Alt,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Sizes:         req.Sizes,
		ImageID:       req.ImageID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, shoe)
}

func (h *HTTPHandler) UpdateShoe(w http.ResponseWriter, r *http.Request) {
	var req UpdateShoeHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	cmds, err := decodeChanges(req.Changes)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	shoe, err := h.inventory.Update(r.Context(), chi.URLParam(r, "id"), cmds...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, shoe)
}

func (h *HTTPHandler) DeleteShoe(w http.ResponseWriter, r *http.Request) {
	if err := h.inventory.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "shoe deleted"})
}

// WatchStock streams the current size list of a shoe followed by every
// committed change until the client goes away.
func (h *HTTPHandler) WatchStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// subscribe before reading so a change committed in between still arrives
	updates, err := h.notifier.SubscribeStock(ctx, id)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("subscribe stock %s: %w", id, err))
		return
	}

	sizes, err := h.inventory.ReadStock(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.logger.Warn("websocket upgrade failed", "shoe_id", id, "err", err)
		return
	}
	defer conn.Close()

	// reader: only pongs and close frames are expected
	conn.SetReadDeadline(time.Now().Add(watchPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeWatch(conn, domain.StockUpdate{ProductID: id, Sizes: sizes, At: time.Now()}); err != nil {
		return
	}

	ticker := time.NewTicker(watchPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(watchWriteWait))
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeWatch(conn, update); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeWatch(conn *websocket.Conn, update domain.StockUpdate) error {
	conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
	return conn.WriteJSON(update)
}

func decodeChanges(changes []ChangeHTTPRequest) ([]domain.UpdateCommand, error) {
	cmds := make([]domain.UpdateCommand, 0, len(changes))
	for _, c := range changes {
		cmd, err := decodeChange(c)
		if err != nil {
			return nil, fmt.Errorf("change %q: %w", c.Op, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func decodeChange(c ChangeHTTPRequest) (domain.UpdateCommand, error) {
	switch c.Op {
	case "name", "brand", "category", "description", "image":
		var s string
		if err := json.Unmarshal(c.Value, &s); err != nil {
			return nil, err
		}
		switch c.Op {
		case "name":
			return domain.SetName{Name: s}, nil
		case "brand":
			return domain.SetBrand{Brand: s}, nil
		case "category":
			return domain.SetCategory{Category: s}, nil
		case "description":
			return domain.SetDescription{Description: s}, nil
		default:
			return domain.SetImage{ImageID: s}, nil
		}
	case "price":
		var p decimal.Decimal
		if err := json.Unmarshal(c.Value, &p); err != nil {
			return nil, err
		}
		return domain.SetPrice{Price: p}, nil
	case "discount_price":
		var p *decimal.Decimal
		if err := json.Unmarshal(c.Value, &p); err != nil {
			return nil, err
		}
		return domain.SetDiscountPrice{Price: p}, nil
	case "sizes":
		var sizes []domain.SizeStock
		if err := json.Unmarshal(c.Value, &sizes); err != nil {
			return nil, err
		}
		return domain.SetSizes{Sizes: sizes}, nil
	}
	return nil, fmt.Errorf("unknown op")
}

// splitList accepts both repeated parameters and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
