package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rl1809/shoe-store/internal/adapter/auth"
	"github.com/rl1809/shoe-store/internal/core/service"
	"github.com/rl1809/shoe-store/internal/port"
)

const cartSessionHeader = "X-Cart-Session"

type HTTPHandler struct {
	orders    *service.OrderService
	inventory *service.InventoryService
	users     *service.UserService
	carts     *service.CartService
	notifier  port.StockNotifier
	verifier  *auth.Verifier
	limiter   *ipLimiter
	logger    *slog.Logger
}

type HTTPDeps struct {
	Orders    *service.OrderService
	Inventory *service.InventoryService
	Users     *service.UserService
	Carts     *service.CartService
	Notifier  port.StockNotifier
	Verifier  *auth.Verifier
	// CheckoutRPS and CheckoutBurst limit checkout submissions per client IP.
	CheckoutRPS   float64
	CheckoutBurst int
	Logger        *slog.Logger
}

type Response struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message,omitempty"`
	Kind      string             `json:"kind,omitempty"`
	Data      any                `json:"data,omitempty"`
	Shortages []service.Shortage `json:"shortages,omitempty"`
}

func NewHTTPHandler(deps HTTPDeps) *HTTPHandler {
	return &HTTPHandler{
		orders:    deps.Orders,
		inventory: deps.Inventory,
		users:     deps.Users,
		carts:     deps.Carts,
		notifier:  deps.Notifier,
		verifier:  deps.Verifier,
		limiter:   newIPLimiter(deps.CheckoutRPS, deps.CheckoutBurst),
		logger:    deps.Logger,
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.authenticate)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/shoes", func(r chi.Router) {
			r.Get("/", h.QueryShoes)
			r.Post("/", h.CreateShoe)
			r.Get("/page", h.PageShoes)
			r.Get("/distinct/{field}", h.DistinctShoes)
			r.Get("/{id}", h.GetShoe)
			r.Patch("/{id}", h.UpdateShoe)
			r.Delete("/{id}", h.DeleteShoe)
			r.Get("/{id}/stock", h.ReadStock)
			r.Get("/{id}/stock/watch", h.WatchStock)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/", h.UpsertCart)
			r.Delete("/", h.DiscardCart)
			r.Put("/{productID}", h.SetCartCount)
			r.Delete("/{productID}", h.RemoveFromCart)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/quote", h.QuoteCart)
			r.With(h.limit).Post("/", h.CheckoutCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(h.limit).Post("/", h.SubmitOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{id}", h.GetOrder)
			r.Patch("/{id}", h.AdvanceOrder)
			r.Delete("/{id}", h.DeleteOrder)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/sync", h.SyncUser)
			r.Get("/me", h.CurrentUser)
		})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authenticate attaches the caller's identity when a bearer token is present.
// Requests without one continue anonymously; services decide what that allows.
func (h *HTTPHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := auth.BearerToken(header)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, Response{Message: "invalid authorization header", Kind: service.KindUnauthenticated.String()})
			return
		}

		identity, err := h.verifier.Verify(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, Response{Message: "invalid token", Kind: service.KindUnauthenticated.String()})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func (h *HTTPHandler) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.allow(clientIP(r), time.Now()) {
			writeJSON(w, http.StatusTooManyRequests, Response{Message: "too many checkout attempts"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := http.StatusInternalServerError
	message := "internal error"

	switch kind {
	case service.KindValidation:
		status, message = http.StatusBadRequest, err.Error()
	case service.KindUnauthenticated:
		status, message = http.StatusUnauthorized, "not authenticated"
	case service.KindForbidden:
		status, message = http.StatusForbidden, "admin role required"
	case service.KindNotFound:
		status, message = http.StatusNotFound, "not found"
	case service.KindInsufficientStock:
		status, message = http.StatusGone, "sold out"
	case service.KindDuplicate:
		status, message = http.StatusConflict, "duplicate request"
	case service.KindConflict:
		status, message = http.StatusConflict, "concurrent update, try again"
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}

	resp := Response{Message: message, Kind: kind.String()}
	var shortage *service.StockShortageError
	if errors.As(err, &shortage) {
		resp.Shortages = shortage.Shortages
	}
	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{Message: message, Kind: service.KindValidation.String()})
}
