package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/shoe-store/internal/core/domain"
	"github.com/rl1809/shoe-store/internal/core/service"
)

type SubmitOrderHTTPRequest struct {
	RequestID     string               `json:"request_id"`
	Contact       domain.Contact       `json:"contact"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	CouponCode    string               `json:"coupon_code"`
	Lines         []domain.OrderLine   `json:"lines"`
}

type CheckoutHTTPRequest struct {
	RequestID     string               `json:"request_id"`
	Contact       domain.Contact       `json:"contact"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	CouponCode    string               `json:"coupon_code"`
}

type QuoteHTTPRequest struct {
	CouponCode string `json:"coupon_code"`
}

type AdvanceOrderHTTPRequest struct {
	Status        *domain.OrderStatus   `json:"status"`
	PaymentStatus *domain.PaymentStatus `json:"payment_status"`
	DeliveryDate  *time.Time            `json:"delivery_date"`
}

// SubmitOrder places an order from explicit lines. When the request names a
// cart session, that cart is cleared after the order is placed.
func (h *HTTPHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	order, err := h.orders.Submit(r.Context(), service.CheckoutRequest{
		RequestID:     req.RequestID,
		Contact:       req.Contact,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
		Lines:         req.Lines,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.clearCart(r)
	writeData(w, http.StatusCreated, order)
}

// CheckoutCart prices the session cart at current prices and submits it.
func (h *HTTPHandler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(cartSessionHeader)
	if sessionID == "" {
		badRequest(w, "missing "+cartSessionHeader+" header")
		return
	}

	var req CheckoutHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	store, err := h.carts.Load(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	quote, err := h.orders.Quote(r.Context(), store.Entries(), req.CouponCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.Submit(r.Context(), service.CheckoutRequest{
		RequestID:     req.RequestID,
		Contact:       req.Contact,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
		Lines:         quote.Lines,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.clearCart(r)
	writeData(w, http.StatusCreated, order)
}

func (h *HTTPHandler) QuoteCart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(cartSessionHeader)
	if sessionID == "" {
		badRequest(w, "missing "+cartSessionHeader+" header")
		return
	}

	var req QuoteHTTPRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}

	store, err := h.carts.Load(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	quote, err := h.orders.Quote(r.Context(), store.Entries(), req.CouponCode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, quote)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, order)
}

func (h *HTTPHandler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	var req AdvanceOrderHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	order, err := h.orders.Advance(r.Context(), chi.URLParam(r, "id"), service.OrderPatch{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
		DeliveryDate:  req.DeliveryDate,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, order)
}

func (h *HTTPHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "order deleted"})
}

// clearCart runs after the order is committed, so a failure here only leaves
// a stale cart behind.
func (h *HTTPHandler) clearCart(r *http.Request) {
	sessionID := r.Header.Get(cartSessionHeader)
	if sessionID == "" {
		return
	}
	if err := h.carts.Discard(r.Context(), sessionID); err != nil {
		h.logger.Warn("clear cart after checkout", "session", sessionID, "err", err)
	}
}
