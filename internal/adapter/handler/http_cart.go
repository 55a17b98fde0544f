package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/shoe-store/internal/core/cart"
)

type UpsertCartHTTPRequest struct {
	ProductID string  `json:"product_id"`
	Size      float64 `json:"size"`
	Count     int     `json:"count"`
}

type SetCountHTTPRequest struct {
	Count int `json:"count"`
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, false, func(*cart.Store) {})
}

func (h *HTTPHandler) UpsertCart(w http.ResponseWriter, r *http.Request) {
	var req UpsertCartHTTPRequest
	if err := decodeJSON(r, &req); err != nil || req.ProductID == "" {
		badRequest(w, "invalid request body")
		return
	}
	h.withCart(w, r, true, func(s *cart.Store) {
		s.Upsert(req.ProductID, req.Size, req.Count)
	})
}

func (h *HTTPHandler) SetCartCount(w http.ResponseWriter, r *http.Request) {
	var req SetCountHTTPRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	productID := chi.URLParam(r, "productID")
	h.withCart(w, r, true, func(s *cart.Store) {
		s.SetCount(productID, req.Count)
	})
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	h.withCart(w, r, true, func(s *cart.Store) {
		s.Remove(productID)
	})
}

func (h *HTTPHandler) DiscardCart(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(cartSessionHeader)
	if sessionID == "" {
		badRequest(w, "missing "+cartSessionHeader+" header")
		return
	}
	if err := h.carts.Discard(r.Context(), sessionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, []any{})
}

// withCart loads the session cart, applies fn and, when save is set, stores
// the result before echoing the entries back.
func (h *HTTPHandler) withCart(w http.ResponseWriter, r *http.Request, save bool, fn func(*cart.Store)) {
	sessionID := r.Header.Get(cartSessionHeader)
	if sessionID == "" {
		badRequest(w, "missing "+cartSessionHeader+" header")
		return
	}

	store, err := h.carts.Load(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	fn(store)

	if save {
		if err := h.carts.Save(r.Context(), sessionID, store); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeData(w, http.StatusOK, store.Entries())
}
