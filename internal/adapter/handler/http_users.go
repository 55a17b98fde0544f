package handler

import "net/http"

func (h *HTTPHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Sync(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}

func (h *HTTPHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Current(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}
