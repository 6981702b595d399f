package customer

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/pos-terminal/internal/common"
)

// Handler wires the customer store to HTTP.
type Handler struct {
	Store *Store
}

// List returns all loyalty accounts in seed order.
func (h *Handler) List(w http.ResponseWriter, _ *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "customer store not configured", nil)
		return
	}
	common.Data(w, http.StatusOK, h.Store.List())
}

// Get returns one customer's loyalty and credit snapshot.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "customer store not configured", nil)
		return
	}
	c, err := h.Store.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	common.Data(w, http.StatusOK, c)
}
