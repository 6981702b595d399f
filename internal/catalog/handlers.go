package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/pos-terminal/internal/common"
)

// Handler wires the catalog store to HTTP.
type Handler struct {
	Store *Store
}

// List returns the full catalog in seed order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	items, err := h.Store.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "catalog unavailable", nil)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Get returns one catalog item.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog store not configured", nil)
		return
	}
	item, err := h.Store.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "catalog item not found", nil)
			return
		}
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "catalog unavailable", nil)
		return
	}
	common.Data(w, http.StatusOK, item)
}
