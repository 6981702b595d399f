package transaction

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/pos-terminal/internal/common"
	"github.com/noah-isme/pos-terminal/internal/obs"
)

var refundErrors = common.ErrorMap{
	{Target: ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Target: ErrInvalidStateTransition, Status: http.StatusConflict, Code: "INVALID_STATE"},
}

// Handler wires the transaction log and refund flow to HTTP.
type Handler struct {
	Store *Store
	Svc   *Service
}

// List returns all settled transactions, oldest first.
func (h *Handler) List(w http.ResponseWriter, _ *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "transaction store not configured", nil)
		return
	}
	common.Data(w, http.StatusOK, h.Store.List())
}

// Get returns one transaction by id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "transaction store not configured", nil)
		return
	}
	tx, err := h.Store.Get(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "transaction not found", nil)
		return
	}
	common.Data(w, http.StatusOK, tx)
}

// Refund moves a completed transaction to refunded and restocks its items.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "transaction service not configured", nil)
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	tx, err := h.Svc.Refund(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(payload.Reason))
	if err != nil {
		if obs.RefundsTotal != nil {
			obs.RefundsTotal.WithLabelValues("error").Inc()
		}
		refundErrors.Write(w, err)
		return
	}
	if obs.RefundsTotal != nil {
		obs.RefundsTotal.WithLabelValues("ok").Inc()
	}
	common.Data(w, http.StatusOK, tx)
}
