package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Checker represents backing stores that can be probed for readiness.
type Checker interface {
	PingCatalog(ctx context.Context, timeout time.Duration) error
	PingCustomers(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	ProbeTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on backing store probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	catalogStatus := "ok"
	if err := h.Checker.PingCatalog(ctx, h.probeTimeout()); err != nil {
		catalogStatus = err.Error()
	}
	customerStatus := "ok"
	if err := h.Checker.PingCustomers(ctx, h.probeTimeout()); err != nil {
		customerStatus = err.Error()
	}
	status := map[string]string{
		"catalog":   catalogStatus,
		"customers": customerStatus,
	}
	if catalogStatus != "ok" || customerStatus != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) probeTimeout() time.Duration {
	if h.ProbeTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.ProbeTimeout
}
