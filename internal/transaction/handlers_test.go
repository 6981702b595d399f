package transaction_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/split"
	"github.com/noah-isme/pos-terminal/internal/transaction"
)

func newRefundRouter(t *testing.T) (*chi.Mux, string) {
	t.Helper()
	store := transaction.NewStore()
	svc := &transaction.Service{
		Store: store,
		Now:   func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) },
	}

	ledger := cart.NewLedger(decimal.Zero)
	if _, _, _, err := ledger.AddItem(cart.CatalogItem{
		ID: "itm-1007", Name: "Ceramic Mug", Price: money.MustParse("14.00"), AvailableStock: 10,
	}, 1, nil); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	tx, err := svc.Settle(t.Context(), transaction.SettleInput{Ledger: ledger, Method: split.MethodCard})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	h := &transaction.Handler{Store: store, Svc: svc}
	r := chi.NewRouter()
	r.Get("/transactions", h.List)
	r.Get("/transactions/{id}", h.Get)
	r.Post("/transactions/{id}/refund", h.Refund)
	return r, tx.ID
}

func TestRefundOverHTTP(t *testing.T) {
	r, txID := newRefundRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/transactions/"+txID+"/refund", strings.NewReader(`{"reason":"damaged"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("refund: expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var envelope struct {
		Data transaction.Transaction `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != transaction.StatusRefunded {
		t.Fatalf("expected refunded, got %s", envelope.Data.Status)
	}
	if envelope.Data.RefundReason != "damaged" {
		t.Fatalf("unexpected reason %q", envelope.Data.RefundReason)
	}

	// a second refund hits the state machine
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions/"+txID+"/refund", strings.NewReader(`{}`)))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for double refund, got %d", rr.Code)
	}
}

func TestRefundUnknownTransactionOverHTTP(t *testing.T) {
	r, _ := newRefundRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions/nope/refund", strings.NewReader(`{}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestTransactionListAndGet(t *testing.T) {
	r, txID := newRefundRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list: got %d", rr.Code)
	}
	var listEnvelope struct {
		Data []transaction.Transaction `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listEnvelope); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listEnvelope.Data) != 1 || listEnvelope.Data[0].ID != txID {
		t.Fatalf("unexpected list %+v", listEnvelope.Data)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/transactions/"+txID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d", rr.Code)
	}
}
