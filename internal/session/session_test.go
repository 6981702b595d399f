package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/shift"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(decimal.NewFromInt(18))
	s := r.Open("till-1")
	if s.ID == "" || s.Cart == nil || s.Shift == nil {
		t.Fatalf("incomplete session: %+v", s)
	}
	if !s.Cart.TaxPercent().Equal(decimal.NewFromInt(18)) {
		t.Fatal("new cart should carry the default tax rate")
	}
	got, err := r.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("get: %v", err)
	}
	if err := r.Close(s.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := r.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Close(s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double close, got %v", err)
	}
}

func TestSplitLifecycleFreezesTarget(t *testing.T) {
	r := NewRegistry(decimal.Zero)
	s := r.Open("till-1")
	s.Lock()
	defer s.Unlock()

	if _, err := s.Split(); !errors.Is(err, ErrSplitNotActive) {
		t.Fatalf("expected ErrSplitNotActive, got %v", err)
	}
	s.Cart.AddItem(cart.CatalogItem{ID: "p1", Name: "x", Price: 10000, AvailableStock: 10}, 1, nil)
	rec, err := s.BeginSplit()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if rec.Target() != 10000 {
		t.Fatalf("expected frozen target 10000, got %d", rec.Target())
	}
	if _, err := s.BeginSplit(); !errors.Is(err, ErrSplitActive) {
		t.Fatalf("expected ErrSplitActive, got %v", err)
	}

	// a cart mutation mid-split must not move the frozen target
	s.Cart.AddItem(cart.CatalogItem{ID: "p2", Name: "y", Price: 5000, AvailableStock: 10}, 1, nil)
	rec, _ = s.Split()
	if rec.Target() != 10000 {
		t.Fatalf("target drifted to %d", rec.Target())
	}

	s.EndSplit()
	if _, err := s.Split(); !errors.Is(err, ErrSplitNotActive) {
		t.Fatalf("expected split cleared, got %v", err)
	}
}

func TestCashDrawerNotifier(t *testing.T) {
	r := NewRegistry(decimal.Zero)
	s := r.Open("till-1")
	s.Shift.StartShift(20000)
	n := CashDrawerNotifier{Registry: r}

	payload, _ := json.Marshal(events.TransactionCompletedPayload{SessionID: s.ID, CashAmount: 15000})
	if err := n.Notify(context.Background(), events.Event{Topic: events.TopicTransactionCompleted, Payload: payload}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if s.Shift.Active().SalesTotal != 15000 {
		t.Fatalf("expected drawer sales 15000, got %d", s.Shift.Active().SalesTotal)
	}

	refund, _ := json.Marshal(events.TransactionRefundedPayload{SessionID: s.ID, CashAmount: -15000})
	if err := n.Notify(context.Background(), events.Event{Topic: events.TopicTransactionRefunded, Payload: refund}); err != nil {
		t.Fatalf("notify refund: %v", err)
	}
	if s.Shift.Active().SalesTotal != 0 {
		t.Fatalf("expected drawer back to 0, got %d", s.Shift.Active().SalesTotal)
	}

	// card sales and unknown sessions are no-ops
	card, _ := json.Marshal(events.TransactionCompletedPayload{SessionID: s.ID, CashAmount: 0})
	if err := n.Notify(context.Background(), events.Event{Topic: events.TopicTransactionCompleted, Payload: card}); err != nil {
		t.Fatalf("notify card: %v", err)
	}
	gone, _ := json.Marshal(events.TransactionCompletedPayload{SessionID: "missing", CashAmount: 100})
	if err := n.Notify(context.Background(), events.Event{Topic: events.TopicTransactionCompleted, Payload: gone}); err != nil {
		t.Fatalf("unknown session should be ignored: %v", err)
	}
}

func TestRefundNotificationsSerialiseWithShiftAccess(t *testing.T) {
	r := NewRegistry(decimal.Zero)
	s := r.Open("till-1")
	s.Lock()
	s.Shift.StartShift(0)
	s.Unlock()
	n := CashDrawerNotifier{Registry: r}

	const rounds = 200
	refund, _ := json.Marshal(events.TransactionRefundedPayload{SessionID: s.ID, CashAmount: -5})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := n.Notify(context.Background(), events.Event{Topic: events.TopicTransactionRefunded, Payload: refund}); err != nil {
				t.Errorf("notify: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			s.Lock()
			if _, err := s.Shift.RecordCashMovement(shift.DirectionIn, 100, "change run"); err != nil {
				s.Unlock()
				t.Errorf("movement: %v", err)
				return
			}
			s.Unlock()
		}
	}()
	wg.Wait()

	s.Lock()
	defer s.Unlock()
	active := s.Shift.Active()
	if active == nil {
		t.Fatal("shift should still be open")
	}
	if active.SalesTotal != -5*rounds {
		t.Fatalf("expected sales total %d, got %d", -5*rounds, active.SalesTotal)
	}
	if active.CashIn != 100*rounds {
		t.Fatalf("expected cash in %d, got %d", 100*rounds, active.CashIn)
	}
}
