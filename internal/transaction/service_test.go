package transaction_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/split"
	"github.com/noah-isme/pos-terminal/internal/transaction"
)

type stubStock struct {
	levels map[string]int
	err    error
}

func (s stubStock) AvailableStock(_ context.Context, id string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.levels[id], nil
}

func fixtureLedger(t *testing.T) *cart.Ledger {
	t.Helper()
	g := cart.NewLedger(decimal.NewFromInt(18))
	if _, _, _, err := g.AddItem(cart.CatalogItem{ID: "p1", Name: "grinder", Price: 4999, AvailableStock: 10}, 2, nil); err != nil {
		t.Fatalf("add p1: %v", err)
	}
	if _, _, _, err := g.AddItem(cart.CatalogItem{ID: "p2", Name: "kettle", Price: 2499, AvailableStock: 10}, 1, nil); err != nil {
		t.Fatalf("add p2: %v", err)
	}
	if _, err := g.SetDiscountPercent(decimal.NewFromInt(10)); err != nil {
		t.Fatalf("discount: %v", err)
	}
	return g
}

func newService(stock transaction.StockLookup, bus *events.Bus) *transaction.Service {
	return &transaction.Service{
		Stock:  stock,
		Store:  transaction.NewStore(),
		Events: bus,
		Now:    func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) },
	}
}

func TestSettleSinglePayment(t *testing.T) {
	bus := &events.Bus{}
	svc := newService(stubStock{levels: map[string]int{"p1": 10, "p2": 10}}, bus)
	g := fixtureLedger(t)

	tx, err := svc.Settle(context.Background(), transaction.SettleInput{
		SessionID: "term-1",
		Ledger:    g,
		Method:    split.MethodCash,
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tx.Status != transaction.StatusCompleted {
		t.Fatalf("expected completed status, got %s", tx.Status)
	}
	if tx.Settlement.Total != 13272 {
		t.Fatalf("expected total 13272, got %d", tx.Settlement.Total)
	}
	if len(tx.Payments) != 1 || tx.Payments[0].Amount != 13272 {
		t.Fatalf("expected one full cash payment, got %+v", tx.Payments)
	}
	if tx.Number != "POS-20260314-0001" {
		t.Fatalf("unexpected receipt number %s", tx.Number)
	}
	if tx.CashAmount() != 13272 {
		t.Fatalf("expected cash amount 13272, got %d", tx.CashAmount())
	}

	log := bus.Log()
	if len(log) != 1 || log[0].Topic != events.TopicTransactionCompleted {
		t.Fatalf("expected a completed event, got %+v", log)
	}
	var payload events.TransactionCompletedPayload
	if err := json.Unmarshal(log[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.LoyaltyPoints != 132 {
		t.Fatalf("expected 132 loyalty points, got %d", payload.LoyaltyPoints)
	}
	if len(payload.StockDeltas) != 2 || payload.StockDeltas[0].QuantityDelta != -2 {
		t.Fatalf("expected stock decrements, got %+v", payload.StockDeltas)
	}
}

func TestSettleSnapshotIsIndependent(t *testing.T) {
	svc := newService(stubStock{levels: map[string]int{"p1": 10, "p2": 10}}, nil)
	g := fixtureLedger(t)
	tx, err := svc.Settle(context.Background(), transaction.SettleInput{Ledger: g, Method: split.MethodCard})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	// mutate the cart after settlement; history must not move
	g.Clear()
	stored, err := svc.Store.Get(tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(stored.Items) != 2 || stored.Settlement.Total != 13272 {
		t.Fatalf("stored snapshot changed: %+v", stored)
	}
}

func TestSettleEmptyCart(t *testing.T) {
	svc := newService(nil, nil)
	_, err := svc.Settle(context.Background(), transaction.SettleInput{Ledger: cart.NewLedger(decimal.Zero), Method: split.MethodCash})
	if !errors.Is(err, transaction.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestSettleInsufficientStockLeavesCartUntouched(t *testing.T) {
	bus := &events.Bus{}
	svc := newService(stubStock{levels: map[string]int{"p1": 1, "p2": 10}}, bus)
	g := fixtureLedger(t)
	before := g.Items()
	beforeSettlement := g.Settlement()

	_, err := svc.Settle(context.Background(), transaction.SettleInput{Ledger: g, Method: split.MethodCash})
	if !errors.Is(err, transaction.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	after := g.Items()
	if len(after) != len(before) || g.Settlement() != beforeSettlement {
		t.Fatal("failed settlement must not mutate the cart")
	}
	for i := range before {
		if after[i].Quantity != before[i].Quantity {
			t.Fatal("line quantities changed on failed settlement")
		}
	}
	if svc.Store.Len() != 0 || len(bus.Log()) != 0 {
		t.Fatal("nothing may be recorded or emitted on failure")
	}
}

func TestSettleAggregatesModifierVariants(t *testing.T) {
	// two lines of the same product with different modifiers must be summed
	// against the product's stock, not checked independently
	svc := newService(stubStock{levels: map[string]int{"p1": 3}}, nil)
	g := cart.NewLedger(decimal.Zero)
	g.AddItem(cart.CatalogItem{ID: "p1", Name: "latte", Price: 450, AvailableStock: 5}, 2, nil)
	g.AddItem(cart.CatalogItem{ID: "p1", Name: "latte", Price: 450, AvailableStock: 5}, 2, []cart.Modifier{{ID: "m1", Name: "oat", Price: 50}})

	_, err := svc.Settle(context.Background(), transaction.SettleInput{Ledger: g, Method: split.MethodCard})
	if !errors.Is(err, transaction.ErrInsufficientStock) {
		t.Fatalf("expected aggregated stock failure, got %v", err)
	}
}

func TestSettleSplitPayments(t *testing.T) {
	svc := newService(stubStock{levels: map[string]int{"p1": 10, "p2": 10}}, nil)
	g := fixtureLedger(t)
	total := g.Settlement().Total

	r := split.NewReconciler(total)
	shares, err := r.EqualSplit(3)
	if err != nil {
		t.Fatalf("equal split: %v", err)
	}
	for i, share := range shares {
		payer := []string{"ana", "ben", "car"}[i]
		if _, err := r.AddPayment(split.MethodCard, share, payer); err != nil {
			t.Fatalf("pay share %d: %v", i, err)
		}
	}
	entries, err := r.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	tx, err := svc.Settle(context.Background(), transaction.SettleInput{Ledger: g, Payments: entries})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(tx.Payments) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(tx.Payments))
	}
}

func TestSettleRejectsShortSplit(t *testing.T) {
	svc := newService(stubStock{levels: map[string]int{"p1": 10, "p2": 10}}, nil)
	g := fixtureLedger(t)
	entries := []split.Entry{{ID: "x", Method: split.MethodCard, Amount: 100}}
	_, err := svc.Settle(context.Background(), transaction.SettleInput{Ledger: g, Payments: entries})
	if !errors.Is(err, split.ErrIncompletePayment) {
		t.Fatalf("expected ErrIncompletePayment, got %v", err)
	}
}

func TestRefundOnceOnly(t *testing.T) {
	bus := &events.Bus{}
	svc := newService(stubStock{levels: map[string]int{"p1": 10, "p2": 10}}, bus)
	g := fixtureLedger(t)
	tx, err := svc.Settle(context.Background(), transaction.SettleInput{Ledger: g, Method: split.MethodCash})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	refunded, err := svc.Refund(context.Background(), tx.ID, "damaged goods")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Status != transaction.StatusRefunded || refunded.RefundedAt == nil {
		t.Fatalf("expected refunded status with timestamp, got %+v", refunded)
	}
	firstStamp := *refunded.RefundedAt

	if _, err := svc.Refund(context.Background(), tx.ID, "again"); !errors.Is(err, transaction.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	stored, _ := svc.Store.Get(tx.ID)
	if stored.RefundReason != "damaged goods" || !stored.RefundedAt.Equal(firstStamp) {
		t.Fatal("second refund attempt must not alter the record")
	}

	log := bus.Log()
	if len(log) != 2 || log[1].Topic != events.TopicTransactionRefunded {
		t.Fatalf("expected completed + refunded events, got %+v", log)
	}
	var payload events.TransactionRefundedPayload
	if err := json.Unmarshal(log[1].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.StockDeltas[0].QuantityDelta != 2 {
		t.Fatalf("expected restock delta, got %+v", payload.StockDeltas)
	}
	if payload.CashAmount != -13272 {
		t.Fatalf("expected negative cash amount on refund, got %d", payload.CashAmount)
	}
}

func TestConcurrentRefundsStampOnce(t *testing.T) {
	bus := &events.Bus{}
	svc := newService(stubStock{levels: map[string]int{"p1": 10, "p2": 10}}, bus)
	tx, err := svc.Settle(context.Background(), transaction.SettleInput{Ledger: fixtureLedger(t), Method: split.MethodCash})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refund(context.Background(), tx.ID, "damaged goods")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var won int
	for err := range errs {
		if err == nil {
			won++
			continue
		}
		if !errors.Is(err, transaction.ErrInvalidStateTransition) {
			t.Fatalf("unexpected refund error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one refund to win, got %d", won)
	}

	var refundEvents int
	for _, ev := range bus.Log() {
		if ev.Topic == events.TopicTransactionRefunded {
			refundEvents++
		}
	}
	if refundEvents != 1 {
		t.Fatalf("expected one refunded event, got %d", refundEvents)
	}
	stored, _ := svc.Store.Get(tx.ID)
	if stored.Status != transaction.StatusRefunded || stored.RefundedAt == nil {
		t.Fatalf("expected refunded record, got %+v", stored)
	}
}

func TestRefundUnknownTransaction(t *testing.T) {
	svc := newService(nil, nil)
	if _, err := svc.Refund(context.Background(), "missing", "why"); !errors.Is(err, transaction.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusMachine(t *testing.T) {
	cases := []struct {
		from, to transaction.Status
		ok       bool
	}{
		{transaction.StatusDraft, transaction.StatusCompleted, true},
		{transaction.StatusDraft, transaction.StatusCancelled, true},
		{transaction.StatusCompleted, transaction.StatusRefunded, true},
		{transaction.StatusCompleted, transaction.StatusCancelled, false},
		{transaction.StatusRefunded, transaction.StatusCompleted, false},
		{transaction.StatusCancelled, transaction.StatusRefunded, false},
		{transaction.StatusDraft, transaction.StatusRefunded, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v", tc.from, tc.to, tc.ok)
		}
	}
	if !transaction.StatusRefunded.Terminal() || !transaction.StatusCancelled.Terminal() {
		t.Fatal("refunded and cancelled are terminal")
	}
	if transaction.StatusCompleted.Terminal() {
		t.Fatal("completed is not terminal")
	}
}
