package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/split"
)

// StockLookup supplies the current available stock for a catalog item. It is
// consulted again at settlement time to catch sales racing the add-to-cart
// stock snapshot; the collaborator may block on I/O, which is why settlement
// takes a context while the cart mutators do not.
type StockLookup interface {
	AvailableStock(ctx context.Context, catalogItemID string) (int, error)
}

// Service settles carts and processes refunds.
type Service struct {
	Stock  StockLookup
	Store  *Store
	Events *events.Bus
	Now    func() time.Time

	seq atomic.Int64
}

// SettleInput carries everything needed to finalize a cart.
type SettleInput struct {
	SessionID string
	Ledger    *cart.Ledger
	// Payments holds split-payment entries; when empty, Method is charged
	// for the full settlement total as a single payment.
	Payments []split.Entry
	Method   split.Method
	Payer    string
}

// Settle validates the cart against fresh stock data and produces an
// immutable completed transaction. Validation is all-or-nothing: any failure
// returns before anything is recorded or emitted, leaving the cart untouched.
func (s *Service) Settle(ctx context.Context, in SettleInput) (Transaction, error) {
	if s == nil || s.Store == nil {
		return Transaction{}, errors.New("transaction service not configured")
	}
	if in.Ledger == nil || in.Ledger.IsEmpty() {
		return Transaction{}, ErrEmptyCart
	}

	items := in.Ledger.Items()
	settlement := in.Ledger.Settlement()

	if s.Stock != nil {
		if err := s.revalidateStock(ctx, items); err != nil {
			return Transaction{}, err
		}
	}

	payments := in.Payments
	if len(payments) > 0 {
		if err := split.Reconcile(payments, settlement.Total); err != nil {
			return Transaction{}, err
		}
		payments = append([]split.Entry(nil), payments...)
	} else {
		if !in.Method.Valid() {
			return Transaction{}, fmt.Errorf("method %q: %w", in.Method, split.ErrInvalidPayment)
		}
		payments = []split.Entry{{
			ID:        uuid.NewString(),
			Method:    in.Method,
			Amount:    settlement.Total,
			Payer:     in.Payer,
			Timestamp: s.now(),
		}}
	}

	status := StatusDraft
	if !status.CanTransition(StatusCompleted) {
		return Transaction{}, ErrInvalidStateTransition
	}
	tx := Transaction{
		ID:         uuid.NewString(),
		Number:     s.nextNumber(),
		SessionID:  in.SessionID,
		CustomerID: in.Ledger.CustomerID(),
		Items:      items,
		Settlement: settlement,
		Payments:   payments,
		Status:     StatusCompleted,
		Notes:      in.Ledger.Notes(),
		CreatedAt:  s.now(),
	}
	s.Store.Add(tx)

	if s.Events != nil {
		payload := events.TransactionCompletedPayload{
			TransactionID:  tx.ID,
			Number:         tx.Number,
			SessionID:      tx.SessionID,
			CustomerID:     tx.CustomerID,
			Total:          settlement.Total,
			CashAmount:     tx.CashAmount(),
			LoyaltyPoints:  loyaltyPoints(settlement.Total),
			PurchaseAmount: settlement.Total,
			StockDeltas:    stockDeltas(items, -1),
			PaymentMethods: tx.PaymentMethods(),
		}
		_, _ = s.Events.Emit(ctx, events.TopicTransactionCompleted, tx.ID, payload)
	}
	return tx, nil
}

// Refund transitions a completed transaction to refunded, stamping the
// refund fields exactly once and emitting a restock event. Any other source
// state fails with ErrInvalidStateTransition and leaves the record untouched.
// The status check and the write happen atomically in the store, so racing
// refunds of the same transaction cannot both win.
func (s *Service) Refund(ctx context.Context, id, reason string) (Transaction, error) {
	if s == nil || s.Store == nil {
		return Transaction{}, errors.New("transaction service not configured")
	}
	tx, err := s.Store.Transition(id, func(tx *Transaction) error {
		if !tx.Status.CanTransition(StatusRefunded) {
			return fmt.Errorf("refund from %s: %w", tx.Status, ErrInvalidStateTransition)
		}
		at := s.now()
		tx.Status = StatusRefunded
		tx.RefundedAt = &at
		tx.RefundReason = reason
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	if s.Events != nil {
		payload := events.TransactionRefundedPayload{
			TransactionID:  tx.ID,
			Number:         tx.Number,
			SessionID:      tx.SessionID,
			CustomerID:     tx.CustomerID,
			Total:          tx.Settlement.Total,
			CashAmount:     -tx.CashAmount(),
			LoyaltyPoints:  -loyaltyPoints(tx.Settlement.Total),
			PurchaseAmount: -tx.Settlement.Total,
			StockDeltas:    stockDeltas(tx.Items, 1),
			Reason:         reason,
		}
		_, _ = s.Events.Emit(ctx, events.TopicTransactionRefunded, tx.ID, payload)
	}
	return tx, nil
}

func (s *Service) revalidateStock(ctx context.Context, items []cart.LineItem) error {
	// Merged modifier variants share a catalog item, so quantities must be
	// aggregated per product before comparing against available stock.
	needed := make(map[string]int, len(items))
	firstLine := make(map[string]string, len(items))
	for _, line := range items {
		if _, seen := needed[line.CatalogItemID]; !seen {
			firstLine[line.CatalogItemID] = line.ID
		}
		needed[line.CatalogItemID] += line.Quantity
	}
	for _, line := range items {
		qty := needed[line.CatalogItemID]
		if qty == 0 {
			continue
		}
		available, err := s.Stock.AvailableStock(ctx, line.CatalogItemID)
		if err != nil {
			return fmt.Errorf("stock lookup %s: %w", line.CatalogItemID, err)
		}
		if qty > available {
			return fmt.Errorf("line %s needs %d of %s, %d available: %w",
				firstLine[line.CatalogItemID], qty, line.CatalogItemID, available, ErrInsufficientStock)
		}
		needed[line.CatalogItemID] = 0
	}
	return nil
}

func (s *Service) nextNumber() string {
	n := s.seq.Add(1)
	return fmt.Sprintf("POS-%s-%04d", s.now().Format("20060102"), n)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func stockDeltas(items []cart.LineItem, sign int) []events.StockDelta {
	merged := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, line := range items {
		if _, ok := merged[line.CatalogItemID]; !ok {
			order = append(order, line.CatalogItemID)
		}
		merged[line.CatalogItemID] += line.Quantity * sign
	}
	out := make([]events.StockDelta, 0, len(order))
	for _, id := range order {
		out = append(out, events.StockDelta{CatalogItemID: id, QuantityDelta: merged[id]})
	}
	return out
}

// loyaltyPoints awards one point per whole currency unit spent.
func loyaltyPoints(total money.Money) int64 {
	if total <= 0 {
		return 0
	}
	return int64(total / 100)
}
