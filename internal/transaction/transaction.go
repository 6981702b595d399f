// Package transaction finalizes carts into immutable settled transactions.
package transaction

import (
	"errors"
	"time"

	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/pricing"
	"github.com/noah-isme/pos-terminal/internal/split"
)

// ErrEmptyCart is returned when settling a cart with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrInsufficientStock is returned when a line exceeds currently available stock.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrInvalidStateTransition is returned for illegal status changes.
var ErrInvalidStateTransition = errors.New("invalid state transition")

// ErrNotFound indicates the requested transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// CanTransition reports whether the status machine permits moving to next.
// Permitted: draft -> completed, draft -> cancelled, completed -> refunded.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusCompleted || next == StatusCancelled
	case StatusCompleted:
		return next == StatusRefunded
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusRefunded || s == StatusCancelled
}

// Transaction is the immutable settled record handed to receipt and report
// collaborators. Only the refund fields ever change after completion.
type Transaction struct {
	ID           string             `json:"id"`
	Number       string             `json:"number"`
	SessionID    string             `json:"sessionId,omitempty"`
	CustomerID   string             `json:"customerId,omitempty"`
	Items        []cart.LineItem    `json:"items"`
	Settlement   pricing.Settlement `json:"settlement"`
	Payments     []split.Entry      `json:"payments"`
	Status       Status             `json:"status"`
	Notes        string             `json:"notes,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	RefundedAt   *time.Time         `json:"refundedAt,omitempty"`
	RefundReason string             `json:"refundReason,omitempty"`
}

// CashAmount sums the cash-method payments; only these move the drawer.
func (t Transaction) CashAmount() money.Money {
	var cash money.Money
	for _, p := range t.Payments {
		if p.Method == split.MethodCash {
			cash += p.Amount
		}
	}
	return cash
}

// PaymentMethods lists the distinct tender types on the transaction.
func (t Transaction) PaymentMethods() []string {
	seen := map[split.Method]bool{}
	out := make([]string, 0, len(t.Payments))
	for _, p := range t.Payments {
		if !seen[p.Method] {
			seen[p.Method] = true
			out = append(out, string(p.Method))
		}
	}
	return out
}

func (t Transaction) clone() Transaction {
	out := t
	out.Items = append([]cart.LineItem(nil), t.Items...)
	for i := range out.Items {
		out.Items[i] = out.Items[i].Clone()
	}
	out.Payments = append([]split.Entry(nil), t.Payments...)
	if t.RefundedAt != nil {
		at := *t.RefundedAt
		out.RefundedAt = &at
	}
	return out
}
