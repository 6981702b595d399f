// Package split reconciles partial payments against a frozen settlement total.
package split

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-terminal/internal/money"
)

// Epsilon is the tolerance, in minor units, under which a split is complete.
const Epsilon money.Money = 1

// ErrExceedsRemaining is returned when a payment is larger than the open balance.
var ErrExceedsRemaining = errors.New("payment exceeds remaining balance")

// ErrIncompletePayment indicates the accumulated payments do not cover the target.
var ErrIncompletePayment = errors.New("split payment incomplete")

// ErrInvalidPayment is returned for non-positive or malformed payment entries.
var ErrInvalidPayment = errors.New("invalid payment entry")

// ErrEntryNotFound indicates the referenced payment entry does not exist.
var ErrEntryNotFound = errors.New("payment entry not found")

// Method identifies the tender type of a payment.
type Method string

const (
	MethodCash    Method = "cash"
	MethodCard    Method = "card"
	MethodMobile  Method = "mobile"
	MethodCredit  Method = "store_credit"
	MethodLoyalty Method = "loyalty"
)

// Valid reports whether the method is one the terminal accepts.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodMobile, MethodCredit, MethodLoyalty:
		return true
	}
	return false
}

// Entry is one partial payment towards the target.
type Entry struct {
	ID        string      `json:"id"`
	Method    Method      `json:"method"`
	Amount    money.Money `json:"amount"`
	Payer     string      `json:"payer,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Reconciler accumulates payments against a target total. The target is the
// settlement total at the time the split began and is deliberately frozen:
// recomputing it mid-split would let a discount or tip change desync the
// already-taken payments.
type Reconciler struct {
	target  money.Money
	entries []Entry
	now     func() time.Time
	newID   func() string
}

// NewReconciler freezes the target and returns an empty reconciler.
func NewReconciler(target money.Money) *Reconciler {
	return &Reconciler{target: target, now: time.Now, newID: uuid.NewString}
}

// Target returns the frozen total.
func (r *Reconciler) Target() money.Money { return r.target }

// Paid sums the accumulated entries.
func (r *Reconciler) Paid() money.Money {
	var paid money.Money
	for _, e := range r.entries {
		paid += e.Amount
	}
	return paid
}

// Remaining is the balance still owed.
func (r *Reconciler) Remaining() money.Money {
	return r.target - r.Paid()
}

// IsComplete reports whether the open balance is within Epsilon.
func (r *Reconciler) IsComplete() bool {
	return r.Remaining() <= Epsilon
}

// AddPayment records a partial payment. Payments above the remaining balance
// are rejected so the reconciler never runs negative.
func (r *Reconciler) AddPayment(method Method, amount money.Money, payer string) (Entry, error) {
	if !method.Valid() {
		return Entry{}, fmt.Errorf("method %q: %w", method, ErrInvalidPayment)
	}
	if amount <= 0 {
		return Entry{}, fmt.Errorf("amount %d: %w", amount, ErrInvalidPayment)
	}
	if remaining := r.Remaining(); amount > remaining {
		return Entry{}, fmt.Errorf("amount %d over remaining %d: %w", amount, remaining, ErrExceedsRemaining)
	}
	entry := Entry{
		ID:        r.newID(),
		Method:    method,
		Amount:    amount,
		Payer:     strings.TrimSpace(payer),
		Timestamp: r.now(),
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

// RemovePayment deletes a previously recorded entry.
func (r *Reconciler) RemovePayment(id string) error {
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("entry %s: %w", id, ErrEntryNotFound)
}

// Entries returns a copy of the recorded payments in insertion order.
func (r *Reconciler) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// EqualSplit returns n share amounts summing exactly to the frozen target,
// remainder cents going to the first payers.
func (r *Reconciler) EqualSplit(n int) ([]money.Money, error) {
	if n < 2 {
		return nil, fmt.Errorf("equal split needs at least two payers: %w", ErrInvalidPayment)
	}
	return money.SplitEven(r.target, n)
}

// Finalize validates the split covers the target and returns the entries.
func (r *Reconciler) Finalize() ([]Entry, error) {
	if remaining := r.Remaining(); remaining > Epsilon {
		return nil, fmt.Errorf("remaining %d: %w", remaining, ErrIncompletePayment)
	}
	return r.Entries(), nil
}

// Reconcile verifies that an externally supplied entry list covers the target
// within Epsilon. Used at settlement when payments were taken elsewhere.
func Reconcile(entries []Entry, target money.Money) error {
	var paid money.Money
	for _, e := range entries {
		if e.Amount <= 0 {
			return fmt.Errorf("amount %d: %w", e.Amount, ErrInvalidPayment)
		}
		paid += e.Amount
	}
	diff := target - paid
	if diff < 0 {
		diff = -diff
	}
	if diff > Epsilon {
		return fmt.Errorf("paid %d against total %d: %w", paid, target, ErrIncompletePayment)
	}
	return nil
}
