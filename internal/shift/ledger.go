// Package shift tracks cash drawer custody between shift open and close.
package shift

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-terminal/internal/money"
)

// ErrShiftAlreadyActive is returned when starting a shift while one is open.
var ErrShiftAlreadyActive = errors.New("a shift is already active")

// ErrNoActiveShift is returned when recording against a closed drawer.
var ErrNoActiveShift = errors.New("no active shift")

// ErrInvalidMovement is returned for non-positive cash movement amounts.
var ErrInvalidMovement = errors.New("invalid cash movement")

// Direction of a manual cash movement.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Classification buckets the closing variance for reporting.
type Classification string

const (
	ClassificationBalanced Classification = "balanced"
	ClassificationOver     Classification = "over"
	ClassificationShort    Classification = "short"
)

// Movement is an immutable cash drawer event. Movements are never edited or
// deleted; corrections are recorded as opposing entries.
type Movement struct {
	ID        string      `json:"id"`
	Direction Direction   `json:"direction"`
	Amount    money.Money `json:"amount"`
	Reason    string      `json:"reason,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Ledger is one shift's cash record. It is mutable while the shift is open
// and frozen once closed.
type Ledger struct {
	ID           string       `json:"id"`
	StartingCash money.Money  `json:"startingCash"`
	CashIn       money.Money  `json:"cashIn"`
	CashOut      money.Money  `json:"cashOut"`
	SalesTotal   money.Money  `json:"salesTotal"`
	Movements    []Movement   `json:"movements,omitempty"`
	StartedAt    time.Time    `json:"startedAt"`
	EndedAt      *time.Time   `json:"endedAt,omitempty"`
	ActualCash   *money.Money `json:"actualCash,omitempty"`
	Expected     *money.Money `json:"expected,omitempty"`
	Variance     *money.Money `json:"variance,omitempty"`
}

// Open reports whether the shift is still accepting drawer events.
func (l *Ledger) Open() bool { return l != nil && l.EndedAt == nil }

// ExpectedCash is the drawer balance the count should find.
func (l *Ledger) ExpectedCash() money.Money {
	return l.StartingCash + l.SalesTotal + l.CashIn - l.CashOut
}

// Classify buckets a variance amount.
func Classify(variance money.Money) Classification {
	switch {
	case variance > 0:
		return ClassificationOver
	case variance < 0:
		return ClassificationShort
	}
	return ClassificationBalanced
}

// Tracker owns the active shift for a terminal plus the closed history. Not
// internally thread-safe; the owning session serialises access.
type Tracker struct {
	active *Ledger
	closed []*Ledger
	now    func() time.Time
}

// NewTracker constructs a tracker with no active shift.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// StartShift opens the drawer with the counted starting float.
func (t *Tracker) StartShift(startingCash money.Money) (*Ledger, error) {
	if t.active.Open() {
		return nil, ErrShiftAlreadyActive
	}
	if startingCash < 0 {
		return nil, fmt.Errorf("starting cash %d: %w", startingCash, ErrInvalidMovement)
	}
	t.active = &Ledger{
		ID:           uuid.NewString(),
		StartingCash: startingCash,
		StartedAt:    t.now(),
	}
	return t.active, nil
}

// RecordCashMovement registers a manual cash in/out (payouts, drops, change
// runs). Amount must be positive; the direction carries the sign.
func (t *Tracker) RecordCashMovement(direction Direction, amount money.Money, reason string) (*Ledger, error) {
	if !t.active.Open() {
		return nil, ErrNoActiveShift
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount %d: %w", amount, ErrInvalidMovement)
	}
	switch direction {
	case DirectionIn:
		t.active.CashIn += amount
	case DirectionOut:
		t.active.CashOut += amount
	default:
		return nil, fmt.Errorf("direction %q: %w", direction, ErrInvalidMovement)
	}
	t.active.Movements = append(t.active.Movements, Movement{
		ID:        uuid.NewString(),
		Direction: direction,
		Amount:    amount,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: t.now(),
	})
	return t.active, nil
}

// RecordSale adjusts the expected drawer balance for a cash-method sale.
// Card and mobile tenders never reach the drawer and are not recorded here.
// Refunded cash sales arrive as negative amounts.
func (t *Tracker) RecordSale(amount money.Money) error {
	if !t.active.Open() {
		return ErrNoActiveShift
	}
	t.active.SalesTotal += amount
	return nil
}

// EndShift reconciles the counted drawer against the expected balance and
// closes the shift. The returned ledger is immutable from here on.
func (t *Tracker) EndShift(actualCash money.Money) (*Ledger, error) {
	if !t.active.Open() {
		return nil, ErrNoActiveShift
	}
	ledger := t.active
	expected := ledger.ExpectedCash()
	variance := actualCash - expected
	ended := t.now()
	ledger.EndedAt = &ended
	ledger.ActualCash = &actualCash
	ledger.Expected = &expected
	ledger.Variance = &variance
	t.closed = append(t.closed, ledger)
	t.active = nil
	return ledger, nil
}

// Active returns the open shift, or nil when the drawer is closed.
func (t *Tracker) Active() *Ledger {
	if t.active.Open() {
		return t.active
	}
	return nil
}

// History returns the closed shifts, oldest first.
func (t *Tracker) History() []*Ledger {
	return append([]*Ledger(nil), t.closed...)
}
