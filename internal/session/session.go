// Package session scopes a cart, split and shift to one terminal. The engine
// packages are not internally thread-safe; every access goes through the
// session lock.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/shift"
	"github.com/noah-isme/pos-terminal/internal/split"
)

// ErrNotFound indicates the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// ErrSplitNotActive is returned for split operations without an active split.
var ErrSplitNotActive = errors.New("no active split payment")

// ErrSplitActive is returned when starting a split while one is in progress.
var ErrSplitActive = errors.New("split payment already in progress")

// Session is the working state of one terminal: the active cart, the shift
// drawer tracker and, during split tender, the payment reconciler.
type Session struct {
	ID         string
	TerminalID string
	Cart       *cart.Ledger
	Shift      *shift.Tracker
	CreatedAt  time.Time

	mu    sync.Mutex
	split *split.Reconciler
}

// Lock serialises access to the session's engine state.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// BeginSplit freezes the current settlement total and opens a split. The
// caller must hold the session lock.
func (s *Session) BeginSplit() (*split.Reconciler, error) {
	if s.split != nil {
		return nil, ErrSplitActive
	}
	s.split = split.NewReconciler(s.Cart.Settlement().Total)
	return s.split, nil
}

// Split returns the active reconciler. The caller must hold the session lock.
func (s *Session) Split() (*split.Reconciler, error) {
	if s.split == nil {
		return nil, ErrSplitNotActive
	}
	return s.split, nil
}

// EndSplit discards the active reconciler, if any. The caller must hold the
// session lock.
func (s *Session) EndSplit() {
	s.split = nil
}

// Registry tracks the open terminal sessions.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	taxPercent decimal.Decimal
	now        func() time.Time
}

// NewRegistry constructs a registry; new carts start at the default tax rate.
func NewRegistry(defaultTaxPercent decimal.Decimal) *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		taxPercent: defaultTaxPercent,
		now:        time.Now,
	}
}

// Open creates a session for the terminal, with a fresh cart and drawer.
func (r *Registry) Open(terminalID string) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		TerminalID: strings.TrimSpace(terminalID),
		Cart:       cart.NewLedger(r.taxPercent),
		Shift:      shift.NewTracker(),
		CreatedAt:  r.now(),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get resolves a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// Close removes a session from the registry.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	delete(r.sessions, id)
	return nil
}

// CashDrawerNotifier feeds completed and refunded cash sales into the shift
// tracker of the originating session. Sales on sessions without an open
// shift are dropped silently: the drawer cannot owe money it never held.
//
// Event fan-out is synchronous. Completed events come from checkout, on the
// goroutine that already holds the originating session's lock, so the
// notifier must not lock again there. Refunded events come from the
// transaction endpoint, which is not session-scoped, so the notifier takes
// the session lock itself before touching the tracker.
type CashDrawerNotifier struct {
	Registry *Registry
}

// Notify implements events.Notifier.
func (n CashDrawerNotifier) Notify(_ context.Context, event events.Event) error {
	if n.Registry == nil {
		return errors.New("session: registry not configured")
	}
	var sessionID string
	var cash money.Money
	var needLock bool
	switch event.Topic {
	case events.TopicTransactionCompleted:
		var payload events.TransactionCompletedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("session: decode payload: %w", err)
		}
		sessionID, cash = payload.SessionID, payload.CashAmount
	case events.TopicTransactionRefunded:
		var payload events.TransactionRefundedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("session: decode payload: %w", err)
		}
		sessionID, cash = payload.SessionID, payload.CashAmount
		needLock = true
	default:
		return nil
	}
	if sessionID == "" || cash == 0 {
		return nil
	}
	s, err := n.Registry.Get(sessionID)
	if err != nil {
		return nil
	}
	if needLock {
		s.Lock()
		defer s.Unlock()
	}
	if err := s.Shift.RecordSale(cash); err != nil && !errors.Is(err, shift.ErrNoActiveShift) {
		return err
	}
	return nil
}
