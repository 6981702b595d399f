package transaction

import (
	"fmt"
	"sync"
)

// Store is the in-memory transaction log. Records are stored by value and
// returned as deep copies so callers can never mutate history.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]Transaction
	order []string
}

// NewStore constructs an empty transaction log.
func NewStore() *Store {
	return &Store{byID: make(map[string]Transaction)}
}

// Add appends a settled transaction to the log.
func (s *Store) Add(tx Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[tx.ID]; !exists {
		s.order = append(s.order, tx.ID)
	}
	s.byID[tx.ID] = tx.clone()
}

// Get returns a copy of the transaction with the given id.
func (s *Store) Get(id string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.byID[id]
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return tx.clone(), nil
}

// List returns copies of all transactions, oldest first.
func (s *Store) List() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].clone())
	}
	return out
}

// Len reports the number of recorded transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Transition checks and mutates a stored transaction under a single write
// lock. Concurrent transitions of the same record serialise here, so a state
// check inside mutate cannot be invalidated before the write lands.
func (s *Store) Transition(id string, mutate func(tx *Transaction) error) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[id]
	if !ok {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	next := stored.clone()
	if err := mutate(&next); err != nil {
		return Transaction{}, err
	}
	s.byID[id] = next.clone()
	return next, nil
}
