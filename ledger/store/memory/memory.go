// Package memory provides a map-backed engine store for tests and
// single-node deployments.
package memory

import (
	"context"
	"sync"

	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// Store is an in-memory engine.Store. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	accounts map[engine.AccountID]*engine.Account
	total    balance.Balance
}

// New returns an empty store.
func New() *Store {
	return &Store{accounts: make(map[engine.AccountID]*engine.Account)}
}

func (s *Store) GetAccount(_ context.Context, id engine.AccountID) (*engine.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return acct.Clone(), nil
}

func (s *Store) PutAccount(_ context.Context, id engine.AccountID, account *engine.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[id] = account.Clone()
	return nil
}

func (s *Store) TotalBurned(_ context.Context) (balance.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}

func (s *Store) AddToTotalBurned(_ context.Context, delta balance.Balance) (balance.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = s.total.Add(delta)
	return s.total, nil
}

func (s *Store) SetTotalBurned(_ context.Context, total balance.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
	return nil
}

// Len returns the number of accounts, for tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}
