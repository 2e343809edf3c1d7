// Package referral provides engine.Directory implementations that
// resolve an account's referral ancestry.
package referral

import (
	"context"
	"sync"

	"github.com/emberlabs/kiln/ledger/engine"
)

// DefaultMaxDepth caps ancestor traversal. Credits beyond the nearest
// ancestor all land in the indirect coefficient, so a deep cap only
// bounds work, not correctness.
const DefaultMaxDepth = 20

// Static is an in-memory parent-map directory, for tests and
// single-node deployments.
type Static struct {
	mu       sync.RWMutex
	parents  map[engine.AccountID]engine.AccountID
	maxDepth int
}

// NewStatic returns an empty directory with the default depth cap.
func NewStatic() *Static {
	return &Static{
		parents:  make(map[engine.AccountID]engine.AccountID),
		maxDepth: DefaultMaxDepth,
	}
}

// SetParent records who referred the given account. A self-parent is
// ignored.
func (s *Static) SetParent(child, parent engine.AccountID) {
	if child == parent {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[child] = parent
}

// Ancestors returns the referral chain nearest-first. Accounts with no
// recorded referrer get an empty chain.
func (s *Static) Ancestors(_ context.Context, id engine.AccountID) ([]engine.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []engine.AccountID
	seen := map[engine.AccountID]bool{id: true}
	for cur := id; len(chain) < s.maxDepth; {
		parent, ok := s.parents[cur]
		if !ok || seen[parent] {
			break
		}
		chain = append(chain, parent)
		seen[parent] = true
		cur = parent
	}
	return chain, nil
}
