package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// Reserve is an in-memory treasury: deposits grow the reserve and
// payouts shrink it, failing when the reserve cannot cover them.
type Reserve struct {
	mu      sync.Mutex
	balance balance.Balance
}

// NewReserve returns a treasury seeded with the given balance.
func NewReserve(seed balance.Balance) *Reserve {
	return &Reserve{balance: seed}
}

// Balance returns the current reserve.
func (r *Reserve) Balance() balance.Balance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance
}

func (r *Reserve) Deposit(_ context.Context, amount balance.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balance = r.balance.Add(amount)
	return nil
}

func (r *Reserve) Payout(_ context.Context, to engine.AccountID, amount balance.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balance.Cmp(amount) < 0 {
		return fmt.Errorf("reserve %s cannot cover payout of %s to %s",
			r.balance.String(), amount.String(), to)
	}
	r.balance = r.balance.Sub(amount)
	return nil
}
