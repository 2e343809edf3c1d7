package dispatch

import "sync/atomic"

// ReentrancyGuard rejects nested entry into a guarded section. The
// pool holds it across every state-mutating operation so a handler
// reached mid-operation cannot re-enter the ledger.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// NewReentrancyGuard returns an unheld guard.
func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{}
}

// Enter acquires the guard, or returns ErrReentrantCall if it is
// already held.
func (g *ReentrancyGuard) Enter() error {
	if !g.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the guard.
func (g *ReentrancyGuard) Exit() {
	g.entered.Store(false)
}

// Guarded runs fn while holding the guard.
func (g *ReentrancyGuard) Guarded(fn func() error) error {
	if err := g.Enter(); err != nil {
		return err
	}
	defer g.Exit()
	return fn()
}
