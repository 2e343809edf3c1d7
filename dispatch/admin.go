// Package dispatch provides the safety layer shared by the pool and
// merchant services: admin control with two-step transfer, pausing
// with a recorded reason, a reentrancy guard, and a named-route
// dispatcher.
package dispatch

import (
	"sync"

	"github.com/emberlabs/kiln/ledger/engine"
)

// AdminControl tracks the current admin and handles two-step admin
// transfer. The two-step handshake prevents transferring control to an
// identity nobody holds.
type AdminControl struct {
	mu      sync.RWMutex
	admin   engine.AccountID
	pending engine.AccountID
}

// NewAdminControl returns a control owned by the given admin.
func NewAdminControl(admin engine.AccountID) *AdminControl {
	return &AdminControl{admin: admin}
}

// Admin returns the current admin.
func (a *AdminControl) Admin() engine.AccountID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.admin
}

// PendingAdmin returns the proposed new admin, if any.
func (a *AdminControl) PendingAdmin() engine.AccountID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pending
}

// EnsureAdmin returns ErrNotAdmin unless the caller is the admin.
func (a *AdminControl) EnsureAdmin(caller engine.AccountID) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if caller != a.admin {
		return ErrNotAdmin
	}
	return nil
}

// Propose starts an admin transfer to the candidate. Admin only.
func (a *AdminControl) Propose(caller, candidate engine.AccountID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.admin {
		return ErrNotAdmin
	}
	a.pending = candidate
	return nil
}

// Accept completes a transfer; only the proposed admin may accept.
func (a *AdminControl) Accept(caller engine.AccountID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == "" {
		return ErrNoPendingAdmin
	}
	if caller != a.pending {
		return ErrNotPendingAdmin
	}
	a.admin = a.pending
	a.pending = ""
	return nil
}

// Cancel withdraws a pending transfer. Admin only.
func (a *AdminControl) Cancel(caller engine.AccountID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.admin {
		return ErrNotAdmin
	}
	if a.pending == "" {
		return ErrNoPendingAdmin
	}
	a.pending = ""
	return nil
}
