package dispatch

import (
	"fmt"
	"sync"
)

// PauseReason explains why operations were halted.
type PauseReason string

const (
	PauseMaintenance PauseReason = "maintenance"
	PauseEmergency   PauseReason = "emergency"
	PauseUpgrade     PauseReason = "upgrade"
)

// Pausable halts state-mutating operations while paused.
type Pausable struct {
	mu     sync.RWMutex
	paused bool
	reason PauseReason
}

// NewPausable returns an unpaused instance.
func NewPausable() *Pausable {
	return &Pausable{}
}

// Paused reports the pause state and reason.
func (p *Pausable) Paused() (bool, PauseReason) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused, p.reason
}

// Pause halts operations with a reason. Pausing an already paused
// instance just updates the reason.
func (p *Pausable) Pause(reason PauseReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	p.reason = reason
}

// Unpause resumes operations.
func (p *Pausable) Unpause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return ErrNotPaused
	}
	p.paused = false
	p.reason = ""
	return nil
}

// EnsureNotPaused returns ErrPaused, annotated with the reason, while
// paused.
func (p *Pausable) EnsureNotPaused() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.paused {
		return fmt.Errorf("%w: %s", ErrPaused, p.reason)
	}
	return nil
}
