package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/emberlabs/kiln/ledger/engine"
)

// Handler executes a named route.
type Handler func(ctx context.Context) error

type route struct {
	handler Handler
	active  bool
}

// Router dispatches named routes. Registration and activation are
// admin-gated; every successful dispatch increments a call nonce.
type Router struct {
	mu     sync.Mutex
	admin  *AdminControl
	routes map[string]*route
	nonce  uint64
}

// NewRouter returns an empty router gated by the given admin control.
func NewRouter(admin *AdminControl) *Router {
	return &Router{
		admin:  admin,
		routes: make(map[string]*route),
	}
}

// Register adds a route, active immediately. Admin only; duplicate
// names are rejected.
func (r *Router) Register(caller engine.AccountID, name string, h Handler) error {
	if err := r.admin.EnsureAdmin(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[name]; exists {
		return fmt.Errorf("%w: %s", ErrRouteExists, name)
	}
	r.routes[name] = &route{handler: h, active: true}
	return nil
}

// Activate re-enables a route. Admin only.
func (r *Router) Activate(caller engine.AccountID, name string) error {
	return r.setActive(caller, name, true)
}

// Deactivate disables a route without unregistering it. Admin only.
func (r *Router) Deactivate(caller engine.AccountID, name string) error {
	return r.setActive(caller, name, false)
}

func (r *Router) setActive(caller engine.AccountID, name string, active bool) error {
	if err := r.admin.EnsureAdmin(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.routes[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, name)
	}
	rt.active = active
	return nil
}

// Dispatch runs the named route and bumps the call nonce on success.
func (r *Router) Dispatch(ctx context.Context, name string) error {
	r.mu.Lock()
	rt, ok := r.routes[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRouteNotFound, name)
	}
	if !rt.active {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRouteInactive, name)
	}
	handler := rt.handler
	r.mu.Unlock()

	if err := handler(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.nonce++
	r.mu.Unlock()
	return nil
}

// Nonce returns the number of successful dispatches.
func (r *Router) Nonce() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nonce
}
