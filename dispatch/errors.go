package dispatch

import "errors"

var (
	// ErrNotAdmin is returned when an admin-gated operation is
	// attempted by anyone else.
	ErrNotAdmin = errors.New("caller is not the admin")

	// ErrNoPendingAdmin is returned when an admin transfer is
	// accepted or cancelled without a pending proposal.
	ErrNoPendingAdmin = errors.New("no pending admin transfer")

	// ErrNotPendingAdmin is returned when someone other than the
	// proposed admin tries to accept a transfer.
	ErrNotPendingAdmin = errors.New("caller is not the proposed admin")

	// ErrPaused is returned by guarded operations while the
	// dispatcher is paused.
	ErrPaused = errors.New("operations are paused")

	// ErrNotPaused is returned when unpausing an unpaused dispatcher.
	ErrNotPaused = errors.New("operations are not paused")

	// ErrReentrantCall is returned when a guarded section is entered
	// while already held.
	ErrReentrantCall = errors.New("reentrant call")

	// ErrRouteNotFound is returned when dispatching to an
	// unregistered route.
	ErrRouteNotFound = errors.New("route not found")

	// ErrRouteInactive is returned when dispatching to a deactivated
	// route.
	ErrRouteInactive = errors.New("route is inactive")

	// ErrRouteExists is returned when registering a duplicate route
	// name.
	ErrRouteExists = errors.New("route already registered")
)
