package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlabs/kiln/dispatch"
)

func TestAdminControl_TwoStepTransfer(t *testing.T) {
	ac := dispatch.NewAdminControl("alice")

	require.NoError(t, ac.EnsureAdmin("alice"))
	require.ErrorIs(t, ac.EnsureAdmin("bob"), dispatch.ErrNotAdmin)

	// Proposing does not change the admin.
	require.ErrorIs(t, ac.Propose("bob", "bob"), dispatch.ErrNotAdmin)
	require.NoError(t, ac.Propose("alice", "bob"))
	require.NoError(t, ac.EnsureAdmin("alice"))

	// Only the proposed admin may accept.
	require.ErrorIs(t, ac.Accept("mallory"), dispatch.ErrNotPendingAdmin)
	require.NoError(t, ac.Accept("bob"))
	require.NoError(t, ac.EnsureAdmin("bob"))
	require.ErrorIs(t, ac.EnsureAdmin("alice"), dispatch.ErrNotAdmin)

	require.ErrorIs(t, ac.Accept("bob"), dispatch.ErrNoPendingAdmin)
}

func TestAdminControl_Cancel(t *testing.T) {
	ac := dispatch.NewAdminControl("alice")

	require.ErrorIs(t, ac.Cancel("alice"), dispatch.ErrNoPendingAdmin)

	require.NoError(t, ac.Propose("alice", "bob"))
	require.ErrorIs(t, ac.Cancel("bob"), dispatch.ErrNotAdmin)
	require.NoError(t, ac.Cancel("alice"))
	require.ErrorIs(t, ac.Accept("bob"), dispatch.ErrNoPendingAdmin)
}

func TestPausable(t *testing.T) {
	p := dispatch.NewPausable()
	require.NoError(t, p.EnsureNotPaused())
	require.ErrorIs(t, p.Unpause(), dispatch.ErrNotPaused)

	p.Pause(dispatch.PauseEmergency)
	err := p.EnsureNotPaused()
	require.ErrorIs(t, err, dispatch.ErrPaused)
	assert.Contains(t, err.Error(), "emergency")

	paused, reason := p.Paused()
	assert.True(t, paused)
	assert.Equal(t, dispatch.PauseEmergency, reason)

	require.NoError(t, p.Unpause())
	require.NoError(t, p.EnsureNotPaused())
}

func TestReentrancyGuard(t *testing.T) {
	g := dispatch.NewReentrancyGuard()

	err := g.Guarded(func() error {
		return g.Guarded(func() error { return nil })
	})
	require.ErrorIs(t, err, dispatch.ErrReentrantCall)

	// The guard releases after the outer call.
	require.NoError(t, g.Guarded(func() error { return nil }))

	// It also releases when the body fails.
	boom := errors.New("boom")
	require.ErrorIs(t, g.Guarded(func() error { return boom }), boom)
	require.NoError(t, g.Guarded(func() error { return nil }))
}

func TestRouter_Dispatch(t *testing.T) {
	ac := dispatch.NewAdminControl("admin")
	r := dispatch.NewRouter(ac)
	ctx := context.Background()

	calls := 0
	require.ErrorIs(t,
		r.Register("intruder", "settle", func(context.Context) error { return nil }),
		dispatch.ErrNotAdmin)
	require.NoError(t, r.Register("admin", "settle", func(context.Context) error {
		calls++
		return nil
	}))
	require.ErrorIs(t,
		r.Register("admin", "settle", func(context.Context) error { return nil }),
		dispatch.ErrRouteExists)

	require.ErrorIs(t, r.Dispatch(ctx, "missing"), dispatch.ErrRouteNotFound)

	require.NoError(t, r.Dispatch(ctx, "settle"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), r.Nonce())

	require.NoError(t, r.Deactivate("admin", "settle"))
	require.ErrorIs(t, r.Dispatch(ctx, "settle"), dispatch.ErrRouteInactive)
	assert.Equal(t, uint64(1), r.Nonce(), "failed dispatch must not bump the nonce")

	require.NoError(t, r.Activate("admin", "settle"))
	require.NoError(t, r.Dispatch(ctx, "settle"))
	assert.Equal(t, uint64(2), r.Nonce())
}

func TestRouter_HandlerErrorDoesNotBumpNonce(t *testing.T) {
	ac := dispatch.NewAdminControl("admin")
	r := dispatch.NewRouter(ac)

	boom := errors.New("boom")
	require.NoError(t, r.Register("admin", "failing", func(context.Context) error { return boom }))
	require.ErrorIs(t, r.Dispatch(context.Background(), "failing"), boom)
	assert.Equal(t, uint64(0), r.Nonce())
}
