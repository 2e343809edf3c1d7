package engine_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlabs/kiln/api/metrics"
	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
	"github.com/emberlabs/kiln/ledger/referral"
	"github.com/emberlabs/kiln/ledger/store/memory"
)

const controller = engine.AccountID("controller")

type fixture struct {
	engine *engine.Engine
	store  *memory.Store
	clock  *clockwork.FakeClock
	dir    *referral.Static
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	store := memory.New()
	dir := referral.NewStatic()

	eng, err := engine.New(engine.Config{
		Controller: controller,
		Logger:     slog.Default(),
		Clock:      clock,
		Store:      store,
		Directory:  dir,
	})
	require.NoError(t, err)

	return &fixture{engine: eng, store: store, clock: clock, dir: dir}
}

func TestConfig_Validate(t *testing.T) {
	cfg := engine.Config{Controller: controller, Store: memory.New(), Logger: slog.Default()}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(engine.DefaultBurnUnit), cfg.BurnUnit)
	assert.Equal(t, int64(engine.DefaultDayMilliseconds), cfg.DayMilliseconds)
	assert.Equal(t, uint64(engine.DefaultRewardMultiple), cfg.RewardMultiple)
	assert.Equal(t, 0, cfg.BurnMinimum.Cmp(balance.FromUint64(100)))
	assert.NotNil(t, cfg.Clock)

	require.Error(t, (&engine.Config{Store: memory.New(), Logger: slog.Default()}).Validate())
	require.Error(t, (&engine.Config{Controller: controller, Logger: slog.Default()}).Validate())
	require.Error(t, (&engine.Config{Controller: controller, Store: memory.New()}).Validate())
}

func TestCreditBurn_RestrictedToController(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreditBurn(context.Background(), "intruder", "alice", balance.FromUint64(100))
	require.ErrorIs(t, err, engine.ErrRestrictedCaller)
}

func TestCreditBurn_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(99))
	require.ErrorIs(t, err, engine.ErrBurnAmountInsufficient)

	_, err = f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(150))
	require.ErrorIs(t, err, engine.ErrNotMultipleOfUnit)
}

func TestCreditBurn_CreatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	delta, err := f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(100))
	require.NoError(t, err)
	assert.Equal(t, uint64(300), delta.Uint64())

	acct, err := f.engine.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), acct.AmountBurned.Uint64())
	assert.Equal(t, uint64(300), acct.BalanceDue.Uint64())
	assert.True(t, acct.BalancePaid.IsZero())
	assert.Equal(t, engine.Timestamp(1_700_000_000_000), acct.LastBurn)
	assert.Equal(t, acct.LastBurn, acct.LastInteraction)
	assert.Nil(t, acct.LastWithdrawal)

	total, err := f.engine.TotalBurned(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), total.Uint64())
}

func TestGetAccount_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.GetAccount(context.Background(), "nobody")
	require.ErrorIs(t, err, engine.ErrNoAccountFound)
}

func TestWithdraw_NoAccount(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.engine.Withdraw(context.Background(), controller, "nobody")
	require.ErrorIs(t, err, engine.ErrNoAccountFound)
}

// Burn 100 at t=0, advance two days at the base rate of 8 per mille:
// floor(0.008 × 100 × 2) = 1 pays out, leaving 299 due.
func TestWithdraw_TwoDayScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(100))
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)

	paid, when, err := f.engine.Withdraw(ctx, controller, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), paid.Uint64())
	assert.Equal(t, engine.Timestamp(f.clock.Now().UnixMilli()), when)

	acct, err := f.engine.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(299), acct.BalanceDue.Uint64())
	assert.Equal(t, uint64(1), acct.BalancePaid.Uint64())
	require.NotNil(t, acct.LastWithdrawal)
	assert.Equal(t, when, *acct.LastWithdrawal)
	assert.Equal(t, when, acct.LastInteraction)
}

func TestWithdraw_CooldownGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(100))
	require.NoError(t, err)

	// Nothing accrues within the first day.
	f.clock.Advance(23 * time.Hour)
	_, _, err = f.engine.Withdraw(ctx, controller, "alice")
	require.ErrorIs(t, err, engine.ErrWithdrawalNotAllowed)

	f.clock.Advance(25 * time.Hour)
	_, _, err = f.engine.Withdraw(ctx, controller, "alice")
	require.NoError(t, err)

	// A successful withdrawal resets the gate.
	_, _, err = f.engine.Withdraw(ctx, controller, "alice")
	require.ErrorIs(t, err, engine.ErrWithdrawalNotAllowed)
}

func TestWithdraw_ClampedToBalanceDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(100))
	require.NoError(t, err)

	// 400 days accrues a raw 320, above the 300 due.
	f.clock.Advance(400 * 24 * time.Hour)

	paid, _, err := f.engine.Withdraw(ctx, controller, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), paid.Uint64())

	acct, err := f.engine.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, acct.BalanceDue.IsZero())
	assert.Equal(t, uint64(300), acct.BalancePaid.Uint64())

	// Fully drained accounts accrue nothing further.
	f.clock.Advance(48 * time.Hour)
	_, _, err = f.engine.Withdraw(ctx, controller, "alice")
	require.ErrorIs(t, err, engine.ErrWithdrawalNotAllowed)
}

// balance_paid + balance_due stays pinned at the reward multiple of
// amount_burned across burns and withdrawals.
func TestWithdraw_BalanceConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(10_000))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		f.clock.Advance(3 * 24 * time.Hour)
		_, _, err := f.engine.Withdraw(ctx, controller, "alice")
		require.NoError(t, err)

		acct, err := f.engine.GetAccount(ctx, "alice")
		require.NoError(t, err)
		sum := acct.BalancePaid.Add(acct.BalanceDue)
		assert.Equal(t, 0, sum.Cmp(acct.AmountBurned.MulUint64(3)))
	}
}

func TestDailyReturnRate_HalvingLadder(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		total string
		parts uint64
	}{
		{"0", 8_000_000_000_000_000},
		{"200000000000000000000", 8_000_000_000_000_000}, // at the threshold, still base
		{"250000000000000000000", 4_000_000_000_000_000}, // one halving
		{"350000000000000000000", 2_000_000_000_000_000}, // two halvings
		{"450000000000000000000", 1_000_000_000_000_000}, // three halvings
	}
	for _, tc := range cases {
		rate := f.engine.DailyReturnRate(balance.MustFromDecimal(tc.total))
		assert.Equal(t, tc.parts, rate.Parts(), "total=%s", tc.total)
	}

	// Far past the ladder the rate decays to exactly zero.
	huge := balance.MustFromDecimal("200000000000000000000").Add(
		balance.MustFromDecimal("100000000000000000000").MulUint64(80))
	assert.True(t, f.engine.DailyReturnRate(huge).IsZero())
}

func TestWithdraw_ReferralFanOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// child was referred by p, p by g1, g1 by g2.
	f.dir.SetParent("child", "p")
	f.dir.SetParent("p", "g1")
	f.dir.SetParent("g1", "g2")

	_, err := f.engine.CreditBurn(ctx, controller, "child", balance.FromUint64(1_000_000))
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	creditsBefore := testutil.ToFloat64(metrics.ReferralCreditsTotal)

	// base = 0.008 × 1_000_000 × 1 = 8000
	paid, _, err := f.engine.Withdraw(ctx, controller, "child")
	require.NoError(t, err)
	assert.Equal(t, uint64(8000), paid.Uint64())

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.ReferralCreditsTotal)-creditsBefore,
		"one credit per ancestor")

	// The nearest ancestor takes the direct coefficient, everyone
	// above it the indirect one, all lazily created.
	p, err := f.engine.GetAccount(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, uint64(8000), p.ReferralCoefficients.Direct.Uint64())
	assert.True(t, p.ReferralCoefficients.Indirect.IsZero())

	for _, id := range []engine.AccountID{"g1", "g2"} {
		acct, err := f.engine.GetAccount(ctx, id)
		require.NoError(t, err)
		assert.True(t, acct.ReferralCoefficients.Direct.IsZero(), "%s", id)
		assert.Equal(t, uint64(8000), acct.ReferralCoefficients.Indirect.Uint64(), "%s", id)
	}
}

func TestWithdraw_ReferralBoostAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.dir.SetParent("child", "p")

	_, err := f.engine.CreditBurn(ctx, controller, "p", balance.FromUint64(10_000))
	require.NoError(t, err)
	_, err = f.engine.CreditBurn(ctx, controller, "child", balance.FromUint64(100_000))
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	// child's base of 800 lands on p's direct coefficient.
	_, _, err = f.engine.Withdraw(ctx, controller, "child")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	// p: base = 0.008 × 10_000 × 2 = 160, boost = 10% of 800 = 80.
	paid, _, err := f.engine.Withdraw(ctx, controller, "p")
	require.NoError(t, err)
	assert.Equal(t, uint64(240), paid.Uint64())

	acct, err := f.engine.GetAccount(ctx, "p")
	require.NoError(t, err)
	assert.True(t, acct.ReferralCoefficients.Direct.IsZero(), "coefficients reset on withdrawal")
	assert.True(t, acct.ReferralCoefficients.Indirect.IsZero())
}

// A boost above the balance due pays out the balance due exactly; the
// excess is forfeited rather than carried to the next period.
func TestWithdraw_BoostExcessForfeited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.dir.SetParent("child", "p")

	_, err := f.engine.CreditBurn(ctx, controller, "p", balance.FromUint64(100))
	require.NoError(t, err)
	_, err = f.engine.CreditBurn(ctx, controller, "child", balance.FromUint64(10_000_000))
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	// child's base of 80_000 gives p a boost of 8_000, far above p's
	// 300 due.
	_, _, err = f.engine.Withdraw(ctx, controller, "child")
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)

	paid, _, err := f.engine.Withdraw(ctx, controller, "p")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), paid.Uint64())

	acct, err := f.engine.GetAccount(ctx, "p")
	require.NoError(t, err)
	assert.True(t, acct.BalanceDue.IsZero())
	assert.True(t, acct.ReferralCoefficients.Direct.IsZero(), "forfeited boost does not carry forward")
}

func TestWithdraw_DirectoryFailureIsBestEffort(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	store := memory.New()
	eng, err := engine.New(engine.Config{
		Controller: controller,
		Logger:     slog.Default(),
		Clock:      clock,
		Store:      store,
		Directory:  failingDirectory{},
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = eng.CreditBurn(ctx, controller, "alice", balance.FromUint64(100))
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)

	paid, _, err := eng.Withdraw(ctx, controller, "alice")
	require.NoError(t, err, "directory failure must not fail the withdrawal")
	assert.Equal(t, uint64(1), paid.Uint64())
}

type failingDirectory struct{}

func (failingDirectory) Ancestors(context.Context, engine.AccountID) ([]engine.AccountID, error) {
	return nil, assert.AnError
}

func TestSetDayMilliseconds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.engine.SetDayMilliseconds("intruder", 1000), engine.ErrRestrictedCaller)
	require.Error(t, f.engine.SetDayMilliseconds(controller, 0))

	require.NoError(t, f.engine.SetDayMilliseconds(controller, 1000))

	_, err := f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(10_000))
	require.NoError(t, err)

	// Two accrual "days" now pass in two seconds.
	f.clock.Advance(2 * time.Second)
	paid, _, err := f.engine.Withdraw(ctx, controller, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(160), paid.Uint64())
}

func TestResetBurnData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t,
		f.engine.ResetBurnData(ctx, "intruder", "alice", balance.FromUint64(100)),
		engine.ErrRestrictedCaller)
	require.ErrorIs(t,
		f.engine.ResetBurnData(ctx, controller, "nobody", balance.FromUint64(100)),
		engine.ErrNoAccountFound)

	_, err := f.engine.CreditBurn(ctx, controller, "alice", balance.FromUint64(500))
	require.NoError(t, err)
	_, err = f.engine.CreditBurn(ctx, controller, "bob", balance.FromUint64(300))
	require.NoError(t, err)

	require.NoError(t, f.engine.ResetBurnData(ctx, controller, "alice", balance.FromUint64(200)))

	acct, err := f.engine.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(200), acct.AmountBurned.Uint64())
	assert.Equal(t, uint64(600), acct.BalanceDue.Uint64())

	// The global counter moves by the correction delta.
	total, err := f.engine.TotalBurned(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), total.Uint64())
}
