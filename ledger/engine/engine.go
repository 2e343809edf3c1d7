// Package engine implements a burn ledger with a halving daily return
// curve and referral distribution.
//
// Participants burn tokens and accrue a claim worth a fixed multiple
// of everything they burned. The claim pays out over time at a daily
// rate that halves as the ledger's total burn crosses successive
// thresholds. Each withdrawal also credits the withdrawer's referral
// ancestors, who convert those credits into a boost on their own next
// withdrawal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/emberlabs/kiln/api/metrics"
	"github.com/emberlabs/kiln/ledger/balance"
)

const (
	// DefaultBurnUnit is the granularity every burn must be a
	// multiple of.
	DefaultBurnUnit = 100

	// DefaultDayMilliseconds is the length of an accrual day.
	DefaultDayMilliseconds = 86_400_000

	// DefaultRewardMultiple is the claim created per token burned.
	DefaultRewardMultiple = 3

	// DefaultDirectReferralPercent is the boost share of a direct
	// descendant's base extraction.
	DefaultDirectReferralPercent = 10

	// DefaultIndirectReferralPercent is the boost share of a deeper
	// descendant's base extraction.
	DefaultIndirectReferralPercent = 1
)

// Base daily return of 8 per mille, in effect until total burn crosses
// the first threshold.
var baseDailyRate = balance.RateFromRational(8, 1000)

// DefaultFirstThreshold returns the total-burn level at which the
// first halving takes effect (2×10^20).
func DefaultFirstThreshold() balance.Balance {
	return balance.MustFromDecimal("200000000000000000000")
}

// DefaultHalvingStep returns the additional total burn per further
// halving (10^20).
func DefaultHalvingStep() balance.Balance {
	return balance.MustFromDecimal("100000000000000000000")
}

// Store persists accounts and the ledger-wide burn counter. A missing
// account is reported as (nil, nil), not an error.
type Store interface {
	GetAccount(ctx context.Context, id AccountID) (*Account, error)
	PutAccount(ctx context.Context, id AccountID, account *Account) error
	TotalBurned(ctx context.Context) (balance.Balance, error)
	AddToTotalBurned(ctx context.Context, delta balance.Balance) (balance.Balance, error)
	SetTotalBurned(ctx context.Context, total balance.Balance) error
}

// Directory resolves an account's referral ancestors, nearest first.
// An empty result or an error means the referral step is skipped; a
// directory failure never fails a withdrawal.
type Directory interface {
	Ancestors(ctx context.Context, id AccountID) ([]AccountID, error)
}

// Config carries the ledger parameters and collaborators.
type Config struct {
	// Controller is the only caller permitted to execute
	// state-mutating operations.
	Controller AccountID

	// BurnMinimum is the smallest acceptable burn. Defaults to the
	// burn unit.
	BurnMinimum balance.Balance

	// BurnUnit is the granularity every burn must be a multiple of.
	BurnUnit uint64

	// DayMilliseconds is the accrual day length. Shortened on test
	// deployments to accelerate the curve.
	DayMilliseconds int64

	// FirstThreshold is the total-burn level of the first halving.
	FirstThreshold balance.Balance

	// HalvingStep is the additional total burn per further halving.
	HalvingStep balance.Balance

	// RewardMultiple is the claim created per token burned.
	RewardMultiple uint64

	DirectReferralPercent   uint64
	IndirectReferralPercent uint64

	Logger    *slog.Logger
	Clock     clockwork.Clock
	Store     Store
	Directory Directory
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.Controller == "" {
		return errors.New("controller is required")
	}
	if c.Store == nil {
		return errors.New("store is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.BurnUnit == 0 {
		c.BurnUnit = DefaultBurnUnit
	}
	if c.BurnMinimum.IsZero() {
		c.BurnMinimum = balance.FromUint64(c.BurnUnit)
	}
	if c.DayMilliseconds == 0 {
		c.DayMilliseconds = DefaultDayMilliseconds
	}
	if c.DayMilliseconds < 0 {
		return errors.New("day milliseconds must be positive")
	}
	if c.FirstThreshold.IsZero() {
		c.FirstThreshold = DefaultFirstThreshold()
	}
	if c.HalvingStep.IsZero() {
		c.HalvingStep = DefaultHalvingStep()
	}
	if c.RewardMultiple == 0 {
		c.RewardMultiple = DefaultRewardMultiple
	}
	if c.DirectReferralPercent == 0 {
		c.DirectReferralPercent = DefaultDirectReferralPercent
	}
	if c.IndirectReferralPercent == 0 {
		c.IndirectReferralPercent = DefaultIndirectReferralPercent
	}
	return nil
}

// Engine executes ledger operations. Mutations are serialized by an
// internal mutex, matching the one-call-at-a-time model the ledger's
// accounting assumes.
type Engine struct {
	cfg Config
	log *slog.Logger

	mu sync.Mutex
}

// New validates the config and returns a ready engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Engine{
		cfg: cfg,
		log: cfg.Logger.With("component", "ledger-engine"),
	}, nil
}

func (e *Engine) now() Timestamp {
	return Timestamp(e.cfg.Clock.Now().UnixMilli())
}

func (e *Engine) restricted(caller AccountID) error {
	if caller != e.cfg.Controller {
		return ErrRestrictedCaller
	}
	return nil
}

// CreditBurn records a burn against an account, creating the account
// on first contact, and returns the claim added to its balance due.
// Restricted to the controller.
func (e *Engine) CreditBurn(ctx context.Context, caller, account AccountID, amount balance.Balance) (balance.Balance, error) {
	if err := e.restricted(caller); err != nil {
		return balance.Zero(), err
	}
	if amount.Cmp(e.cfg.BurnMinimum) < 0 {
		return balance.Zero(), ErrBurnAmountInsufficient
	}
	if amount.ModUint64(e.cfg.BurnUnit) != 0 {
		return balance.Zero(), ErrNotMultipleOfUnit
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.cfg.Store.GetAccount(ctx, account)
	if err != nil {
		return balance.Zero(), fmt.Errorf("failed to load account %s: %w", account, err)
	}
	now := e.now()
	if acct == nil {
		acct = &Account{CreationTime: now, LastInteraction: now}
	}

	delta := amount.MulUint64(e.cfg.RewardMultiple)
	acct.AmountBurned = acct.AmountBurned.Add(amount)
	acct.BalanceDue = acct.BalanceDue.Add(delta)
	acct.LastBurn = now
	acct.LastInteraction = now

	if err := e.cfg.Store.PutAccount(ctx, account, acct); err != nil {
		return balance.Zero(), fmt.Errorf("failed to store account %s: %w", account, err)
	}
	total, err := e.cfg.Store.AddToTotalBurned(ctx, amount)
	if err != nil {
		return balance.Zero(), fmt.Errorf("failed to update total burned: %w", err)
	}

	e.log.Info("burn credited",
		"account", account,
		"amount", amount.String(),
		"balance_due", acct.BalanceDue.String(),
		"total_burned", total.String(),
	)
	return delta, nil
}

// Withdraw pays out the account's accrued allowance plus its referral
// boost, clamped to its balance due, then distributes the pre-boost
// base to the account's ancestors. Restricted to the controller.
//
// Any boosted amount above the balance due is forfeited, not carried
// forward.
func (e *Engine) Withdraw(ctx context.Context, caller, account AccountID) (balance.Balance, Timestamp, error) {
	if err := e.restricted(caller); err != nil {
		return balance.Zero(), 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.cfg.Store.GetAccount(ctx, account)
	if err != nil {
		return balance.Zero(), 0, fmt.Errorf("failed to load account %s: %w", account, err)
	}
	if acct == nil {
		return balance.Zero(), 0, ErrNoAccountFound
	}

	totalBurned, err := e.cfg.Store.TotalBurned(ctx)
	if err != nil {
		return balance.Zero(), 0, fmt.Errorf("failed to load total burned: %w", err)
	}

	now := e.now()
	base := e.BaseExtraction(acct, totalBurned, now)
	if base.IsZero() {
		return balance.Zero(), 0, ErrWithdrawalNotAllowed
	}

	boost := percentFloor(acct.ReferralCoefficients.Direct, e.cfg.DirectReferralPercent).
		Add(percentFloor(acct.ReferralCoefficients.Indirect, e.cfg.IndirectReferralPercent))
	total := base.Add(boost).Min(acct.BalanceDue)

	acct.BalanceDue = acct.BalanceDue.Sub(total)
	acct.BalancePaid = acct.BalancePaid.Add(total)
	acct.LastWithdrawal = &now
	acct.LastInteraction = now
	acct.ReferralCoefficients = ReferralCoefficients{}

	if err := e.cfg.Store.PutAccount(ctx, account, acct); err != nil {
		return balance.Zero(), 0, fmt.Errorf("failed to store account %s: %w", account, err)
	}

	e.distributeToAncestors(ctx, account, base, now)

	e.log.Info("withdrawal executed",
		"account", account,
		"base", base.String(),
		"boost", boost.String(),
		"paid", total.String(),
		"balance_due", acct.BalanceDue.String(),
	)
	return total, now, nil
}

// distributeToAncestors credits the pre-boost base to the withdrawing
// account's ancestors: the nearest ancestor's direct coefficient, every
// further ancestor's indirect coefficient. Best effort; a directory or
// store failure is logged and skipped.
func (e *Engine) distributeToAncestors(ctx context.Context, account AccountID, base balance.Balance, now Timestamp) {
	if e.cfg.Directory == nil {
		return
	}
	ancestors, err := e.cfg.Directory.Ancestors(ctx, account)
	if err != nil {
		e.log.Warn("ancestor lookup failed, skipping referral distribution", "account", account, "error", err)
		return
	}
	for i, ancestor := range ancestors {
		acct, err := e.cfg.Store.GetAccount(ctx, ancestor)
		if err != nil {
			e.log.Warn("failed to load ancestor account", "ancestor", ancestor, "error", err)
			continue
		}
		if acct == nil {
			acct = &Account{CreationTime: now, LastInteraction: now}
		}
		if i == 0 {
			acct.ReferralCoefficients.Direct = acct.ReferralCoefficients.Direct.Add(base)
		} else {
			acct.ReferralCoefficients.Indirect = acct.ReferralCoefficients.Indirect.Add(base)
		}
		if err := e.cfg.Store.PutAccount(ctx, ancestor, acct); err != nil {
			e.log.Warn("failed to store ancestor account", "ancestor", ancestor, "error", err)
			continue
		}
		metrics.ReferralCreditsTotal.Inc()
	}
}

// BaseExtraction computes the allowance accrued since the account's
// last interaction: whole elapsed days × the current daily rate of its
// amount burned, linear and clamped to the balance due. Zero whole
// days means zero allowance.
func (e *Engine) BaseExtraction(acct *Account, totalBurned balance.Balance, now Timestamp) balance.Balance {
	elapsed := int64(now) - int64(acct.LastInteraction)
	if elapsed < e.cfg.DayMilliseconds {
		return balance.Zero()
	}
	days := uint64(elapsed / e.cfg.DayMilliseconds)

	rate := e.DailyReturnRate(totalBurned)
	allowance := rate.MulFloor(acct.AmountBurned.MulUint64(days))
	return allowance.Min(acct.BalanceDue)
}

// DailyReturnRate returns the rate in effect at the given total burn:
// 8 per mille up to the first threshold, halved once per step beyond
// it.
func (e *Engine) DailyReturnRate(totalBurned balance.Balance) balance.Rate {
	if totalBurned.Cmp(e.cfg.FirstThreshold) <= 0 {
		return baseDailyRate
	}
	excess := totalBurned.Sub(e.cfg.FirstThreshold)
	reductions := excess.Div(e.cfg.HalvingStep).Uint64() + 1
	if reductions >= 64 {
		// The divisor would overflow uint64 and the rate is zero at
		// far smaller reductions anyway.
		return balance.RateFromParts(0)
	}
	return baseDailyRate.DivUint64(uint64(1) << reductions)
}

// GetAccount returns a copy of the account, or ErrNoAccountFound.
func (e *Engine) GetAccount(ctx context.Context, account AccountID) (*Account, error) {
	acct, err := e.cfg.Store.GetAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", account, err)
	}
	if acct == nil {
		return nil, ErrNoAccountFound
	}
	return acct.Clone(), nil
}

// TotalBurned returns the ledger-wide burn counter.
func (e *Engine) TotalBurned(ctx context.Context) (balance.Balance, error) {
	return e.cfg.Store.TotalBurned(ctx)
}

// SetDayMilliseconds overrides the accrual day length. Restricted to
// the controller; used on accelerated test deployments.
func (e *Engine) SetDayMilliseconds(caller AccountID, ms int64) error {
	if err := e.restricted(caller); err != nil {
		return err
	}
	if ms <= 0 {
		return errors.New("day milliseconds must be positive")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.DayMilliseconds = ms
	return nil
}

// ResetBurnData rewrites an account's burn record to the given amount,
// setting its balance due to the full reward multiple and adjusting
// the ledger-wide counter. Correction tool; restricted to the
// controller.
func (e *Engine) ResetBurnData(ctx context.Context, caller, account AccountID, amountBurned balance.Balance) error {
	if err := e.restricted(caller); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acct, err := e.cfg.Store.GetAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to load account %s: %w", account, err)
	}
	if acct == nil {
		return ErrNoAccountFound
	}

	total, err := e.cfg.Store.TotalBurned(ctx)
	if err != nil {
		return fmt.Errorf("failed to load total burned: %w", err)
	}
	total = total.Sub(acct.AmountBurned).Add(amountBurned)

	old := acct.AmountBurned
	acct.AmountBurned = amountBurned
	acct.BalanceDue = amountBurned.MulUint64(e.cfg.RewardMultiple)

	if err := e.cfg.Store.PutAccount(ctx, account, acct); err != nil {
		return fmt.Errorf("failed to store account %s: %w", account, err)
	}
	if err := e.cfg.Store.SetTotalBurned(ctx, total); err != nil {
		return fmt.Errorf("failed to update total burned: %w", err)
	}

	e.log.Warn("burn data reset",
		"account", account,
		"previous_amount", old.String(),
		"new_amount", amountBurned.String(),
	)
	return nil
}

// percentFloor returns floor(pct% of b).
func percentFloor(b balance.Balance, pct uint64) balance.Balance {
	return b.MulUint64(pct).DivUint64(100)
}
