// Package pool orchestrates multiple named burn ledgers behind one
// entry point: it owns the treasury funds, aggregates per-account
// portfolios across ledgers, and records burn and withdrawal events.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/emberlabs/kiln/dispatch"
	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

var (
	// ErrUnknownLedger is returned when an operation names a ledger
	// the pool has not registered.
	ErrUnknownLedger = errors.New("unknown ledger")

	// ErrLedgerExists is returned when registering a duplicate
	// ledger name.
	ErrLedgerExists = errors.New("ledger already registered")
)

// Ledger is the slice of the engine the pool delegates to.
type Ledger interface {
	CreditBurn(ctx context.Context, caller, account engine.AccountID, amount balance.Balance) (balance.Balance, error)
	Withdraw(ctx context.Context, caller, account engine.AccountID) (balance.Balance, engine.Timestamp, error)
}

// Treasury moves pool funds. Deposit receives burned principal,
// Payout settles withdrawals.
type Treasury interface {
	Deposit(ctx context.Context, amount balance.Balance) error
	Payout(ctx context.Context, to engine.AccountID, amount balance.Balance) error
}

// ActionRecord remembers when and through which ledger an account last
// acted.
type ActionRecord struct {
	Time   engine.Timestamp `json:"time"`
	Ledger string           `json:"ledger"`
}

// Portfolio aggregates an account's positions across every registered
// ledger.
type Portfolio struct {
	AmountBurned balance.Balance `json:"amount_burned"`
	BalanceDue   balance.Balance `json:"balance_due"`
	BalancePaid  balance.Balance `json:"balance_paid"`

	LastBurn       *ActionRecord `json:"last_burn,omitempty"`
	LastWithdrawal *ActionRecord `json:"last_withdrawal,omitempty"`
}

func (p *Portfolio) clone() *Portfolio {
	c := *p
	if p.LastBurn != nil {
		r := *p.LastBurn
		c.LastBurn = &r
	}
	if p.LastWithdrawal != nil {
		r := *p.LastWithdrawal
		c.LastWithdrawal = &r
	}
	return &c
}

// Config carries the pool's collaborators.
type Config struct {
	// Admin may register ledgers, pause the pool, and transfer its
	// own role.
	Admin engine.AccountID

	// Controller is the identity the pool presents to the ledgers it
	// delegates to.
	Controller engine.AccountID

	Logger   *slog.Logger
	Clock    clockwork.Clock
	Treasury Treasury
	Events   EventSink
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.Admin == "" {
		return errors.New("admin is required")
	}
	if c.Controller == "" {
		return errors.New("controller is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Treasury == nil {
		return errors.New("treasury is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Events == nil {
		c.Events = NewMemorySink(DefaultEventCapacity)
	}
	return nil
}

// Pool is the orchestration layer over the registered ledgers.
type Pool struct {
	cfg Config
	log *slog.Logger

	AdminControl *dispatch.AdminControl
	pausable     *dispatch.Pausable
	guard        *dispatch.ReentrancyGuard

	mu          sync.Mutex
	ledgers     map[string]Ledger
	portfolios  map[engine.AccountID]*Portfolio
	totalBurned balance.Balance
}

// New validates the config and returns an empty pool.
func New(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	return &Pool{
		cfg:          cfg,
		log:          cfg.Logger.With("component", "pool"),
		AdminControl: dispatch.NewAdminControl(cfg.Admin),
		pausable:     dispatch.NewPausable(),
		guard:        dispatch.NewReentrancyGuard(),
		ledgers:      make(map[string]Ledger),
		portfolios:   make(map[engine.AccountID]*Portfolio),
	}, nil
}

// AddLedger registers a named ledger. Admin only.
func (p *Pool) AddLedger(caller engine.AccountID, name string, l Ledger) error {
	if err := p.AdminControl.EnsureAdmin(caller); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.ledgers[name]; exists {
		return fmt.Errorf("%w: %s", ErrLedgerExists, name)
	}
	p.ledgers[name] = l
	p.log.Info("ledger registered", "ledger", name)
	return nil
}

// RemoveLedger unregisters a named ledger. Admin only.
func (p *Pool) RemoveLedger(caller engine.AccountID, name string) error {
	if err := p.AdminControl.EnsureAdmin(caller); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.ledgers[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownLedger, name)
	}
	delete(p.ledgers, name)
	p.log.Info("ledger removed", "ledger", name)
	return nil
}

// Ledgers returns the registered ledger names.
func (p *Pool) Ledgers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.ledgers))
	for name := range p.ledgers {
		names = append(names, name)
	}
	return names
}

// Pause halts state-mutating operations. Admin only.
func (p *Pool) Pause(caller engine.AccountID, reason dispatch.PauseReason) error {
	if err := p.AdminControl.EnsureAdmin(caller); err != nil {
		return err
	}
	p.pausable.Pause(reason)
	p.log.Warn("pool paused", "reason", reason)
	return nil
}

// Unpause resumes operations. Admin only.
func (p *Pool) Unpause(caller engine.AccountID) error {
	if err := p.AdminControl.EnsureAdmin(caller); err != nil {
		return err
	}
	if err := p.pausable.Unpause(); err != nil {
		return err
	}
	p.log.Info("pool unpaused")
	return nil
}

// Burn deposits the burned principal into the treasury, credits the
// beneficiary on the named ledger, and updates its portfolio. Returns
// the claim added to the beneficiary's balance due.
func (p *Pool) Burn(ctx context.Context, caller, beneficiary engine.AccountID, ledgerName string, amount balance.Balance) (balance.Balance, error) {
	var delta balance.Balance
	err := p.guarded(func() error {
		ledger, err := p.lookupLedger(ledgerName)
		if err != nil {
			return err
		}

		if err := p.cfg.Treasury.Deposit(ctx, amount); err != nil {
			return fmt.Errorf("%w: %v", engine.ErrTransferFailed, err)
		}

		delta, err = ledger.CreditBurn(ctx, p.cfg.Controller, beneficiary, amount)
		if err != nil {
			return err
		}

		now := engine.Timestamp(p.cfg.Clock.Now().UnixMilli())

		p.mu.Lock()
		pf := p.portfolio(beneficiary)
		pf.AmountBurned = pf.AmountBurned.Add(amount)
		pf.BalanceDue = pf.BalanceDue.Add(delta)
		pf.LastBurn = &ActionRecord{Time: now, Ledger: ledgerName}
		p.totalBurned = p.totalBurned.Add(amount)
		p.mu.Unlock()

		p.appendEvent(ctx, EventBurnExecuted, caller, beneficiary, ledgerName, amount, now)
		return nil
	})
	if err != nil {
		return balance.Zero(), err
	}
	return delta, nil
}

// Withdraw settles the caller's accrued allowance on the named ledger
// and pays it out through the treasury.
func (p *Pool) Withdraw(ctx context.Context, caller engine.AccountID, ledgerName string) (balance.Balance, error) {
	var paid balance.Balance
	err := p.guarded(func() error {
		ledger, err := p.lookupLedger(ledgerName)
		if err != nil {
			return err
		}

		var when engine.Timestamp
		paid, when, err = ledger.Withdraw(ctx, p.cfg.Controller, caller)
		if err != nil {
			return err
		}

		p.mu.Lock()
		pf := p.portfolio(caller)
		pf.BalanceDue = pf.BalanceDue.Sub(paid)
		pf.BalancePaid = pf.BalancePaid.Add(paid)
		pf.LastWithdrawal = &ActionRecord{Time: when, Ledger: ledgerName}
		p.mu.Unlock()

		if err := p.cfg.Treasury.Payout(ctx, caller, paid); err != nil {
			return fmt.Errorf("%w: %v", engine.ErrTransferFailed, err)
		}

		p.appendEvent(ctx, EventWithdrawalExecuted, caller, caller, ledgerName, paid, when)
		return nil
	})
	if err != nil {
		return balance.Zero(), err
	}
	return paid, nil
}

// Portfolio returns the account's aggregate position, or nil if the
// pool has never seen the account.
func (p *Pool) Portfolio(account engine.AccountID) *Portfolio {
	p.mu.Lock()
	defer p.mu.Unlock()
	pf, ok := p.portfolios[account]
	if !ok {
		return nil
	}
	return pf.clone()
}

// TotalBurned returns the pool-wide burn counter.
func (p *Pool) TotalBurned() balance.Balance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalBurned
}

// RecentEvents returns the account's most recent events, newest first,
// skipping the first offset matches.
func (p *Pool) RecentEvents(ctx context.Context, account engine.AccountID, limit, offset int) ([]Event, error) {
	return p.cfg.Events.Recent(ctx, account, limit, offset)
}

// guarded runs fn under the pause check and the reentrancy guard.
func (p *Pool) guarded(fn func() error) error {
	if err := p.pausable.EnsureNotPaused(); err != nil {
		return err
	}
	return p.guard.Guarded(fn)
}

func (p *Pool) lookupLedger(name string) (Ledger, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ledger, ok := p.ledgers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLedger, name)
	}
	return ledger, nil
}

// portfolio returns the account's portfolio, creating it if needed.
// Callers must hold p.mu.
func (p *Pool) portfolio(account engine.AccountID) *Portfolio {
	pf, ok := p.portfolios[account]
	if !ok {
		pf = &Portfolio{}
		p.portfolios[account] = pf
	}
	return pf
}

func (p *Pool) appendEvent(ctx context.Context, kind EventKind, caller, account engine.AccountID, ledger string, amount balance.Balance, when engine.Timestamp) {
	event := NewEvent(kind, caller, account, ledger, amount, when)
	if err := p.cfg.Events.Append(ctx, event); err != nil {
		p.log.Warn("failed to append event", "kind", kind, "account", account, "error", err)
	}
}
