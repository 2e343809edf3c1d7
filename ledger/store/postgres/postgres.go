// Package postgres implements the engine store on PostgreSQL. Balances
// are stored as NUMERIC(78,0), wide enough for any 256-bit value.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// Store persists one named ledger's accounts and burn counter.
type Store struct {
	pool   *pgxpool.Pool
	ledger string
}

// New returns a store for the given ledger name backed by the pool.
func New(pool *pgxpool.Pool, ledger string) *Store {
	return &Store{pool: pool, ledger: ledger}
}

func (s *Store) GetAccount(ctx context.Context, id engine.AccountID) (*engine.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT amount_burned::text, balance_due::text, balance_paid::text,
		       creation_time, last_burn, last_withdrawal, last_interaction,
		       direct_coefficient::text, indirect_coefficient::text
		FROM burn_accounts
		WHERE ledger = $1 AND account_id = $2
	`, s.ledger, string(id))

	var (
		amountBurned, balanceDue, balancePaid string
		creationTime, lastBurn                int64
		lastWithdrawal                        *int64
		lastInteraction                       int64
		direct, indirect                      string
	)
	err := row.Scan(&amountBurned, &balanceDue, &balancePaid,
		&creationTime, &lastBurn, &lastWithdrawal, &lastInteraction,
		&direct, &indirect)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	acct := &engine.Account{
		CreationTime:    engine.Timestamp(creationTime),
		LastBurn:        engine.Timestamp(lastBurn),
		LastInteraction: engine.Timestamp(lastInteraction),
	}
	if lastWithdrawal != nil {
		ts := engine.Timestamp(*lastWithdrawal)
		acct.LastWithdrawal = &ts
	}
	if acct.AmountBurned, err = balance.FromDecimal(amountBurned); err != nil {
		return nil, fmt.Errorf("corrupt amount_burned for %s: %w", id, err)
	}
	if acct.BalanceDue, err = balance.FromDecimal(balanceDue); err != nil {
		return nil, fmt.Errorf("corrupt balance_due for %s: %w", id, err)
	}
	if acct.BalancePaid, err = balance.FromDecimal(balancePaid); err != nil {
		return nil, fmt.Errorf("corrupt balance_paid for %s: %w", id, err)
	}
	if acct.ReferralCoefficients.Direct, err = balance.FromDecimal(direct); err != nil {
		return nil, fmt.Errorf("corrupt direct_coefficient for %s: %w", id, err)
	}
	if acct.ReferralCoefficients.Indirect, err = balance.FromDecimal(indirect); err != nil {
		return nil, fmt.Errorf("corrupt indirect_coefficient for %s: %w", id, err)
	}
	return acct, nil
}

func (s *Store) PutAccount(ctx context.Context, id engine.AccountID, acct *engine.Account) error {
	var lastWithdrawal *int64
	if acct.LastWithdrawal != nil {
		ms := int64(*acct.LastWithdrawal)
		lastWithdrawal = &ms
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO burn_accounts (
			ledger, account_id,
			amount_burned, balance_due, balance_paid,
			creation_time, last_burn, last_withdrawal, last_interaction,
			direct_coefficient, indirect_coefficient
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9, $10::numeric, $11::numeric)
		ON CONFLICT (ledger, account_id) DO UPDATE SET
			amount_burned        = EXCLUDED.amount_burned,
			balance_due          = EXCLUDED.balance_due,
			balance_paid         = EXCLUDED.balance_paid,
			last_burn            = EXCLUDED.last_burn,
			last_withdrawal      = EXCLUDED.last_withdrawal,
			last_interaction     = EXCLUDED.last_interaction,
			direct_coefficient   = EXCLUDED.direct_coefficient,
			indirect_coefficient = EXCLUDED.indirect_coefficient
	`,
		s.ledger, string(id),
		acct.AmountBurned.String(), acct.BalanceDue.String(), acct.BalancePaid.String(),
		int64(acct.CreationTime), int64(acct.LastBurn), lastWithdrawal, int64(acct.LastInteraction),
		acct.ReferralCoefficients.Direct.String(), acct.ReferralCoefficients.Indirect.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

func (s *Store) TotalBurned(ctx context.Context) (balance.Balance, error) {
	var total string
	err := s.pool.QueryRow(ctx,
		`SELECT total_burned::text FROM burn_counters WHERE ledger = $1`,
		s.ledger,
	).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return balance.Zero(), nil
	}
	if err != nil {
		return balance.Zero(), fmt.Errorf("failed to query total burned: %w", err)
	}
	b, err := balance.FromDecimal(total)
	if err != nil {
		return balance.Zero(), fmt.Errorf("corrupt total_burned: %w", err)
	}
	return b, nil
}

func (s *Store) AddToTotalBurned(ctx context.Context, delta balance.Balance) (balance.Balance, error) {
	var total string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO burn_counters (ledger, total_burned)
		VALUES ($1, $2::numeric)
		ON CONFLICT (ledger) DO UPDATE SET
			total_burned = burn_counters.total_burned + EXCLUDED.total_burned
		RETURNING total_burned::text
	`, s.ledger, delta.String()).Scan(&total)
	if err != nil {
		return balance.Zero(), fmt.Errorf("failed to update total burned: %w", err)
	}
	b, err := balance.FromDecimal(total)
	if err != nil {
		return balance.Zero(), fmt.Errorf("corrupt total_burned: %w", err)
	}
	return b, nil
}

func (s *Store) SetTotalBurned(ctx context.Context, total balance.Balance) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO burn_counters (ledger, total_burned)
		VALUES ($1, $2::numeric)
		ON CONFLICT (ledger) DO UPDATE SET total_burned = EXCLUDED.total_burned
	`, s.ledger, total.String())
	if err != nil {
		return fmt.Errorf("failed to set total burned: %w", err)
	}
	return nil
}
