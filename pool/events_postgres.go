package pool

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// PostgresSink persists pool events to the pool_events table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink returns a sink backed by the connection pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Append(ctx context.Context, event Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_events (id, kind, caller_id, account_id, ledger, amount, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
	`, event.ID, string(event.Kind), string(event.Caller), string(event.Account), event.Ledger,
		event.Amount.String(), int64(event.Time))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *PostgresSink) Recent(ctx context.Context, account engine.AccountID, limit, offset int) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, caller_id, account_id, ledger, amount::text, created_at_ms
		FROM pool_events
		WHERE ($1 = '' OR account_id = $1)
		ORDER BY created_at_ms DESC
		LIMIT $2 OFFSET $3
	`, string(account), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			id        uuid.UUID
			kind      string
			callerID  string
			accountID string
			ledger    string
			amount    string
			createdAt int64
		)
		if err := rows.Scan(&id, &kind, &callerID, &accountID, &ledger, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		b, err := balance.FromDecimal(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt event amount: %w", err)
		}
		events = append(events, Event{
			ID:      id,
			Kind:    EventKind(kind),
			Caller:  engine.AccountID(callerID),
			Account: engine.AccountID(accountID),
			Ledger:  ledger,
			Amount:  b,
			Time:    engine.Timestamp(createdAt),
		})
	}
	return events, rows.Err()
}
