package pool

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// DefaultEventCapacity bounds the in-memory event ring.
const DefaultEventCapacity = 10_000

// EventKind distinguishes pool event records.
type EventKind string

const (
	EventBurnExecuted       EventKind = "burn_executed"
	EventWithdrawalExecuted EventKind = "withdrawal_executed"
)

// Event is an immutable record of a completed pool operation. Caller
// is who executed the operation; Account is whose balance it touched.
// The two differ when a burn names a separate beneficiary.
type Event struct {
	ID      uuid.UUID        `json:"id"`
	Kind    EventKind        `json:"kind"`
	Caller  engine.AccountID `json:"caller"`
	Account engine.AccountID `json:"account"`
	Ledger  string           `json:"ledger"`
	Amount  balance.Balance  `json:"amount"`
	Time    engine.Timestamp `json:"time"`
}

// NewEvent assigns a fresh ID to an event record.
func NewEvent(kind EventKind, caller, account engine.AccountID, ledger string, amount balance.Balance, when engine.Timestamp) Event {
	return Event{
		ID:      uuid.New(),
		Kind:    kind,
		Caller:  caller,
		Account: account,
		Ledger:  ledger,
		Amount:  amount,
		Time:    when,
	}
}

// EventSink stores pool events.
type EventSink interface {
	Append(ctx context.Context, event Event) error
	// Recent returns the account's newest events, newest first,
	// skipping the first offset matches, up to limit. An empty account
	// matches every event.
	Recent(ctx context.Context, account engine.AccountID, limit, offset int) ([]Event, error)
}

// MemorySink keeps the newest events in a bounded ring.
type MemorySink struct {
	mu       sync.Mutex
	events   []Event
	capacity int
}

// NewMemorySink returns a sink holding at most capacity events.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &MemorySink{capacity: capacity}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if len(s.events) > s.capacity {
		s.events = s.events[len(s.events)-s.capacity:]
	}
	return nil
}

func (s *MemorySink) Recent(_ context.Context, account engine.AccountID, limit, offset int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Event
	skipped := 0
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if account != "" && s.events[i].Account != account {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, s.events[i])
	}
	return out, nil
}
