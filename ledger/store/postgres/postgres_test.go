package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apitesting "github.com/emberlabs/kiln/api/testing"
	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
	"github.com/emberlabs/kiln/ledger/store/postgres"
	kilntesting "github.com/emberlabs/kiln/utils/pkg/testing"
)

var testDB *apitesting.DB

func TestMain(m *testing.M) {
	log := kilntesting.NewLogger()

	db, err := apitesting.NewDB(context.Background(), log, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	testDB = db

	code := m.Run()
	db.Close()
	os.Exit(code)
}

func newStore(t *testing.T, ledger string) *postgres.Store {
	t.Helper()
	apitesting.MigrateTestDB(t, testDB)
	pool := apitesting.NewTestPool(t, testDB)
	return postgres.New(pool, ledger)
}

func TestStore_GetMissingAccount(t *testing.T) {
	store := newStore(t, t.Name())

	acct, err := store.GetAccount(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, acct)
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := newStore(t, t.Name())
	ctx := context.Background()

	withdrawal := engine.Timestamp(1_700_000_200_000)
	in := &engine.Account{
		AmountBurned:    balance.MustFromDecimal("200000000000000000000"),
		BalanceDue:      balance.MustFromDecimal("600000000000000000000"),
		BalancePaid:     balance.FromUint64(42),
		CreationTime:    1_700_000_000_000,
		LastBurn:        1_700_000_100_000,
		LastWithdrawal:  &withdrawal,
		LastInteraction: 1_700_000_200_000,
		ReferralCoefficients: engine.ReferralCoefficients{
			Direct:   balance.FromUint64(800),
			Indirect: balance.FromUint64(9),
		},
	}
	require.NoError(t, store.PutAccount(ctx, "alice", in))

	out, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 0, out.AmountBurned.Cmp(in.AmountBurned))
	assert.Equal(t, 0, out.BalanceDue.Cmp(in.BalanceDue))
	assert.Equal(t, 0, out.BalancePaid.Cmp(in.BalancePaid))
	assert.Equal(t, in.CreationTime, out.CreationTime)
	assert.Equal(t, in.LastBurn, out.LastBurn)
	require.NotNil(t, out.LastWithdrawal)
	assert.Equal(t, withdrawal, *out.LastWithdrawal)
	assert.Equal(t, in.LastInteraction, out.LastInteraction)
	assert.Equal(t, uint64(800), out.ReferralCoefficients.Direct.Uint64())
	assert.Equal(t, uint64(9), out.ReferralCoefficients.Indirect.Uint64())
}

func TestStore_UpsertOverwrites(t *testing.T) {
	store := newStore(t, t.Name())
	ctx := context.Background()

	acct := &engine.Account{
		AmountBurned:    balance.FromUint64(100),
		BalanceDue:      balance.FromUint64(300),
		CreationTime:    1,
		LastInteraction: 1,
	}
	require.NoError(t, store.PutAccount(ctx, "alice", acct))

	acct.BalanceDue = balance.FromUint64(299)
	acct.BalancePaid = balance.FromUint64(1)
	acct.LastInteraction = 2
	require.NoError(t, store.PutAccount(ctx, "alice", acct))

	out, err := store.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(299), out.BalanceDue.Uint64())
	assert.Equal(t, uint64(1), out.BalancePaid.Uint64())
	assert.Equal(t, engine.Timestamp(2), out.LastInteraction)
}

func TestStore_TotalBurnedCounter(t *testing.T) {
	store := newStore(t, t.Name())
	ctx := context.Background()

	total, err := store.TotalBurned(ctx)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	total, err = store.AddToTotalBurned(ctx, balance.FromUint64(100))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), total.Uint64())

	total, err = store.AddToTotalBurned(ctx, balance.MustFromDecimal("200000000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, "200000000000000000100", total.String())

	require.NoError(t, store.SetTotalBurned(ctx, balance.FromUint64(500)))
	total, err = store.TotalBurned(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), total.Uint64())
}

func TestStore_LedgersAreIsolated(t *testing.T) {
	apitesting.MigrateTestDB(t, testDB)
	pool := apitesting.NewTestPool(t, testDB)
	a := postgres.New(pool, "ledger-a")
	b := postgres.New(pool, "ledger-b")
	ctx := context.Background()

	_, err := a.AddToTotalBurned(ctx, balance.FromUint64(100))
	require.NoError(t, err)

	total, err := b.TotalBurned(ctx)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}
