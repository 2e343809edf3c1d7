package referral_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlabs/kiln/ledger/engine"
	"github.com/emberlabs/kiln/ledger/referral"
)

func TestStatic_AncestorsNearestFirst(t *testing.T) {
	dir := referral.NewStatic()
	dir.SetParent("child", "p")
	dir.SetParent("p", "g1")
	dir.SetParent("g1", "g2")

	chain, err := dir.Ancestors(context.Background(), "child")
	require.NoError(t, err)
	assert.Equal(t, []engine.AccountID{"p", "g1", "g2"}, chain)
}

func TestStatic_NoParent(t *testing.T) {
	dir := referral.NewStatic()
	chain, err := dir.Ancestors(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestStatic_CycleTerminates(t *testing.T) {
	dir := referral.NewStatic()
	dir.SetParent("a", "b")
	dir.SetParent("b", "a")

	chain, err := dir.Ancestors(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []engine.AccountID{"b"}, chain)
}

func TestStatic_SelfParentIgnored(t *testing.T) {
	dir := referral.NewStatic()
	dir.SetParent("a", "a")

	chain, err := dir.Ancestors(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, chain)
}
