package balance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlabs/kiln/ledger/balance"
)

func TestBalance_SaturatingAdd(t *testing.T) {
	max := balance.MustFromDecimal("115792089237316195423570985008687907853269984665640564039457584007913129639935")

	sum := max.Add(balance.FromUint64(1))
	assert.Equal(t, 0, sum.Cmp(max), "addition past the maximum must clamp")

	assert.Equal(t, uint64(5), balance.FromUint64(2).Add(balance.FromUint64(3)).Uint64())
}

func TestBalance_SaturatingSub(t *testing.T) {
	diff := balance.FromUint64(3).Sub(balance.FromUint64(10))
	assert.True(t, diff.IsZero(), "subtraction below zero must clamp")

	assert.Equal(t, uint64(7), balance.FromUint64(10).Sub(balance.FromUint64(3)).Uint64())
}

func TestBalance_MulUint64(t *testing.T) {
	assert.Equal(t, uint64(300), balance.FromUint64(100).MulUint64(3).Uint64())

	max := balance.MustFromDecimal("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	assert.Equal(t, 0, max.MulUint64(2).Cmp(max), "multiplication past the maximum must clamp")
}

func TestBalance_DivPanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { balance.FromUint64(1).DivUint64(0) })
	assert.Panics(t, func() { balance.FromUint64(1).Div(balance.Zero()) })
}

func TestBalance_MinAndCmp(t *testing.T) {
	a := balance.FromUint64(100)
	b := balance.FromUint64(299)
	assert.Equal(t, 0, a.Min(b).Cmp(a))
	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, 1, b.Cmp(a))
}

func TestBalance_DecimalRoundTrip(t *testing.T) {
	b, err := balance.FromDecimal("200000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "200000000000000000000", b.String())

	_, err = balance.FromDecimal("not-a-number")
	require.Error(t, err)

	text, err := b.MarshalText()
	require.NoError(t, err)
	var back balance.Balance
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, 0, back.Cmp(b))
}

func TestRate_MulFloorRoundsDown(t *testing.T) {
	// 8/1000 of 100 is 0.8, which floors to zero.
	r := balance.RateFromRational(8, 1000)
	assert.True(t, r.MulFloor(balance.FromUint64(100)).IsZero())

	// 8/1000 of 1000 is exactly 8.
	assert.Equal(t, uint64(8), r.MulFloor(balance.FromUint64(1000)).Uint64())
}

func TestRate_FromRational(t *testing.T) {
	r := balance.RateFromRational(8, 1000)
	assert.Equal(t, uint64(8_000_000_000_000_000), r.Parts())

	assert.Panics(t, func() { balance.RateFromRational(1, 0) })
}

func TestRate_DivUint64(t *testing.T) {
	r := balance.RateFromRational(8, 1000)
	halved := r.DivUint64(2)
	assert.Equal(t, uint64(4_000_000_000_000_000), halved.Parts())

	assert.Panics(t, func() { r.DivUint64(0) })
}

func TestPow2(t *testing.T) {
	assert.Equal(t, uint64(1), balance.Pow2(0).Uint64())
	assert.Equal(t, uint64(1024), balance.Pow2(10).Uint64())
	assert.Equal(t, "340282366920938463463374607431768211456", balance.Pow2(128).String())
}
