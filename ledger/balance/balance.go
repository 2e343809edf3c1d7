// Package balance provides saturating token arithmetic and the
// fixed-point rate type used by the burn ledgers.
//
// All balances are unsigned 256-bit integers. Arithmetic never wraps
// and never panics: additions clamp at the maximum value and
// subtractions clamp at zero, so adversarial inputs cannot corrupt a
// ledger through overflow.
package balance

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Balance is an unsigned token amount with saturating arithmetic.
// The zero value is a zero balance and ready to use.
type Balance struct {
	i uint256.Int
}

// Zero returns a zero balance.
func Zero() Balance {
	return Balance{}
}

// FromUint64 returns a balance holding v.
func FromUint64(v uint64) Balance {
	var b Balance
	b.i.SetUint64(v)
	return b
}

// MustFromDecimal parses a base-10 string into a balance. It panics on
// malformed input and is intended for constants and test fixtures.
func MustFromDecimal(s string) Balance {
	b, err := FromDecimal(s)
	if err != nil {
		panic(fmt.Sprintf("balance: invalid decimal %q: %v", s, err))
	}
	return b
}

// FromDecimal parses a base-10 string into a balance.
func FromDecimal(s string) (Balance, error) {
	i, err := uint256.FromDecimal(s)
	if err != nil {
		return Balance{}, fmt.Errorf("failed to parse balance: %w", err)
	}
	return Balance{i: *i}, nil
}

// Add returns b + o, clamped at the maximum representable value.
func (b Balance) Add(o Balance) Balance {
	var z Balance
	if _, overflow := z.i.AddOverflow(&b.i, &o.i); overflow {
		z.i.SetAllOne()
	}
	return z
}

// Sub returns b - o, clamped at zero.
func (b Balance) Sub(o Balance) Balance {
	var z Balance
	if _, underflow := z.i.SubOverflow(&b.i, &o.i); underflow {
		z.i.Clear()
	}
	return z
}

// MulUint64 returns b × m, clamped at the maximum representable value.
func (b Balance) MulUint64(m uint64) Balance {
	var z, f Balance
	f.i.SetUint64(m)
	if _, overflow := z.i.MulOverflow(&b.i, &f.i); overflow {
		z.i.SetAllOne()
	}
	return z
}

// DivUint64 returns floor(b / d). A zero divisor is a programming
// error and panics.
func (b Balance) DivUint64(d uint64) Balance {
	if d == 0 {
		panic("balance: division by zero")
	}
	var z, div Balance
	div.i.SetUint64(d)
	z.i.Div(&b.i, &div.i)
	return z
}

// Div returns floor(b / o). A zero divisor is a programming error and
// panics.
func (b Balance) Div(o Balance) Balance {
	if o.IsZero() {
		panic("balance: division by zero")
	}
	var z Balance
	z.i.Div(&b.i, &o.i)
	return z
}

// ModUint64 returns b mod d. A zero divisor is a programming error
// and panics.
func (b Balance) ModUint64(d uint64) uint64 {
	if d == 0 {
		panic("balance: modulo by zero")
	}
	var z, div Balance
	div.i.SetUint64(d)
	z.i.Mod(&b.i, &div.i)
	return z.i.Uint64()
}

// Cmp returns -1, 0 or 1 when b is respectively less than, equal to or
// greater than o.
func (b Balance) Cmp(o Balance) int {
	return b.i.Cmp(&o.i)
}

// Min returns the smaller of b and o.
func (b Balance) Min(o Balance) Balance {
	if b.Cmp(o) <= 0 {
		return b
	}
	return o
}

// IsZero reports whether b is zero.
func (b Balance) IsZero() bool {
	return b.i.IsZero()
}

// Uint64 returns the balance as a uint64, clamped at the maximum
// uint64 when it does not fit.
func (b Balance) Uint64() uint64 {
	if !b.i.IsUint64() {
		return ^uint64(0)
	}
	return b.i.Uint64()
}

// Float64 returns an approximate float representation. Metrics only,
// never ledger arithmetic.
func (b Balance) Float64() float64 {
	return b.i.Float64()
}

// String returns the balance in base 10.
func (b Balance) String() string {
	return b.i.Dec()
}

// MarshalText implements encoding.TextMarshaler (base-10).
func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.i.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (base-10).
func (b *Balance) UnmarshalText(text []byte) error {
	parsed, err := FromDecimal(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
