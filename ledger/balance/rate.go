package balance

import "github.com/holiman/uint256"

// Quintillion is the fixed-point denominator for Rate (10^18).
const Quintillion uint64 = 1_000_000_000_000_000_000

// Rate is a non-negative rational with an implicit denominator of
// 10^18 (parts per quintillion). Multiplication against a Balance
// always rounds down.
type Rate struct {
	parts uint64
}

// RateFromParts returns the rate parts/10^18.
func RateFromParts(parts uint64) Rate {
	return Rate{parts: parts}
}

// RateFromRational returns the rate num/den, rounded down to the
// nearest part per quintillion. A zero denominator panics.
func RateFromRational(num, den uint64) Rate {
	if den == 0 {
		panic("balance: rate with zero denominator")
	}
	var n, d, q uint256.Int
	n.SetUint64(num)
	n.Mul(&n, new(uint256.Int).SetUint64(Quintillion))
	d.SetUint64(den)
	q.Div(&n, &d)
	if !q.IsUint64() {
		panic("balance: rate exceeds one quintillion parts")
	}
	return Rate{parts: q.Uint64()}
}

// Parts returns the numerator over 10^18.
func (r Rate) Parts() uint64 {
	return r.parts
}

// IsZero reports whether the rate is zero.
func (r Rate) IsZero() bool {
	return r.parts == 0
}

// MulFloor returns floor(r × b).
func (r Rate) MulFloor(b Balance) Balance {
	var p, parts, q uint256.Int
	parts.SetUint64(r.parts)
	// b × parts cannot overflow 256 bits for any ledger balance the
	// engine produces, but clamp anyway to keep the type total.
	if _, overflow := p.MulOverflow(&b.i, &parts); overflow {
		p.SetAllOne()
	}
	q.Div(&p, new(uint256.Int).SetUint64(Quintillion))
	return Balance{i: q}
}

// DivUint64 returns r/d, rounded down. A zero divisor is a programming
// error and panics.
func (r Rate) DivUint64(d uint64) Rate {
	if d == 0 {
		panic("balance: rate division by zero")
	}
	return Rate{parts: r.parts / d}
}

// Pow2 returns 2^n as a Balance. n above 255 saturates at the maximum
// representable value.
func Pow2(n uint64) Balance {
	if n > 255 {
		var b Balance
		b.i.SetAllOne()
		return b
	}
	var b Balance
	b.i.SetUint64(1)
	b.i.Lsh(&b.i, uint(n))
	return b
}
