package ftrand

import "math/big"

// LFSR is a Fibonacci linear feedback shift register over n bits, used as
// the low-order-bit sweep of the prefix-constrained address generator
// (§4.1). It yields exactly 2^n distinct suffixes before repeating its
// initial state: the 2^n-1 nonzero states reachable from a maximal-length
// polynomial, plus the all-zero state spliced in exactly once per period
// (a plain Fibonacci LFSR never naturally reaches zero). n == 0 is a
// degenerate, always-zero, always-no-op register (§8 "LFSR 0-bit").
type LFSR struct {
	n    int
	taps []int
	mask *big.Int

	state   *big.Int
	initial *big.Int

	pendingZero bool
}

// NewLFSR constructs an n-bit LFSR seeded from seed's low n bits. A zero
// seed (after masking) is promoted to 1, since an all-zero Fibonacci LFSR
// seed can never advance.
func NewLFSR(n int, seed uint64) *LFSR {
	if n < 0 {
		panic("ftrand: NewLFSR: n < 0")
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(n)), big.NewInt(1))

	state := new(big.Int).And(big.NewInt(0).SetUint64(seed), mask)
	if state.Sign() == 0 && n > 0 {
		state.SetInt64(1)
	}

	return &LFSR{
		n:       n,
		taps:    lfsrTaps(n),
		mask:    mask,
		state:   state,
		initial: new(big.Int).Set(state),
	}
}

// Bits reports the register width.
func (l *LFSR) Bits() int { return l.n }

// Period reports 2^n, the number of distinct suffixes before the sequence
// repeats.
func (l *LFSR) Period() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), uint(l.n))
}

// Next returns the current suffix and advances the register. For n == 0 it
// always returns zero without mutating any state.
func (l *LFSR) Next() *big.Int {
	if l.n == 0 {
		return big.NewInt(0)
	}

	if l.pendingZero {
		l.pendingZero = false
		return big.NewInt(0)
	}

	cur := new(big.Int).Set(l.state)

	feedback := uint(0)
	for _, tap := range l.taps {
		feedback ^= l.state.Bit(tap - 1)
	}

	next := new(big.Int).Lsh(l.state, 1)
	if feedback == 1 {
		next.SetBit(next, 0, 1)
	}
	next.And(next, l.mask)

	if next.Cmp(l.initial) == 0 {
		l.pendingZero = true
	}
	l.state = next

	return cur
}

// NextUint64 is a convenience wrapper for n <= 64.
func (l *LFSR) NextUint64() uint64 {
	return l.Next().Uint64()
}
