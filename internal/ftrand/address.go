package ftrand

import "math/big"

// PrefixedGenerator sweeps the address space below a fixed prefix using an
// LFSR, per §4.1 / §3 "Address generator state": output always carries
// base's top prefixLen bits, and the low totalBits-prefixLen bits cycle
// through every value exactly once per period (§8).
type PrefixedGenerator struct {
	base        []byte
	prefixLen   int
	suffixBits  int
	lfsr        *LFSR
	suffixMask  *big.Int
	prefixFixed *big.Int
}

// NewPrefixedGenerator builds a generator over base (big-endian address
// bytes) with the top prefixLen bits fixed. seed drives the LFSR's initial
// state.
func NewPrefixedGenerator(base []byte, prefixLen int, seed uint64) *PrefixedGenerator {
	totalBits := 8 * len(base)
	if prefixLen < 0 || prefixLen > totalBits {
		panic("ftrand: NewPrefixedGenerator: prefixLen out of range")
	}
	suffixBits := totalBits - prefixLen

	baseInt := new(big.Int).SetBytes(base)
	suffixMask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(suffixBits)), big.NewInt(1))
	prefixFixed := new(big.Int).AndNot(baseInt, suffixMask)

	return &PrefixedGenerator{
		base:        append([]byte(nil), base...),
		prefixLen:   prefixLen,
		suffixBits:  suffixBits,
		lfsr:        NewLFSR(suffixBits, seed),
		suffixMask:  suffixMask,
		prefixFixed: prefixFixed,
	}
}

// Period reports the generator's period: 2^(totalBits-prefixLen).
func (g *PrefixedGenerator) Period() *big.Int { return g.lfsr.Period() }

// Next returns the next address, len(base) bytes long.
func (g *PrefixedGenerator) Next() []byte {
	suffix := g.lfsr.Next()
	result := new(big.Int).Or(g.prefixFixed, suffix)
	out := make([]byte, len(g.base))
	result.FillBytes(out)
	return out
}

// MultiRangeGenerator wraps several address ranges behind a uniformly
// random selector, per §4.1 "multiple ranges are wrapped in a uniformly
// random selector."
type MultiRangeGenerator struct {
	gens []*PrefixedGenerator
	r    *Rand
}

// NewMultiRangeGenerator builds a selector over the given ranges. r is used
// only to pick which range to draw from next; each range's own LFSR seed
// was fixed at construction.
func NewMultiRangeGenerator(r *Rand, gens ...*PrefixedGenerator) *MultiRangeGenerator {
	if len(gens) == 0 {
		panic("ftrand: NewMultiRangeGenerator: no ranges given")
	}
	return &MultiRangeGenerator{gens: gens, r: r}
}

// Next draws a uniformly random range, then the next address from it.
func (m *MultiRangeGenerator) Next() []byte {
	idx := m.r.Choice(len(m.gens))
	return m.gens[idx].Next()
}

// MACGenerator layers the IEEE 802.3-2002 §3.2.3 group/multicast-bit
// constraint on top of a PrefixedGenerator: the LSB of the first octet must
// be 0 unless the prefix itself forces a value there (i.e. the whole first
// octet is part of the fixed prefix).
type MACGenerator struct {
	*PrefixedGenerator
}

// NewMACGenerator builds a 48-bit MAC address generator. base must be 6
// bytes.
func NewMACGenerator(base []byte, prefixLen int, seed uint64) *MACGenerator {
	if len(base) != 6 {
		panic("ftrand: NewMACGenerator: base must be 6 bytes")
	}
	return &MACGenerator{PrefixedGenerator: NewPrefixedGenerator(base, prefixLen, seed)}
}

// Next returns the next MAC address, retrying the LFSR sweep until the
// group bit constraint is satisfied.
func (g *MACGenerator) Next() []byte {
	for {
		out := g.PrefixedGenerator.Next()
		if g.prefixLen >= 8 || out[0]&0x01 == 0 {
			return out
		}
	}
}
