package generator

import (
	"fmt"
	"net"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftrand"
	"github.com/CESNET/ft-generator/internal/genconfig"
)

// AddressPool wraps one address family's configured ranges behind the
// §4.1 prefix-constrained sweep, shared across every flow submitted to
// the flow maker: the sweep itself is what guarantees no collision short
// of a full period, not any per-flow randomness.
type AddressPool struct {
	v4 *ftrand.MultiRangeGenerator
	v6 *ftrand.MultiRangeGenerator
}

// NewAddressPool builds the IPv4/IPv6 sweep generators from the parsed
// config ranges. seed drives range selection and is also passed unchanged
// as the seed of every range's own LFSR.
func NewAddressPool(cfgV4, cfgV6 genconfig.AddrFamilyConfig, seed uint64) (*AddressPool, error) {
	pool := &AddressPool{}

	if cfgV4.IPRange != nil {
		g, err := buildRangeGenerator(cfgV4.IPRange.Addr, cfgV4.IPRange.Prefix, 4, seed)
		if err != nil {
			return nil, err
		}
		pool.v4 = ftrand.NewMultiRangeGenerator(ftrand.New(seed^0xA1), g)
	}
	if cfgV6.IPRange != nil {
		g, err := buildRangeGenerator(cfgV6.IPRange.Addr, cfgV6.IPRange.Prefix, 16, seed)
		if err != nil {
			return nil, err
		}
		pool.v6 = ftrand.NewMultiRangeGenerator(ftrand.New(seed^0xB2), g)
	}
	return pool, nil
}

func buildRangeGenerator(addr string, prefix int, wantLen int, seed uint64) (*ftrand.PrefixedGenerator, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, fmt.Errorf("generator: invalid address %q", addr)
	}
	var b []byte
	if wantLen == 4 {
		b = ip.To4()
	} else {
		b = ip.To16()
	}
	if b == nil {
		return nil, fmt.Errorf("generator: address %q is not a valid IPv%d address", addr, wantLen*2)
	}
	return ftrand.NewPrefixedGenerator(b, prefix, seed), nil
}

// Sample implements flowmaker.AddressSampler, drawing one address per side
// from the family matching the row's L3Proto. Falls back to the flow's own
// PRNG for a fully random address when no range was configured for that
// family.
func (p *AddressPool) Sample(row genconfig.ProfileRow, r *ftrand.Rand) ([]byte, []byte) {
	switch row.L3Proto {
	case flow.L3IPv6:
		if p.v6 != nil {
			return p.v6.Next(), p.v6.Next()
		}
		return r.Bytes(16), r.Bytes(16)
	default:
		if p.v4 != nil {
			return p.v4.Next(), p.v4.Next()
		}
		return r.Bytes(4), r.Bytes(4)
	}
}
