// Package replicator applies per-unit and per-loop address rewrite
// strategies to replayed packets, grounded on
// original_source/tools/ft-replay/src/replicator*.{h,cpp} (§4.10). A
// Replicator owns an immutable list of units plus a loop strategy; for
// each configured unit it produces one rewritten copy of the input
// packet, and for each replay loop it additionally applies the loop
// strategy on top.
package replicator

import (
	"fmt"
	"math/big"
	"net"
	"regexp"
	"strconv"

	"github.com/CESNET/ft-generator/internal/replay/ingest"
	"github.com/CESNET/ft-generator/internal/replicator/config"
)

// IPOp rewrites an IP address in place, addr already holds the original
// 4 or 16 bytes.
type IPOp interface {
	Apply(addr net.IP)
}

// MacOp rewrites a MAC address in place.
type MacOp interface {
	Apply(addr net.HardwareAddr)
}

// LoopIPOp rewrites an IP address given the current replay loop index.
type LoopIPOp interface {
	Apply(addr net.IP, loop int)
}

type noneIPOp struct{}

func (noneIPOp) Apply(net.IP) {}

type noneMacOp struct{}

func (noneMacOp) Apply(net.HardwareAddr) {}

type noneLoopOp struct{}

func (noneLoopOp) Apply(net.IP, int) {}

// addConstantOp adds a constant to the address, interpreted as a big
// integer over its bytes (§4.10 "addConstant(k)").
type addConstantOp struct{ k int64 }

func (o addConstantOp) Apply(addr net.IP) { addToIP(addr, o.k) }

// addCounterOp adds an incrementing counter to the address; the counter
// itself advances by step on every call, so repeated application of the
// same unit spreads successive packets across a range (§4.10
// "addCounter(start,step) (stateful, counter advances on each
// application)").
type addCounterOp struct {
	counter int64
	step    int64
}

func (o *addCounterOp) Apply(addr net.IP) {
	addToIP(addr, o.counter)
	o.counter += o.step
}

// setMacOp replaces the MAC address outright with a literal (§4.10
// "setMac(addr)").
type setMacOp struct{ addr net.HardwareAddr }

func (o setMacOp) Apply(addr net.HardwareAddr) { copy(addr, o.addr) }

// addOffsetLoopOp adds k*loop to the address, so each successive replay
// loop shifts the address by one more multiple of k (§4.10 "addOffset(k)
// ... adds k·L to the IP").
type addOffsetLoopOp struct{ k int64 }

func (o addOffsetLoopOp) Apply(addr net.IP, loop int) { addToIP(addr, o.k*int64(loop)) }

// addToIP adds a signed delta to addr's bytes, treated as a big-endian
// unsigned integer, in place, wrapping modulo 2^(8*len(addr)) on overflow
// or underflow.
func addToIP(addr net.IP, delta int64) {
	n := new(big.Int).SetBytes(addr)
	n.Add(n, big.NewInt(delta))

	mod := new(big.Int).Lsh(big.NewInt(1), uint(len(addr)*8))
	n.Mod(n, mod)
	if n.Sign() < 0 {
		n.Add(n, mod)
	}

	out := n.Bytes()
	for i := range addr {
		addr[i] = 0
	}
	copy(addr[len(addr)-len(out):], out)
}

var (
	reConstant = regexp.MustCompile(`^addConstant\((-?\d+)\)$`)
	reCounter  = regexp.MustCompile(`^addCounter\((-?\d+)\s*,\s*(-?\d+)\)$`)
	reOffset   = regexp.MustCompile(`^addOffset\((-?\d+)\)$`)
)

// ParseIPUnitStrategy parses a unit-level srcip/dstip strategy string:
// "None", "addConstant(N)" or "addCounter(start,step)" (§4.10).
func ParseIPUnitStrategy(s string) (IPOp, error) {
	switch {
	case s == "" || s == "None":
		return noneIPOp{}, nil
	case reConstant.MatchString(s):
		m := reConstant.FindStringSubmatch(s)
		k, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replicator: addConstant: %w", err)
		}
		return addConstantOp{k: k}, nil
	case reCounter.MatchString(s):
		m := reCounter.FindStringSubmatch(s)
		start, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replicator: addCounter start: %w", err)
		}
		step, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replicator: addCounter step: %w", err)
		}
		return &addCounterOp{counter: start, step: step}, nil
	default:
		return nil, fmt.Errorf("replicator: unknown ip unit strategy %q", s)
	}
}

// ParseMacUnitStrategy parses a unit-level srcmac/dstmac strategy string:
// "None" or a literal MAC address, e.g. "aa:bb:cc:dd:ee:ff" (§4.10
// "setMac(addr)").
func ParseMacUnitStrategy(s string) (MacOp, error) {
	if s == "" || s == "None" {
		return noneMacOp{}, nil
	}
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("replicator: mac literal %q: %w", s, err)
	}
	return setMacOp{addr: mac}, nil
}

// ParseIPLoopStrategy parses a loop-level srcip/dstip strategy string:
// "None" or "addOffset(N)" (§4.10).
func ParseIPLoopStrategy(s string) (LoopIPOp, error) {
	switch {
	case s == "" || s == "None":
		return noneLoopOp{}, nil
	case reOffset.MatchString(s):
		m := reOffset.FindStringSubmatch(s)
		k, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replicator: addOffset: %w", err)
		}
		return addOffsetLoopOp{k: k}, nil
	default:
		return nil, fmt.Errorf("replicator: unknown ip loop strategy %q", s)
	}
}

// Unit is one compiled "units:" entry.
type Unit struct {
	SrcIP, DstIP   IPOp
	SrcMAC, DstMAC MacOp
}

// Loop is the compiled "loop:" section.
type Loop struct {
	SrcIP, DstIP LoopIPOp
}

// Replicator holds a worker's compiled unit list and loop strategy.
// Replicators are not safe for concurrent use: stateful unit ops (e.g.
// addCounter) mutate on every Apply, so each replay worker owns its own
// instance (§5).
type Replicator struct {
	Units []Unit
	Loop  Loop
}

// Compile builds a Replicator from a parsed config.Config, failing fast
// on the first unparsable strategy string.
func Compile(cfg *config.Config) (*Replicator, error) {
	r := &Replicator{}

	for i, u := range cfg.Units {
		srcIP, err := ParseIPUnitStrategy(u.SrcIP)
		if err != nil {
			return nil, fmt.Errorf("replicator: units[%d].srcip: %w", i, err)
		}
		dstIP, err := ParseIPUnitStrategy(u.DstIP)
		if err != nil {
			return nil, fmt.Errorf("replicator: units[%d].dstip: %w", i, err)
		}
		srcMAC, err := ParseMacUnitStrategy(u.SrcMAC)
		if err != nil {
			return nil, fmt.Errorf("replicator: units[%d].srcmac: %w", i, err)
		}
		dstMAC, err := ParseMacUnitStrategy(u.DstMAC)
		if err != nil {
			return nil, fmt.Errorf("replicator: units[%d].dstmac: %w", i, err)
		}
		r.Units = append(r.Units, Unit{SrcIP: srcIP, DstIP: dstIP, SrcMAC: srcMAC, DstMAC: dstMAC})
	}
	if len(r.Units) == 0 {
		r.Units = []Unit{{SrcIP: noneIPOp{}, DstIP: noneIPOp{}, SrcMAC: noneMacOp{}, DstMAC: noneMacOp{}}}
	}

	srcLoop, err := ParseIPLoopStrategy(cfg.Loop.SrcIP)
	if err != nil {
		return nil, fmt.Errorf("replicator: loop.srcip: %w", err)
	}
	dstLoop, err := ParseIPLoopStrategy(cfg.Loop.DstIP)
	if err != nil {
		return nil, fmt.Errorf("replicator: loop.dstip: %w", err)
	}
	r.Loop = Loop{SrcIP: srcLoop, DstIP: dstLoop}

	return r, nil
}

// addressOffsets reports where within pkt.Bytes the src/dst IP and MAC
// fields live, based on the classification already done by ingest.
func addressOffsets(pkt *ingest.Classified) (srcIP, dstIP, ipLen int, srcMAC, dstMAC int) {
	srcMAC, dstMAC = 6, 0
	switch pkt.L3 {
	case ingest.L3IPv4:
		srcIP, dstIP, ipLen = pkt.L3Offset+12, pkt.L3Offset+16, 4
	case ingest.L3IPv6:
		srcIP, dstIP, ipLen = pkt.L3Offset+8, pkt.L3Offset+24, 16
	}
	return
}

// Apply produces one rewritten packet per configured unit, each with the
// loop strategy additionally applied for loop index loopIdx (§4.10:
// "unit-level first, then loop-level with current loop index").
func (r *Replicator) Apply(pkt *ingest.Classified, loopIdx int) [][]byte {
	out := make([][]byte, 0, len(r.Units))
	srcIPOff, dstIPOff, ipLen, srcMACOff, dstMACOff := addressOffsets(pkt)

	for _, u := range r.Units {
		b := append([]byte(nil), pkt.Bytes...)

		if ipLen > 0 {
			u.SrcIP.Apply(net.IP(b[srcIPOff : srcIPOff+ipLen]))
			u.DstIP.Apply(net.IP(b[dstIPOff : dstIPOff+ipLen]))
			r.Loop.SrcIP.Apply(net.IP(b[srcIPOff:srcIPOff+ipLen]), loopIdx)
			r.Loop.DstIP.Apply(net.IP(b[dstIPOff:dstIPOff+ipLen]), loopIdx)
		}
		u.SrcMAC.Apply(net.HardwareAddr(b[srcMACOff : srcMACOff+6]))
		u.DstMAC.Apply(net.HardwareAddr(b[dstMACOff : dstMACOff+6]))

		out = append(out, b)
	}
	return out
}
