// Package flow holds the Flow and PlannedPacket types shared by every
// layer in internal/ftpkt/layer, grounded on
// original_source/tools/ft-generator/src/flow.{h,cpp} and packet.h. A Flow
// exclusively owns its layer stack and its planned-packet list (§3); a
// Layer never holds a back-pointer to its Flow, receiving it explicitly on
// every plan/build call instead (§9 "Flow↔Layer back-reference").
package flow

import (
	"fmt"

	"github.com/CESNET/ft-generator/internal/ftpkt/sizeplan"
	"github.com/CESNET/ft-generator/internal/ftpkt/tsplan"
	"github.com/CESNET/ft-generator/internal/ftrand"
)

// Direction is the side of the biflow a packet belongs to.
type Direction int

const (
	Unknown Direction = iota
	Forward
	Reverse
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "fwd"
	case Reverse:
		return "rev"
	default:
		return "unknown"
	}
}

// L3Proto is the network-layer protocol selected for a flow.
type L3Proto int

const (
	L3IPv4 L3Proto = 4
	L3IPv6 L3Proto = 6
)

// L4Proto is the transport/ICMP protocol selected for a flow.
type L4Proto int

const (
	L4ICMP     L4Proto = 1
	L4TCP      L4Proto = 6
	L4UDP      L4Proto = 17
	L4ICMPv6   L4Proto = 58
	L4ICMPRand L4Proto = 101 // synthetic marker: ICMP "random" variant
)

// MaxLayers bounds the number of layers any single flow's stack may hold
// (Eth + Vlan + Mpls + L3 + L4 + one upper layer, with headroom), per the
// §9 "flat fixed-size struct per layer-kind" design note in place of the
// original's map<int, variant<...>>.
const MaxLayers = 8

// LayerParam is one layer's opaque per-packet planning output — a variant
// of "nothing" or a single uint64, per §3's planned-packet `perLayerParams`
// field.
type LayerParam struct {
	Valid bool
	Value uint64
}

// PlannedPacket is a packet skeleton produced by the plan phase: direction,
// timestamp and size, plus whatever each layer recorded about it, but no
// concrete bytes yet (§3, §4.4).
type PlannedPacket struct {
	Direction  Direction
	Timestamp  uint64 // nanoseconds
	Size       uint64 // bytes from the IP layer up
	IsFinished bool
	IsExtra    bool

	// ExtraOf points at the packet this one was inserted after during
	// PostPlanFlow (e.g. the second half of a fragmented datagram).
	// nil for non-extra packets.
	ExtraOf *PlannedPacket

	Params [MaxLayers]LayerParam
}

// NormalizedIdentifier is the direction-agnostic 5-tuple used for
// collision detection (§3, §4.6): (ipLo, portLo) <= (ipHi, portHi)
// lexicographically, regardless of which side initiated the flow.
type NormalizedIdentifier struct {
	IPLo, IPHi     string
	PortLo, PortHi uint16
	L4             L4Proto
}

func (n NormalizedIdentifier) String() string {
	return fmt.Sprintf("%s:%d-%s:%d/%d", n.IPLo, n.PortLo, n.IPHi, n.PortHi, n.L4)
}

// Normalize builds a NormalizedIdentifier from one side's view of a flow.
func Normalize(srcIP, dstIP []byte, srcPort, dstPort uint16, l4 L4Proto) NormalizedIdentifier {
	a := NormalizedIdentifier{IPLo: string(srcIP), IPHi: string(dstIP), PortLo: srcPort, PortHi: dstPort, L4: l4}
	if less(a.IPHi, a.IPLo, a.PortHi, a.PortLo) {
		a.IPLo, a.IPHi = a.IPHi, a.IPLo
		a.PortLo, a.PortHi = a.PortHi, a.PortLo
	}
	return a
}

func less(ipA, ipB string, portA, portB uint16) bool {
	if ipA != ipB {
		return ipA < ipB
	}
	return portA < portB
}

// Layer is the minimal pipeline hook every protocol layer implements;
// optional capability interfaces (PostPlanner, ExtraPlanner, Builder,
// PostBuilder) are type-asserted by the planner/builder, matching
// §9's "small trait covering the pipeline hooks" note.
type Layer interface {
	// AddedToFlow is called once, in bottom-to-top stack order, right
	// after a layer is pushed onto a new Flow.
	AddedToFlow(f *Flow, index int)

	// PlanFlow is pass 1 of the plan phase (§4.4): append self to every
	// planned packet, contribute a minimum header size, and optionally
	// assign directions / insert packets / mark a packet finished.
	PlanFlow(f *Flow)
}

// PostPlanner is pass 2 of the plan phase: protocol-aware adjustments that
// need every layer's minimum sizing already in place (fragmentation rolls,
// DNS/HTTP message shaping).
type PostPlanner interface {
	PostPlanFlow(f *Flow)
}

// ExtraPlanner is pass 3: layers that inserted extra packets in
// PostPlanFlow must attach themselves to those extras here.
type ExtraPlanner interface {
	PlanExtra(f *Flow)
}

// Flow owns an ordered, bottom-to-top layer stack and the planned packets
// produced by running it, per §3.
type Flow struct {
	ID uint64

	L3 L3Proto
	L4 L4Proto

	FwdPackets, RevPackets uint64
	FwdBytes, RevBytes     uint64

	TsFirst, TsLast uint64

	SrcIP, DstIP     []byte
	SrcMAC, DstMAC   []byte
	SrcPort, DstPort uint16

	Layers   []Layer
	Packets  []*PlannedPacket
	Finished bool

	// Rand is this flow's dedicated PRNG stream (globalSeed XOR flowID,
	// §4.1, §5); every layer must use it instead of any package-level
	// source so runs stay reproducible.
	Rand *ftrand.Rand
}

// New constructs an empty Flow ready to have layers pushed onto it.
func New(id uint64, l3 L3Proto, l4 L4Proto, r *ftrand.Rand) *Flow {
	return &Flow{ID: id, L3: l3, L4: l4, Rand: r}
}

// Push appends a layer to the bottom-to-top stack and invokes its
// AddedToFlow hook with its stack index.
func (f *Flow) Push(l Layer) {
	idx := len(f.Layers)
	f.Layers = append(f.Layers, l)
	l.AddedToFlow(f, idx)
}

// NewPacket appends a fresh planned packet and returns it.
func (f *Flow) NewPacket() *PlannedPacket {
	p := &PlannedPacket{Direction: Unknown}
	f.Packets = append(f.Packets, p)
	return p
}

// InsertAfter inserts a new planned packet immediately after `after`,
// returning it. Used by PostPlanFlow fragmentation (§4.4).
func (f *Flow) InsertAfter(after *PlannedPacket) *PlannedPacket {
	extra := &PlannedPacket{Direction: after.Direction, IsExtra: true, ExtraOf: after}
	for i, p := range f.Packets {
		if p == after {
			f.Packets = append(f.Packets, nil)
			copy(f.Packets[i+2:], f.Packets[i+1:])
			f.Packets[i+1] = extra
			return extra
		}
	}
	panic("flow: InsertAfter: packet not found in flow")
}

// RunPlanPhase executes the three-pass plan phase described in §4.4. The
// flow's packet list is seeded with FwdPackets+RevPackets blank slots
// first, since every layer's PlanFlow pass works by iterating f.Packets.
func (f *Flow) RunPlanPhase() {
	if len(f.Packets) == 0 {
		for i := uint64(0); i < f.FwdPackets+f.RevPackets; i++ {
			f.NewPacket()
		}
	}

	for _, l := range f.Layers {
		l.PlanFlow(f)
	}
	for _, l := range f.Layers {
		if pp, ok := l.(PostPlanner); ok {
			pp.PostPlanFlow(f)
		}
	}
	for _, l := range f.Layers {
		if ep, ok := l.(ExtraPlanner); ok {
			ep.PlanExtra(f)
		}
	}
}

// FinishPlanPackets runs the fourth stage of the plan phase (§4.4), after
// RunPlanPhase's three layer passes have fixed every layer's header sizes,
// directions and finished-packet reservations. It assigns whatever those
// passes left open: PlanPacketsDirections fills the remaining Unknown
// slots from the flow's fwd/rev packet budget, PlanPacketsTimestamps
// spreads real timestamps across the whole packet list, and
// PlanPacketsSizes (§4.2) solves the byte target for the packets still
// missing one. maxGap is the optional inter-packet gap cap in
// nanoseconds, or nil for no cap.
func (f *Flow) FinishPlanPackets(maxGap *uint64) error {
	if err := f.planPacketsDirections(); err != nil {
		return err
	}
	if err := f.planPacketsTimestamps(maxGap); err != nil {
		return err
	}
	if err := f.planPacketsSizes(); err != nil {
		return err
	}
	return nil
}

// planPacketsDirections shuffles a direction assignment across every
// packet still Unknown, using the flow's remaining fwd/rev packet counts
// (target minus whatever a layer already committed in RunPlanPhase) as the
// multiset to draw from, per §4.4. A layer's own pairing scheme (DNS/HTTP
// request/response alternation, ICMP echo) doesn't always land exactly on
// fwdPackets/revPackets; when it doesn't, the remainder is split evenly
// rather than treated as an error — the meter's delta-versus-target
// accounting (§4.8) is where that slack is expected to surface.
func (f *Flow) planPacketsDirections() error {
	var haveFwd, haveRev uint64
	var unknown []int
	for i, p := range f.Packets {
		switch p.Direction {
		case Forward:
			haveFwd++
		case Reverse:
			haveRev++
		default:
			unknown = append(unknown, i)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	var remFwd, remRev uint64
	if f.FwdPackets > haveFwd {
		remFwd = f.FwdPackets - haveFwd
	}
	if f.RevPackets > haveRev {
		remRev = f.RevPackets - haveRev
	}

	dirs := make([]Direction, 0, len(unknown))
	for uint64(len(dirs)) < remFwd && len(dirs) < len(unknown) {
		dirs = append(dirs, Forward)
	}
	for i := uint64(0); i < remRev && len(dirs) < len(unknown); i++ {
		dirs = append(dirs, Reverse)
	}
	for len(dirs) < len(unknown) {
		if len(dirs)%2 == 0 {
			dirs = append(dirs, Forward)
		} else {
			dirs = append(dirs, Reverse)
		}
	}

	f.Rand.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })

	for n, i := range unknown {
		f.Packets[i].Direction = dirs[n]
	}
	return nil
}

// planPacketsTimestamps spreads a non-decreasing timestamp across every
// packet in the flow, including already-finished ones, bounded by the
// flow's [TsFirst, TsLast] window.
func (f *Flow) planPacketsTimestamps(maxGap *uint64) error {
	if len(f.Packets) == 0 {
		return nil
	}
	if len(f.Packets) == 1 {
		f.Packets[0].Timestamp = f.TsFirst
		return nil
	}
	ts, err := tsplan.Generate(f.Rand, uint64(len(f.Packets)), f.TsFirst, f.TsLast, maxGap)
	if err != nil {
		return fmt.Errorf("flow: plan packet timestamps: %w", err)
	}
	for i, p := range f.Packets {
		p.Timestamp = ts[i]
	}
	return nil
}

// planPacketsSizes solves the §4.2 byte-size distribution for every
// packet not already finished (TCP handshake legs, DNS/HTTP exchange
// pairs, IP fragments), holding the finished packets' sizes as given and
// solving separately per direction since each has its own byte budget.
func (f *Flow) planPacketsSizes() error {
	for _, dir := range [2]Direction{Forward, Reverse} {
		target, budget := f.FwdBytes, dir == Forward
		if !budget {
			target = f.RevBytes
		}

		var idx []int
		var fixed uint64
		for i, p := range f.Packets {
			if p.Direction != dir {
				continue
			}
			if p.IsFinished {
				fixed += p.Size
				continue
			}
			idx = append(idx, i)
		}
		if len(idx) == 0 {
			continue
		}

		remaining := uint64(0)
		if target > fixed {
			remaining = target - fixed
		}

		sizes, err := sizeplan.Generate(f.Rand, len(idx), remaining, sizeplan.DefaultIntervals)
		if err != nil {
			return fmt.Errorf("flow: plan packet sizes (%s): %w", dir, err)
		}
		for n, i := range idx {
			f.Packets[i].Size = sizes[n]
		}
	}
	return nil
}
