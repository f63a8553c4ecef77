package layer

import (
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
)

const tcpHeaderLen = 20

// TCP segment kinds, stored in the planned packet's per-layer param so
// Build knows which flags to set without re-deriving position in the list.
const (
	tcpKindData uint64 = iota
	tcpKindSYN
	tcpKindSYNACK
	tcpKindACK
	tcpKindFIN
)

// defaultLinkMTU is the Ethernet MTU the handshake-fits heuristic checks
// average bytes-per-packet against (§4.4).
const defaultLinkMTU = 1500

// TCP is the L4 layer for TCP flows, grounded on layers/tcp.{h,cpp}. It
// decides up front whether a 3-way open (3 fwd + 1 rev) and 4-way close (2
// fwd + 2 rev) fit the flow's packet/byte budgets, reserving the front and
// back of the packet list for them when they do; every other packet is a
// plain data segment.
type TCP struct {
	index int

	srcPort, dstPort uint16

	handshake bool

	fwdSeq, revSeq uint32
}

func NewTCP(srcPort, dstPort uint16) *TCP {
	return &TCP{srcPort: srcPort, dstPort: dstPort}
}

func (t *TCP) AddedToFlow(f *flow.Flow, index int) {
	t.index = index
	t.fwdSeq = uint32(f.Rand.Uint64n(0, 0xFFFFFFFF))
	t.revSeq = uint32(f.Rand.Uint64n(0, 0xFFFFFFFF))
}

func (t *TCP) PlanFlow(f *flow.Flow) {
	for _, p := range f.Packets {
		p.Size += tcpHeaderLen
	}

	const (
		openFwd, openRev   = 3, 1
		closeFwd, closeRev = 2, 2
	)
	reserved := openFwd + openRev + closeFwd + closeRev

	if f.FwdPackets < openFwd+closeFwd || f.RevPackets < openRev+closeRev {
		return
	}
	if len(f.Packets) < reserved {
		return
	}

	headerOnly := f.Packets[0].Size
	remainingPackets := int64(len(f.Packets)) - int64(reserved)
	if remainingPackets <= 0 {
		return
	}

	totalBytes := f.FwdBytes + f.RevBytes
	totalPackets := f.FwdPackets + f.RevPackets
	naiveAvg := float64(totalBytes) / float64(totalPackets)

	forcedBytes := int64(totalBytes) - int64(reserved)*int64(headerOnly)
	forcedAvg := float64(forcedBytes) / float64(remainingPackets)

	if naiveAvg <= defaultLinkMTU && forcedAvg > defaultLinkMTU {
		return
	}
	if forcedBytes < 0 {
		return
	}

	t.handshake = true

	open := []struct {
		dir  flow.Direction
		kind uint64
	}{
		{flow.Forward, tcpKindSYN},
		{flow.Reverse, tcpKindSYNACK},
		{flow.Forward, tcpKindACK},
		{flow.Forward, tcpKindACK},
	}
	for i, o := range open {
		p := f.Packets[i]
		p.Direction = o.dir
		p.IsFinished = true
		p.Params[t.index] = flow.LayerParam{Valid: true, Value: o.kind}
	}

	teardown := []struct {
		dir  flow.Direction
		kind uint64
	}{
		{flow.Forward, tcpKindFIN},
		{flow.Reverse, tcpKindACK},
		{flow.Reverse, tcpKindFIN},
		{flow.Forward, tcpKindACK},
	}
	n := len(f.Packets)
	for i, c := range teardown {
		p := f.Packets[n-len(teardown)+i]
		p.Direction = c.dir
		p.IsFinished = true
		p.Params[t.index] = flow.LayerParam{Valid: true, Value: c.kind}
	}
}

func (t *TCP) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}

	srcPort, dstPort := t.srcPort, t.dstPort
	ownSeq, peerSeq := &t.fwdSeq, &t.revSeq
	if pkt.Direction == flow.Reverse {
		srcPort, dstPort = dstPort, srcPort
		ownSeq, peerSeq = &t.revSeq, &t.fwdSeq
	}

	payloadLen := int64(pb.Remaining) - tcpHeaderLen
	if payloadLen < 0 {
		payloadLen = 0
	}

	hdr := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     *ownSeq,
		Ack:     *peerSeq,
		Window:  64512,
	}

	kind := tcpKindData
	if pkt.Params[t.index].Valid {
		kind = pkt.Params[t.index].Value
	}
	switch kind {
	case tcpKindSYN:
		hdr.SYN = true
	case tcpKindSYNACK:
		hdr.SYN, hdr.ACK = true, true
	case tcpKindACK:
		hdr.ACK = true
	case tcpKindFIN:
		hdr.FIN, hdr.ACK = true, true
	default:
		hdr.ACK = true
		if payloadLen > 0 {
			hdr.PSH = true
		}
	}

	switch kind {
	case tcpKindSYN, tcpKindSYNACK, tcpKindFIN:
		*ownSeq++
	case tcpKindACK:
	default:
		*ownSeq += uint32(payloadLen)
	}

	if nl := pb.NetworkLayer(); nl != nil {
		_ = hdr.SetNetworkLayerForChecksum(nl)
	}

	pb.Append(hdr)
	pb.Consume(tcpHeaderLen)
}
