package layer

import (
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
)

const icmpHeaderLen = 8

// icmpv4RandomKinds is a small plausible set of ICMP type/code pairs for
// the "Random" variant (§3 "alternative Random variants exist for future
// ICMP error traffic").
var icmpv4RandomKinds = []layers.ICMPv4TypeCode{
	layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
	layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0),
	layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodeNet),
	layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodeHost),
	layers.CreateICMPv4TypeCode(layers.ICMPv4TypeDestinationUnreachable, layers.ICMPv4CodePort),
	layers.CreateICMPv4TypeCode(layers.ICMPv4TypeTimeExceeded, 0),
}

// ICMPEcho is the IcmpEcho layer variant: an alternating request/reply
// exchange, grounded on layers/icmp.{h,cpp}.
type ICMPEcho struct {
	index int
	id    uint16
}

func NewICMPEcho() *ICMPEcho { return &ICMPEcho{} }

func (i *ICMPEcho) AddedToFlow(f *flow.Flow, index int) {
	i.index = index
	i.id = uint16(f.Rand.Uint64n(0, 65535))
}

// PlanFlow partitions every packet alternately Forward/Reverse (§4.4) and
// assigns each echo pair a shared sequence number.
func (i *ICMPEcho) PlanFlow(f *flow.Flow) {
	for idx, p := range f.Packets {
		p.Size += icmpHeaderLen
		if idx%2 == 0 {
			p.Direction = flow.Forward
		} else {
			p.Direction = flow.Reverse
		}
		p.Params[i.index] = flow.LayerParam{Valid: true, Value: uint64(idx / 2)}
	}
}

func (i *ICMPEcho) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}

	typeCode := layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)
	if pkt.Direction == flow.Reverse {
		typeCode = layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0)
	}

	hdr := &layers.ICMPv4{
		TypeCode: typeCode,
		Id:       i.id,
		Seq:      uint16(pkt.Params[i.index].Value),
	}
	pb.Append(hdr)
	pb.Consume(icmpHeaderLen)
}

// ICMPRandom is the IcmpRandom layer variant: a bag of plausible ICMP
// error/informational messages with no request/reply structure, leaving
// direction assignment to PlanPacketsDirections.
type ICMPRandom struct {
	index int
}

func NewICMPRandom() *ICMPRandom { return &ICMPRandom{} }

func (i *ICMPRandom) AddedToFlow(f *flow.Flow, index int) { i.index = index }

func (i *ICMPRandom) PlanFlow(f *flow.Flow) {
	for _, p := range f.Packets {
		p.Size += icmpHeaderLen
	}
}

func (i *ICMPRandom) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}

	kind := icmpv4RandomKinds[f.Rand.Choice(len(icmpv4RandomKinds))]
	hdr := &layers.ICMPv4{
		TypeCode: kind,
		Id:       uint16(f.Rand.Uint64n(0, 65535)),
		Seq:      uint16(f.Rand.Uint64n(0, 65535)),
	}
	pb.Append(hdr)
	pb.Consume(icmpHeaderLen)
}
