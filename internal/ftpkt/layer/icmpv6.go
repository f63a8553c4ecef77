package layer

import (
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
)

const icmpv6EchoHeaderLen = 8
const icmpv6HeaderLen = 4

var icmpv6RandomKinds = []layers.ICMPv6TypeCode{
	layers.CreateICMPv6TypeCode(layers.ICMPv6TypeDestinationUnreachable, 0),
	layers.CreateICMPv6TypeCode(layers.ICMPv6TypeDestinationUnreachable, 3),
	layers.CreateICMPv6TypeCode(layers.ICMPv6TypeTimeExceeded, 0),
	layers.CreateICMPv6TypeCode(layers.ICMPv6TypePacketTooBig, 0),
}

// ICMPv6Echo mirrors ICMPEcho for IPv6, grounded on the same
// layers/icmp.{h,cpp} request/reply pattern.
type ICMPv6Echo struct {
	index int
	id    uint16
}

func NewICMPv6Echo() *ICMPv6Echo { return &ICMPv6Echo{} }

func (i *ICMPv6Echo) AddedToFlow(f *flow.Flow, index int) {
	i.index = index
	i.id = uint16(f.Rand.Uint64n(0, 65535))
}

func (i *ICMPv6Echo) PlanFlow(f *flow.Flow) {
	for idx, p := range f.Packets {
		p.Size += icmpv6EchoHeaderLen
		if idx%2 == 0 {
			p.Direction = flow.Forward
		} else {
			p.Direction = flow.Reverse
		}
		p.Params[i.index] = flow.LayerParam{Valid: true, Value: uint64(idx / 2)}
	}
}

func (i *ICMPv6Echo) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}

	typeCode := layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoRequest, 0)
	if pkt.Direction == flow.Reverse {
		typeCode = layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoReply, 0)
	}

	hdr := &layers.ICMPv6{TypeCode: typeCode}
	if nl := pb.NetworkLayer(); nl != nil {
		_ = hdr.SetNetworkLayerForChecksum(nl)
	}
	echo := &layers.ICMPv6Echo{
		Identifier: i.id,
		SeqNumber:  uint16(pkt.Params[i.index].Value),
	}

	pb.Append(hdr)
	pb.Append(echo)
	pb.Consume(icmpv6EchoHeaderLen)
}

// ICMPv6Random mirrors ICMPRandom for IPv6.
type ICMPv6Random struct {
	index int
}

func NewICMPv6Random() *ICMPv6Random { return &ICMPv6Random{} }

func (i *ICMPv6Random) AddedToFlow(f *flow.Flow, index int) { i.index = index }

func (i *ICMPv6Random) PlanFlow(f *flow.Flow) {
	for _, p := range f.Packets {
		p.Size += icmpv6HeaderLen
	}
}

func (i *ICMPv6Random) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}

	kind := icmpv6RandomKinds[f.Rand.Choice(len(icmpv6RandomKinds))]
	hdr := &layers.ICMPv6{TypeCode: kind}
	if nl := pb.NetworkLayer(); nl != nil {
		_ = hdr.SetNetworkLayerForChecksum(nl)
	}
	pb.Append(hdr)
	pb.Consume(icmpv6HeaderLen)
}
