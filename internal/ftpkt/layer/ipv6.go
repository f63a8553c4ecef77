package layer

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
)

const ipv6HeaderLen = 40

type ipv6Frag struct {
	id      uint32
	offset  uint16
	payload []byte
}

// IPv6 is the L3 layer for IPv6 flows, grounded on layers/ipv6.{h,cpp}.
// Mirrors IPv4's per-direction hop limit and fragmentation, but expresses
// a split datagram as an IPv6 Fragment extension header rather than
// header flags/offset fields, and additionally fixes a random 20-bit flow
// label shared by both directions.
type IPv6 struct {
	index int

	l4proto layers.IPProtocol

	fragProbability         float64
	minPacketSizeToFragment uint64

	flowLabel      uint32
	fwdHopLimit    uint8
	revHopLimit    uint8
	fwdID, revID   uint32

	pending map[*flow.PlannedPacket]ipv6Frag
}

func NewIPv6(l4proto layers.IPProtocol, fragProbability float64, minPacketSizeToFragment uint64) *IPv6 {
	return &IPv6{
		l4proto:                 l4proto,
		fragProbability:         fragProbability,
		minPacketSizeToFragment: minPacketSizeToFragment,
		pending:                 make(map[*flow.PlannedPacket]ipv6Frag),
	}
}

func (ip *IPv6) AddedToFlow(f *flow.Flow, index int) {
	ip.index = index
	ip.flowLabel = uint32(f.Rand.Uint64n(0, 0xFFFFF))
	ip.fwdHopLimit = uint8(f.Rand.Uint64n(16, 255))
	ip.revHopLimit = uint8(f.Rand.Uint64n(16, 255))
	ip.fwdID = uint32(f.Rand.Uint64n(0, 0xFFFFFFFF))
	ip.revID = uint32(f.Rand.Uint64n(0, 0xFFFFFFFF))
}

func (ip *IPv6) PlanFlow(f *flow.Flow) {
	for _, p := range f.Packets {
		p.Size += ipv6HeaderLen
	}
}

func (ip *IPv6) PostPlanFlow(f *flow.Flow) {
	n := len(f.Packets)
	for i := 0; i < n; i++ {
		p := f.Packets[i]
		if p.IsFinished || p.IsExtra {
			continue
		}
		if p.Size < ip.minPacketSizeToFragment {
			continue
		}
		if f.Rand.Float64() >= ip.fragProbability {
			continue
		}
		p.Params[ip.index] = flow.LayerParam{Valid: true}
		f.InsertAfter(p)
	}
}

func (ip *IPv6) PlanExtra(f *flow.Flow) {
	for _, p := range f.Packets {
		if p.IsExtra && p.ExtraOf != nil && p.ExtraOf.Params[ip.index].Valid {
			p.IsFinished = true
		}
	}
}

func (ip *IPv6) addrAndHopLimit(pkt *flow.PlannedPacket, f *flow.Flow) (src, dst []byte, hl uint8, id *uint32) {
	if pkt.Direction == flow.Reverse {
		return f.DstIP, f.SrcIP, ip.revHopLimit, &ip.revID
	}
	return f.SrcIP, f.DstIP, ip.fwdHopLimit, &ip.fwdID
}

func (ip *IPv6) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		frag := ip.pending[pkt.ExtraOf]
		src, dst, hl, _ := ip.addrAndHopLimit(pkt, f)
		hdr := &layers.IPv6{
			Version:      6,
			FlowLabel:    ip.flowLabel,
			HopLimit:     hl,
			NextHeader:   layers.IPProtocolIPv6Fragment,
			SrcIP:        src,
			DstIP:        dst,
		}
		fragHdr := &layers.IPv6Fragment{
			NextHeader:     ip.l4proto,
			FragmentOffset: frag.offset,
			MoreFragments:  false,
			Identification: frag.id,
		}
		pb.Append(hdr)
		pb.Append(fragHdr)
		pb.Append(gopacket.Payload(frag.payload))
		delete(ip.pending, pkt.ExtraOf)
		return
	}

	src, dst, hl, idp := ip.addrAndHopLimit(pkt, f)
	hdr := &layers.IPv6{
		Version:    6,
		FlowLabel:  ip.flowLabel,
		HopLimit:   hl,
		NextHeader: ip.l4proto,
		SrcIP:      src,
		DstIP:      dst,
	}
	*idp++

	pb.Append(hdr)
	pb.SetNetworkLayer(hdr, len(pb.Layers())-1)
	pb.Consume(ipv6HeaderLen)
}

func (ip *IPv6) PostBuild(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra || !pkt.Params[ip.index].Valid {
		return
	}

	idx := pb.NetworkLayerIndex()
	upper := pb.Layers()[idx+1:]
	inner, err := ftpkt.SerializeLayers(upper)
	if err != nil {
		panic("ftpkt/layer: ipv6: serialize upper layers for fragmentation: " + err.Error())
	}

	split := align8(len(inner) / 2)
	if split == 0 || split >= len(inner) {
		split = align8(len(inner)) / 2
		if split == 0 {
			split = 8
		}
	}

	hdr := pb.Layers()[idx].(*layers.IPv6)
	hdr.NextHeader = layers.IPProtocolIPv6Fragment

	id := uint32(f.Rand.Uint64n(0, 0xFFFFFFFF))
	fragHdr := &layers.IPv6Fragment{
		NextHeader:     ip.l4proto,
		FragmentOffset: 0,
		MoreFragments:  true,
		Identification: id,
	}

	newLayers := make([]gopacket.SerializableLayer, 0, idx+3)
	newLayers = append(newLayers, pb.Layers()[:idx+1]...)
	newLayers = append(newLayers, fragHdr, gopacket.Payload(inner[:split]))
	pb.SetLayers(newLayers)

	ip.pending[pkt] = ipv6Frag{id: id, offset: uint16(split / 8), payload: inner[split:]}
}
