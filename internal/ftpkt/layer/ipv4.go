package layer

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
)

const ipv4HeaderLen = 20

// ipv4Frag stashes the second half of a datagram split by PostBuild,
// keyed by the primary (non-extra) packet, for the InsertAfter'd extra
// packet's own Build call to pick up later.
type ipv4Frag struct {
	id      uint16
	offset  uint16
	payload []byte
}

// IPv4 is the L3 layer for IPv4 flows, grounded on layers/ipv4.{h,cpp}. It
// fixes a random TTL and a monotonically increasing IP ID per direction,
// and optionally fragments a packet into two IP datagrams (§4.4, §8
// scenario 5).
type IPv4 struct {
	index int

	l4proto layers.IPProtocol

	fragProbability         float64
	minPacketSizeToFragment uint64

	fwdTTL, revTTL uint8
	fwdID, revID   uint16

	pending map[*flow.PlannedPacket]ipv4Frag
}

// NewIPv4 constructs the IPv4 layer. fragProbability is the per-packet
// chance (checked only for packets at least minPacketSizeToFragment
// bytes) of being split into two IP fragments.
func NewIPv4(l4proto layers.IPProtocol, fragProbability float64, minPacketSizeToFragment uint64) *IPv4 {
	return &IPv4{
		l4proto:                 l4proto,
		fragProbability:         fragProbability,
		minPacketSizeToFragment: minPacketSizeToFragment,
		pending:                 make(map[*flow.PlannedPacket]ipv4Frag),
	}
}

func (ip *IPv4) AddedToFlow(f *flow.Flow, index int) {
	ip.index = index
	ip.fwdTTL = uint8(f.Rand.Uint64n(16, 255))
	ip.revTTL = uint8(f.Rand.Uint64n(16, 255))
	ip.fwdID = uint16(f.Rand.Uint64n(0, 65535))
	ip.revID = uint16(f.Rand.Uint64n(0, 65535))
}

func (ip *IPv4) PlanFlow(f *flow.Flow) {
	for _, p := range f.Packets {
		p.Size += ipv4HeaderLen
	}
}

// PostPlanFlow rolls the fragmentation dice for every non-finished packet
// large enough to split, inserting the second fragment as an extra packet
// right after it.
func (ip *IPv4) PostPlanFlow(f *flow.Flow) {
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

// PlanExtra marks the fragment packets it inserted as finished, so the
// byte-size solver (§4.2) never tries to assign them an independent size.
func (ip *IPv4) PlanExtra(f *flow.Flow) {
	for _, p := range f.Packets {
		if p.IsExtra && p.ExtraOf != nil && p.ExtraOf.Params[ip.index].Valid {
			p.IsFinished = true
		}
	}
}

func (ip *IPv4) addrAndTTL(pkt *flow.PlannedPacket, f *flow.Flow) (src, dst []byte, ttl uint8, id *uint16) {
	if pkt.Direction == flow.Reverse {
		return f.DstIP, f.SrcIP, ip.revTTL, &ip.revID
	}
	return f.SrcIP, f.DstIP, ip.fwdTTL, &ip.fwdID
}

func (ip *IPv4) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		frag := ip.pending[pkt.ExtraOf]
		src, dst, ttl, _ := ip.addrAndTTL(pkt, f)
		hdr := &layers.IPv4{
			Version:    4,
			TTL:        ttl,
			Id:         frag.id,
			Protocol:   ip.l4proto,
			SrcIP:      src,
			DstIP:      dst,
			FragOffset: frag.offset,
		}
		pb.Append(hdr)
		pb.Append(gopacket.Payload(frag.payload))
		delete(ip.pending, pkt.ExtraOf)
		return
	}

	src, dst, ttl, idp := ip.addrAndTTL(pkt, f)
	hdr := &layers.IPv4{
		Version:  4,
		TTL:      ttl,
		Id:       *idp,
		Protocol: ip.l4proto,
		SrcIP:    src,
		DstIP:    dst,
	}
	if pkt.Params[ip.index].Valid {
		hdr.Flags = layers.IPv4MoreFragments
	}
	*idp++

	pb.Append(hdr)
	pb.SetNetworkLayer(hdr, len(pb.Layers())-1)
	pb.Consume(ipv4HeaderLen)
}

// PostBuild splits a flagged packet's already-built upper-layer bytes into
// two 8-byte-aligned fragments: this packet keeps the first half with MF
// set, and the second half is stashed for the InsertAfter'd extra packet.
func (ip *IPv4) PostBuild(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra || !pkt.Params[ip.index].Valid {
		return
	}

	idx := pb.NetworkLayerIndex()
	upper := pb.Layers()[idx+1:]
	inner, err := ftpkt.SerializeLayers(upper)
	if err != nil {
		panic("ftpkt/layer: ipv4: serialize upper layers for fragmentation: " + err.Error())
	}

	split := align8(len(inner) / 2)
	if split == 0 || split >= len(inner) {
		split = align8(len(inner)) / 2
		if split == 0 {
			split = 8
		}
	}

	hdr := pb.Layers()[idx].(*layers.IPv4)
	hdr.Flags = layers.IPv4MoreFragments
	hdr.FragOffset = 0

	newLayers := make([]gopacket.SerializableLayer, 0, idx+2)
	newLayers = append(newLayers, pb.Layers()[:idx+1]...)
	newLayers = append(newLayers, gopacket.Payload(inner[:split]))
	pb.SetLayers(newLayers)

	ip.pending[pkt] = ipv4Frag{id: hdr.Id, offset: uint16(split / 8), payload: inner[split:]}
}

func align8(n int) int { return n - n%8 }
