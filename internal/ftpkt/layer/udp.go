package layer

import (
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
)

const udpHeaderLen = 8

// UDP is the L4 layer for UDP flows, grounded on layers/udp.{h,cpp}: a
// fixed 8-byte header, no sequencing state.
type UDP struct {
	index            int
	srcPort, dstPort uint16
}

func NewUDP(srcPort, dstPort uint16) *UDP {
	return &UDP{srcPort: srcPort, dstPort: dstPort}
}

func (u *UDP) AddedToFlow(f *flow.Flow, index int) { u.index = index }

func (u *UDP) PlanFlow(f *flow.Flow) {
	for _, p := range f.Packets {
		p.Size += udpHeaderLen
	}
}

func (u *UDP) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}

	srcPort, dstPort := u.srcPort, u.dstPort
	if pkt.Direction == flow.Reverse {
		srcPort, dstPort = dstPort, srcPort
	}

	hdr := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if nl := pb.NetworkLayer(); nl != nil {
		_ = hdr.SetNetworkLayerForChecksum(nl)
	}

	pb.Append(hdr)
	pb.Consume(udpHeaderLen)
}
