// Package layer implements the per-protocol plan/build pair described in
// spec.md §4.4, one file per protocol, grounded on
// original_source/tools/ft-generator/src/layers/*.{h,cpp}.
package layer

import (
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/ftpkt"
	"github.com/CESNET/ft-generator/internal/flow"
)

const ethHeaderLen = 14

// Ethernet is the bottom layer of every stack, grounded on
// layers/ethernet.{h,cpp}: fixed src/dst MAC per direction, EtherType set
// from whatever sits above it.
type Ethernet struct {
	index int

	nextType layers.EthernetType
}

// NewEthernet constructs the Ethernet layer; nextType is the EtherType of
// the layer directly above (802.1Q, MPLS unicast, IPv4 or IPv6).
func NewEthernet(nextType layers.EthernetType) *Ethernet {
	return &Ethernet{nextType: nextType}
}

func (e *Ethernet) AddedToFlow(f *flow.Flow, index int) { e.index = index }

// PlanFlow is a no-op: §3 defines PlannedPacket.Size as "bytes from the IP
// layer up", so Ethernet (like Vlan and Mpls) never contributes to it. Its
// fixed overhead is still physically present on the wire; it's just outside
// the byte budget the profile's fwdBytes/revBytes target.
func (e *Ethernet) PlanFlow(f *flow.Flow) {}

func (e *Ethernet) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	src, dst := f.SrcMAC, f.DstMAC
	if pkt.Direction == flow.Reverse {
		src, dst = f.DstMAC, f.SrcMAC
	}
	pb.Append(&layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       dst,
		EthernetType: e.nextType,
	})
}
