package layer

import (
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/ftpkt"
	"github.com/CESNET/ft-generator/internal/flow"
)

const vlanHeaderLen = 4

// Vlan pushes one 802.1Q tag, grounded on layers/vlan.{h,cpp}. §3 forbids a
// Vlan layer from following an Mpls layer in the same stack; genconfig's
// config validation rejects that ordering at load time, not this type.
type Vlan struct {
	index    int
	id       uint16
	nextType layers.EthernetType
}

// NewVlan constructs a VLAN layer tagging id, with nextType the EtherType
// of whatever sits above it.
func NewVlan(id uint16, nextType layers.EthernetType) *Vlan {
	return &Vlan{id: id, nextType: nextType}
}

func (v *Vlan) AddedToFlow(f *flow.Flow, index int) { v.index = index }

// PlanFlow is a no-op: Vlan sits below the IP layer, outside the byte
// budget PlannedPacket.Size tracks (see Ethernet.PlanFlow).
func (v *Vlan) PlanFlow(f *flow.Flow) {}

func (v *Vlan) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	pb.Append(&layers.Dot1Q{
		VLANIdentifier: v.id,
		Type:           v.nextType,
	})
}
