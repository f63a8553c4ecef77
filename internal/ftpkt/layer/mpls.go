package layer

import (
	"github.com/google/gopacket/layers"

	"github.com/CESNET/ft-generator/internal/ftpkt"
	"github.com/CESNET/ft-generator/internal/flow"
)

const mplsHeaderLen = 4

// Mpls pushes one MPLS label, grounded on layers/mpls.{h,cpp}. Only the
// last (bottom-of-stack) label of an MPLS run sets BOS: a label directly
// followed by another Mpls layer in the flow leaves it clear.
type Mpls struct {
	index     int
	label     uint32
	innerIPv6 bool
}

// NewMpls constructs an MPLS layer carrying label. innerIPv6 is recorded
// but Build does not use it; the Ethernet/Vlan layer beneath carries the
// MPLS unicast EtherType via its own nextType for either IP version.
func NewMpls(label uint32, innerIPv6 bool) *Mpls {
	return &Mpls{label: label, innerIPv6: innerIPv6}
}

func (m *Mpls) AddedToFlow(f *flow.Flow, index int) { m.index = index }

// PlanFlow is a no-op: Mpls sits below the IP layer, outside the byte
// budget PlannedPacket.Size tracks (see Ethernet.PlanFlow).
func (m *Mpls) PlanFlow(f *flow.Flow) {}

func (m *Mpls) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	bottom := true
	if m.index+1 < len(f.Layers) {
		if _, ok := f.Layers[m.index+1].(*Mpls); ok {
			bottom = false
		}
	}
	pb.Append(&layers.MPLS{
		Label:       m.label,
		TTL:         64,
		StackBottom: bottom,
	})
}
