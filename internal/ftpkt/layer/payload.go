package layer

import (
	"github.com/google/gopacket"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
)

// Payload is the terminal layer used whenever no protocol-aware upper
// layer (Http, Dns) substitutes for it: it fills whatever byte budget is
// left with random content, grounded on layers/payload.{h,cpp}. It never
// contributes to PlanFlow since the size solver (§4.2) works in terms of
// the packet's total size, not a separate payload target.
type Payload struct {
	index int
}

func NewPayload() *Payload { return &Payload{} }

func (p *Payload) AddedToFlow(f *flow.Flow, index int) { p.index = index }

func (p *Payload) PlanFlow(f *flow.Flow) {}

func (p *Payload) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra {
		return
	}
	if pb.Remaining <= 0 {
		return
	}
	pb.Append(gopacket.Payload(f.Rand.Bytes(int(pb.Remaining))))
	pb.Consume(int(pb.Remaining))
}
