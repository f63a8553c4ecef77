package layer

import (
	"github.com/google/gopacket"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftpkt"
)

// TLSMarker stands in for an encrypted upper layer: ciphertext is
// indistinguishable from random bytes, so its Build is identical to
// Payload's. It exists as its own type so flow construction (driven by
// `payload.tls_encryption` in the generator config) can select "this
// stream is marked TLS" independently of "this stream has no recognized
// upper protocol at all" for reporting/labelling purposes.
type TLSMarker struct {
	index int
}

func NewTLSMarker() *TLSMarker { return &TLSMarker{} }

func (t *TLSMarker) AddedToFlow(f *flow.Flow, index int) { t.index = index }

func (t *TLSMarker) PlanFlow(f *flow.Flow) {}

func (t *TLSMarker) Build(f *flow.Flow, pb *ftpkt.BuildPacket, pkt *flow.PlannedPacket) {
	if pkt.IsExtra || pb.Remaining <= 0 {
		return
	}
	pb.Append(gopacket.Payload(f.Rand.Bytes(int(pb.Remaining))))
	pb.Consume(int(pb.Remaining))
}
