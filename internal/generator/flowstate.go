package generator

import "github.com/CESNET/ft-generator/internal/flow"

// flowState wraps a planned Flow with an emission cursor, implementing
// calendar.Flow so the main loop can keep it in the min-heap between
// emitted packets.
type flowState struct {
	f    *flow.Flow
	next int // index into f.Packets of the next packet to emit
}

func newFlowState(f *flow.Flow) *flowState {
	return &flowState{f: f}
}

// NextTimestamp implements calendar.Flow.
func (s *flowState) NextTimestamp() (uint64, bool) {
	if s.next >= len(s.f.Packets) {
		return 0, false
	}
	return s.f.Packets[s.next].Timestamp, true
}

// Advance returns the packet due to be emitted and moves the cursor past
// it. Panics if nothing remains; callers must check NextTimestamp first.
func (s *flowState) Advance() *flow.PlannedPacket {
	p := s.f.Packets[s.next]
	s.next++
	return p
}

// Done reports whether every packet has been emitted.
func (s *flowState) Done() bool {
	return s.next >= len(s.f.Packets)
}
