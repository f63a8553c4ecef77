package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CESNET/ft-generator/internal/ftrand"
)

// noopLayer contributes a fixed header size and nothing else, standing in
// for a generic L3/L4 layer for plan-phase orchestration tests.
type noopLayer struct {
	headerLen uint64
}

func (l *noopLayer) AddedToFlow(f *Flow, index int) {}
func (l *noopLayer) PlanFlow(f *Flow) {
	for _, p := range f.Packets {
		p.Size += l.headerLen
	}
}

func TestRunPlanPhaseSeedsPacketList(t *testing.T) {
	f := New(1, L3IPv4, L4UDP, ftrand.ForFlow(1, 1))
	f.FwdPackets, f.RevPackets = 3, 2
	f.Push(&noopLayer{headerLen: 28})

	f.RunPlanPhase()

	require.Len(t, f.Packets, 5)
	for _, p := range f.Packets {
		assert.EqualValues(t, 28, p.Size)
		assert.Equal(t, Unknown, p.Direction)
	}
}

func TestFinishPlanPacketsAssignsDirectionsTimestampsAndSizes(t *testing.T) {
	f := New(2, L3IPv4, L4UDP, ftrand.ForFlow(7, 2))
	f.FwdPackets, f.RevPackets = 4, 3
	f.FwdBytes, f.RevBytes = 800, 600
	f.TsFirst, f.TsLast = 1_000_000, 11_000_000
	f.Push(&noopLayer{headerLen: 28})

	f.RunPlanPhase()
	require.NoError(t, f.FinishPlanPackets(nil))

	var fwd, rev int
	lastTs := uint64(0)
	for i, p := range f.Packets {
		assert.NotEqual(t, Unknown, p.Direction)
		assert.GreaterOrEqual(t, p.Timestamp, f.TsFirst)
		assert.LessOrEqual(t, p.Timestamp, f.TsLast)
		if i > 0 {
			assert.GreaterOrEqual(t, p.Timestamp, lastTs)
		}
		lastTs = p.Timestamp
		assert.Greater(t, p.Size, uint64(0))
		if p.Direction == Forward {
			fwd++
		} else {
			rev++
		}
	}
	assert.EqualValues(t, f.FwdPackets, fwd)
	assert.EqualValues(t, f.RevPackets, rev)
}

func TestFinishPlanPacketsSinglePacketFlowUsesTsFirst(t *testing.T) {
	f := New(3, L3IPv4, L4UDP, ftrand.ForFlow(1, 3))
	f.FwdPackets, f.RevPackets = 1, 0
	f.FwdBytes = 100
	f.TsFirst, f.TsLast = 5_000, 5_000
	f.Push(&noopLayer{headerLen: 28})

	f.RunPlanPhase()
	require.NoError(t, f.FinishPlanPackets(nil))

	require.Len(t, f.Packets, 1)
	assert.EqualValues(t, 5_000, f.Packets[0].Timestamp)
	assert.Equal(t, Forward, f.Packets[0].Direction)
}

func TestNormalizeIsOrientationAgnostic(t *testing.T) {
	a := Normalize([]byte("10.0.0.1"), []byte("10.0.0.2"), 1111, 80, L4TCP)
	b := Normalize([]byte("10.0.0.2"), []byte("10.0.0.1"), 80, 1111, L4TCP)
	assert.Equal(t, a, b)
}
