package flowmaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftrand"
	"github.com/CESNET/ft-generator/internal/genconfig"
)

func constantSampler(srcIP, dstIP []byte) AddressSampler {
	return func(row genconfig.ProfileRow, r *ftrand.Rand) ([]byte, []byte) {
		return srcIP, dstIP
	}
}

func echoBuild(row genconfig.ProfileRow, flowID uint64, srcIP, dstIP []byte, r *ftrand.Rand) (*flow.Flow, error) {
	f := flow.New(flowID, row.L3Proto, row.L4Proto, r)
	f.SrcIP, f.DstIP = srcIP, dstIP
	return f, nil
}

func TestFlowMakerPreservesSubmissionOrder(t *testing.T) {
	fm := New(4, 0, 1, false, constantSampler([]byte{1, 2, 3, 4}), echoBuild)
	defer fm.Close()

	const n = 50
	for i := uint64(0); i < n; i++ {
		row := genconfig.ProfileRow{L3Proto: flow.L3IPv4, L4Proto: flow.L4TCP, SrcPort: uint16(i), DstPort: 80}
		require.NoError(t, fm.Submit(row, i))
	}

	for i := uint64(0); i < n; i++ {
		f, err, ok := fm.Next()
		require.True(t, ok)
		require.NoError(t, err)
		assert.Equal(t, i, f.ID)
	}
}

func TestFlowMakerCollisionExhaustion(t *testing.T) {
	fm := New(1, 0, 1, true, constantSampler([]byte{9, 9, 9, 9}), echoBuild)
	defer fm.Close()

	row := genconfig.ProfileRow{L3Proto: flow.L3IPv4, L4Proto: flow.L4TCP, SrcPort: 1, DstPort: 2}
	require.NoError(t, fm.Submit(row, 0))
	_, _, ok := fm.Next()
	require.True(t, ok)

	// Same tuple again: always collides against the same fixed address,
	// so every one of TryCount retries fails.
	err := fm.Submit(row, 1)
	assert.Error(t, err)
	var collErr *ErrCollisionExhausted
	assert.ErrorAs(t, err, &collErr)
}
