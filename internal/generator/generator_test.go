package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/flowmaker"
	"github.com/CESNET/ft-generator/internal/genconfig"
)

func TestGeneratorRunEmitsExpectedPacketCount(t *testing.T) {
	builder := NewBuilder(Options{
		EnabledProtocols: map[string]bool{},
	})

	pool, err := NewAddressPool(genconfig.AddrFamilyConfig{}, genconfig.AddrFamilyConfig{}, 42)
	require.NoError(t, err)

	fm := flowmaker.New(2, 0, 42, false, pool.Sample, builder.Build)
	defer fm.Close()

	rows := []genconfig.ProfileRow{
		{StartTime: 0, EndTime: 10_000_000_000, L3Proto: flow.L3IPv4, L4Proto: flow.L4UDP,
			SrcPort: 1111, DstPort: 53, Packets: 5, Bytes: 500, PacketsRev: 5, BytesRev: 500},
	}

	g := New(nil, rows, fm, nil, nil, 0)
	emitted, err := g.Run()
	require.NoError(t, err)
	assert.EqualValues(t, 10, emitted)
}
