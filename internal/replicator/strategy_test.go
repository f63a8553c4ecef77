package replicator

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CESNET/ft-generator/internal/replay/ingest"
	"github.com/CESNET/ft-generator/internal/replicator/config"
)

func TestAddToIPWrapsByteBoundary(t *testing.T) {
	ip := net.IP{10, 0, 0, 255}
	addToIP(ip, 1)
	assert.Equal(t, net.IP{10, 0, 1, 0}, ip)
}

func TestParseIPUnitStrategyAddConstant(t *testing.T) {
	op, err := ParseIPUnitStrategy("addConstant(5)")
	require.NoError(t, err)
	ip := net.IP{192, 168, 0, 1}
	op.Apply(ip)
	assert.Equal(t, net.IP{192, 168, 0, 6}, ip)
}

func TestParseIPUnitStrategyAddCounterAdvances(t *testing.T) {
	op, err := ParseIPUnitStrategy("addCounter(0,1)")
	require.NoError(t, err)

	ip1 := net.IP{10, 0, 0, 0}
	op.Apply(ip1)
	ip2 := net.IP{10, 0, 0, 0}
	op.Apply(ip2)

	assert.Equal(t, net.IP{10, 0, 0, 0}, ip1)
	assert.Equal(t, net.IP{10, 0, 0, 1}, ip2)
}

func TestParseMacUnitStrategyLiteral(t *testing.T) {
	op, err := ParseMacUnitStrategy("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)

	mac := make(net.HardwareAddr, 6)
	op.Apply(mac)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mac.String())
}

func TestParseIPLoopStrategyAddOffset(t *testing.T) {
	op, err := ParseIPLoopStrategy("addOffset(1)")
	require.NoError(t, err)

	ip := net.IP{10, 0, 0, 0}
	op.Apply(ip, 3)
	assert.Equal(t, net.IP{10, 0, 0, 3}, ip)
}

func TestParseUnknownStrategyErrors(t *testing.T) {
	_, err := ParseIPUnitStrategy("bogus")
	assert.Error(t, err)
}

func TestCompileDefaultsToSingleNoneUnit(t *testing.T) {
	r, err := Compile(&config.Config{})
	require.NoError(t, err)
	require.Len(t, r.Units, 1)
}

func TestReplicatorApplyProducesOnePacketPerUnit(t *testing.T) {
	cfg := &config.Config{
		Units: []config.UnitConfig{
			{SrcIP: "addConstant(1)"},
			{SrcIP: "addConstant(2)"},
		},
	}
	r, err := Compile(cfg)
	require.NoError(t, err)

	raw := make([]byte, 14+20)
	copy(raw[12:14], []byte{0x08, 0x00})
	raw[14] = 0x45
	copy(raw[26:30], []byte{10, 0, 0, 0}) // srcip
	c, ok := ingest.Classify(raw, 0)
	require.True(t, ok)

	out := r.Apply(&c, 0)
	require.Len(t, out, 2)
	assert.EqualValues(t, 1, out[0][26+3])
	assert.EqualValues(t, 2, out[1][26+3])
}
