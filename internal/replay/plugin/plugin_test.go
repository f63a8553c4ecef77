package plugin

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSplitsNameAndArgs(t *testing.T) {
	name, a, err := Parse("xdp:ifc=eth0,queueCount=4,packetSize=2048")
	require.NoError(t, err)
	assert.Equal(t, "xdp", name)
	assert.Equal(t, "eth0", a.str("ifc"))

	qc, err := a.int("queueCount", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, qc)

	ps, err := a.int("packetSize", 0)
	require.NoError(t, err)
	assert.Equal(t, 2048, ps)
}

func TestParseRejectsMissingSeparator(t *testing.T) {
	_, _, err := Parse("xdp")
	assert.Error(t, err)
}

func TestOpenPcapFileWritesNumberedFiles(t *testing.T) {
	dir := t.TempDir()
	base := dir + "/x.pcap"

	be, err := Open("pcapFile:file=" + base + ",queueCount=2")
	require.NoError(t, err)
	defer be.Close()

	assert.Equal(t, 2, be.QueueCount())

	for i := 0; i < 2; i++ {
		_, err := be.GetQueue(i)
		require.NoError(t, err)
		assert.FileExists(t, base+"."+strconv.Itoa(i))
	}
}
