package ftmeter

import (
	"bytes"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CESNET/ft-generator/internal/flow"
)

func TestRecordObserveSplitsByDirection(t *testing.T) {
	r := &Record{}
	r.Observe(flow.Forward, 100, 60)
	r.Observe(flow.Forward, 200, 40)
	r.Observe(flow.Reverse, 150, 80)

	assert.EqualValues(t, 2, r.Packets)
	assert.EqualValues(t, 100, r.Bytes)
	assert.EqualValues(t, 100, r.StartTime)
	assert.EqualValues(t, 200, r.EndTime)

	assert.EqualValues(t, 1, r.PacketsRev)
	assert.EqualValues(t, 80, r.BytesRev)
	assert.EqualValues(t, 150, r.StartTimeRev)
	assert.EqualValues(t, 150, r.EndTimeRev)
}

func TestWriteReportHeaderAndRow(t *testing.T) {
	m := New(nil)
	r := &Record{SrcIP: net.ParseIP("1.2.3.4"), DstIP: net.ParseIP("5.6.7.8"), SrcPort: 1234, DstPort: 80}
	r.Observe(flow.Forward, 10, 64)
	m.Open(1, r)

	var buf bytes.Buffer
	require.NoError(t, m.WriteReport(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "SRC_IP,DST_IP,START_TIME,END_TIME,START_TIME_REV,END_TIME_REV,L3_PROTO,L4_PROTO,SRC_PORT,DST_PORT,PACKETS,BYTES,PACKETS_REV,BYTES_REV", lines[0])
	assert.Contains(t, lines[1], "1.2.3.4,5.6.7.8")
}
