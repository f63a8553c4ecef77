package genconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfilesPermutedHeaderAndComments(t *testing.T) {
	csv := strings.Join([]string{
		"# a comment line",
		"DST_PORT,SRC_PORT,PACKETS_REV,BYTES_REV,END_TIME,START_TIME,L3_PROTO,L4_PROTO,PACKETS,BYTES",
		"",
		"80,1234,100,10000,5000000000,0,4,6,100,10000",
	}, "\n")

	rows, err := LoadProfiles(strings.NewReader(csv), false)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.EqualValues(t, 0, r.StartTime)
	assert.EqualValues(t, 5000000000, r.EndTime)
	assert.EqualValues(t, 100, r.Packets)
	assert.EqualValues(t, 10000, r.Bytes)
	assert.EqualValues(t, 100, r.PacketsRev)
	assert.EqualValues(t, 10000, r.BytesRev)
	assert.EqualValues(t, 1234, r.SrcPort)
	assert.EqualValues(t, 80, r.DstPort)
}

func TestLoadProfilesSkipUnknown(t *testing.T) {
	csv := strings.Join([]string{
		"START_TIME,END_TIME,L3_PROTO,L4_PROTO,SRC_PORT,DST_PORT,PACKETS,BYTES,PACKETS_REV,BYTES_REV",
		"0,1,4,6,1,2,1,1,1,1",
		"0,1,4,99,1,2,1,1,1,1",
	}, "\n")

	rows, err := LoadProfiles(strings.NewReader(csv), true)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = LoadProfiles(strings.NewReader(csv), false)
	assert.Error(t, err)
}
