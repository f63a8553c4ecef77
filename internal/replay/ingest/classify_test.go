package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildEthIPv4UDP(src, dst [4]byte, payload int) []byte {
	buf := make([]byte, ethHeaderLen+20+8+payload)
	copy(buf[0:6], []byte{0xAA, 0, 0, 0, 0, 1})
	copy(buf[6:12], []byte{0xAA, 0, 0, 0, 0, 2})
	buf[12], buf[13] = 0x08, 0x00 // IPv4

	ip := buf[ethHeaderLen:]
	ip[0] = 0x45
	ip[9] = protoUDP
	copy(ip[12:16], src[:])
	copy(ip[16:20], dst[:])
	return buf
}

func TestClassifyIPv4UDP(t *testing.T) {
	raw := buildEthIPv4UDP([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 4)

	c, ok := Classify(raw, 1000)
	require.True(t, ok)
	assert.Equal(t, L3IPv4, c.L3)
	assert.Equal(t, ethHeaderLen, c.L3Offset)
	assert.Equal(t, L4UDP, c.L4)
	assert.Equal(t, ethHeaderLen+20, c.L4Offset)
}

func TestClassifyHashIsDirectionInvariant(t *testing.T) {
	fwd := buildEthIPv4UDP([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 0)
	rev := buildEthIPv4UDP([4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, 0)

	cf, ok := Classify(fwd, 0)
	require.True(t, ok)
	cr, ok := Classify(rev, 0)
	require.True(t, ok)

	assert.Equal(t, cf.Hash, cr.Hash)
}

func TestClassifyRejectsNonIPEthertype(t *testing.T) {
	raw := make([]byte, ethHeaderLen+8)
	raw[12], raw[13] = 0x08, 0x06 // ARP

	_, ok := Classify(raw, 0)
	assert.False(t, ok)
}

func TestClassifyWalksVlanTag(t *testing.T) {
	inner := buildEthIPv4UDP([4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 0)
	raw := make([]byte, 0, len(inner)+4)
	raw = append(raw, inner[:12]...)
	raw = append(raw, 0x81, 0x00, 0x00, 0x01) // VLAN tag: TPID 0x8100, TCI with VLAN ID 1
	raw = append(raw, inner[12:]...)          // inner EtherType (IPv4) and the IPv4/UDP packet

	c, ok := Classify(raw, 0)
	require.True(t, ok)
	assert.Equal(t, L3IPv4, c.L3)
	assert.Equal(t, ethHeaderLen+4, c.L3Offset)
}

func TestPartitionerAssignsByHashModN(t *testing.T) {
	p := NewPartitioner(4)
	raw := buildEthIPv4UDP([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 0)
	c, ok := Classify(raw, 0)
	require.True(t, ok)

	idx := p.Assign(c)
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 4)

	pkts, bytes := p.Share(idx)
	assert.EqualValues(t, 1, pkts)
	assert.EqualValues(t, c.Len, bytes)
}

func TestPartialChecksumIsSymmetric(t *testing.T) {
	a := []byte{10, 0, 0, 1}
	b := []byte{10, 0, 0, 2}
	assert.Equal(t, PartialChecksum(a, b), PartialChecksum(b, a))
	assert.NotEqual(t, uint32(0), PartialChecksum(a, b))
}
