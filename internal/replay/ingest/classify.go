// Package ingest classifies raw captured packets and partitions them
// across replay worker queues, grounded on
// original_source/tools/ft-replay/src/ (PacketQueueProvider, Hash*)
// classification/partitioning pass. It walks only as far as the L4
// header's start, which is all the replicator and rate limiter need.
package ingest

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// L3Type is the network-layer protocol found after the Ethernet/VLAN/MPLS
// walk. Anything other than IPv4/IPv6 makes a packet unclassifiable.
type L3Type int

const (
	L3Unknown L3Type = iota
	L3IPv4
	L3IPv6
)

// L4Type is the transport-layer protocol found inside the L3 payload.
type L4Type int

const (
	L4NotFound L4Type = iota
	L4TCP
	L4UDP
	L4ICMPv6
	L4Other
)

const (
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
	etherTypeMPLS = 0x8847
	etherTypeMPLSM = 0x8848

	protoICMPv6 = 58
	protoTCP    = 6
	protoUDP    = 17

	ethHeaderLen = 14
)

// Classified is one packet's classification result: everything the
// replicator and rate limiter need without re-parsing the buffer.
type Classified struct {
	Bytes       []byte
	Len         int
	TimestampNs uint64

	L3       L3Type
	L3Offset int
	L4       L4Type
	L4Offset int

	// IPChecksumPartial is the one's-complement sum of the src/dst IP
	// address bytes, handed to hardware checksum offload alongside the
	// replicator's rewritten addresses (§4.9).
	IPChecksumPartial uint32

	// OutInterface is which of the replay's two logical directions (0/1)
	// this packet belongs to, set by the caller after partitioning.
	OutInterface int

	// Hash is the direction-invariant 32-bit partition key.
	Hash uint32
}

// Classify walks Ethernet, then any VLAN tags and MPLS labels, to find the
// L3 header, then walks the L3 header to find L4. It returns ok=false if
// the packet is too short or L3 is neither IPv4 nor IPv6 (§4.9 "packets
// whose L3 is neither IPv4 nor IPv6 are dropped by the ingestor").
func Classify(raw []byte, tsNs uint64) (Classified, bool) {
	c := Classified{Bytes: raw, Len: len(raw), TimestampNs: tsNs}

	if len(raw) < ethHeaderLen {
		return c, false
	}

	offset := 12 // skip dst/src MAC
	ethType := binary.BigEndian.Uint16(raw[offset : offset+2])
	offset += 2

	for {
		switch ethType {
		case etherTypeVLAN, etherTypeQinQ:
			if len(raw) < offset+4 {
				return c, false
			}
			ethType = binary.BigEndian.Uint16(raw[offset+2 : offset+4])
			offset += 4
			continue
		case etherTypeMPLS, etherTypeMPLSM:
			for {
				if len(raw) < offset+4 {
					return c, false
				}
				label := binary.BigEndian.Uint32(raw[offset : offset+4])
				offset += 4
				bottomOfStack := label&0x100 != 0
				if bottomOfStack {
					break
				}
			}
			// MPLS doesn't carry its own ethertype for the payload; per
			// §4.9 the first nibble of the next byte disambiguates
			// IPv4 (4) from IPv6 (6).
			if len(raw) <= offset {
				return c, false
			}
			switch raw[offset] >> 4 {
			case 4:
				ethType = etherTypeIPv4
			case 6:
				ethType = etherTypeIPv6
			default:
				return c, false
			}
		}
		break
	}

	c.L3Offset = offset

	switch ethType {
	case etherTypeIPv4:
		c.L3 = L3IPv4
		classifyIPv4(raw, &c)
	case etherTypeIPv6:
		c.L3 = L3IPv6
		classifyIPv6(raw, &c)
	default:
		return c, false
	}

	c.Hash = directionInvariantHash(raw, c)
	return c, true
}

func classifyIPv4(raw []byte, c *Classified) {
	off := c.L3Offset
	if len(raw) < off+20 {
		return
	}
	ihl := int(raw[off]&0x0F) * 4
	if ihl < 20 || len(raw) < off+ihl {
		return
	}
	proto := raw[off+9]
	c.IPChecksumPartial = partialChecksum(raw[off+12:off+16], raw[off+16:off+20])
	classifyL4(raw, c, off+ihl, proto)
}

func classifyIPv6(raw []byte, c *Classified) {
	off := c.L3Offset
	const ipv6HeaderLen = 40
	if len(raw) < off+ipv6HeaderLen {
		return
	}
	nextHeader := raw[off+6]
	c.IPChecksumPartial = partialChecksum(raw[off+8:off+24], raw[off+24:off+40])
	classifyL4(raw, c, off+ipv6HeaderLen, nextHeader)
}

func classifyL4(raw []byte, c *Classified, l4Offset int, proto byte) {
	if len(raw) <= l4Offset {
		c.L4 = L4NotFound
		return
	}
	switch proto {
	case protoTCP:
		c.L4, c.L4Offset = L4TCP, l4Offset
	case protoUDP:
		c.L4, c.L4Offset = L4UDP, l4Offset
	case protoICMPv6:
		c.L4, c.L4Offset = L4ICMPv6, l4Offset
	default:
		c.L4, c.L4Offset = L4Other, l4Offset
	}
}

// partialChecksum is the one's-complement sum of a and b's bytes taken as
// big-endian 16-bit words, folded to 16 bits, used for the offload hint in
// Classified (§4.9).
func partialChecksum(a, b []byte) uint32 {
	var sum uint32
	sum += sumWords(a)
	sum += sumWords(b)
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return sum
}

// PartialChecksum exposes partialChecksum outside this package.
func PartialChecksum(a, b []byte) uint32 { return partialChecksum(a, b) }

func sumWords(b []byte) uint32 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	return sum
}

// directionInvariantHash computes H(srcIP) XOR H(dstIP), which is
// symmetric under swapping src/dst, so both directions of a biflow hash
// identically and land in the same output queue (§4.9).
func directionInvariantHash(raw []byte, c Classified) uint32 {
	off := c.L3Offset
	switch c.L3 {
	case L3IPv4:
		if len(raw) < off+20 {
			return 0
		}
		return uint32(xxhash.Sum64(raw[off+12:off+16])) ^ uint32(xxhash.Sum64(raw[off+16:off+20]))
	case L3IPv6:
		if len(raw) < off+40 {
			return 0
		}
		return uint32(xxhash.Sum64(raw[off+8:off+24])) ^ uint32(xxhash.Sum64(raw[off+24:off+40]))
	default:
		return 0
	}
}
