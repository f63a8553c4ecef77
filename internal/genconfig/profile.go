package genconfig

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CESNET/ft-generator/internal/flow"
)

// ProfileRow is one parsed row of the profiles CSV (§6): the declared
// biflow shape the generator is asked to synthesize.
type ProfileRow struct {
	StartTime, EndTime                     uint64
	L3Proto                                flow.L3Proto
	L4Proto                                flow.L4Proto
	SrcPort, DstPort                       uint16
	Packets, Bytes, PacketsRev, BytesRev   uint64
	SrcIP, DstIP                           string // optional; empty means "generate"
}

// errUnknownProto marks a row whose L3_PROTO or L4_PROTO is not recognized.
var errUnknownProto = errors.New("unknown protocol")

var requiredColumns = []string{
	"START_TIME", "END_TIME", "L3_PROTO", "L4_PROTO",
	"SRC_PORT", "DST_PORT", "PACKETS", "BYTES", "PACKETS_REV", "BYTES_REV",
}

// LoadProfiles reads the profiles CSV (§6: any permutation of the required
// header, optional SRC_IP/DST_IP, '#'-comment and blank lines ignored). If
// skipUnknown is set, rows naming an unrecognized l3Proto/l4Proto are
// dropped instead of failing the whole load (the --skip-unknown
// supplemented flag).
func LoadProfiles(r io.Reader, skipUnknown bool) ([]ProfileRow, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	header, err := readNonBlankRecord(cr)
	if err != nil {
		return nil, fmt.Errorf("genconfig: read profile header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, want := range requiredColumns {
		if _, ok := colIndex[want]; !ok {
			return nil, fmt.Errorf("genconfig: profile header missing column %s", want)
		}
	}

	var rows []ProfileRow
	for lineNo := 2; ; lineNo++ {
		rec, err := readNonBlankRecord(cr)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("genconfig: profile line %d: %w", lineNo, err)
		}

		row, ok, err := parseProfileRow(rec, colIndex)
		if err != nil {
			if skipUnknown && errors.Is(err, errUnknownProto) {
				continue
			}
			return nil, fmt.Errorf("genconfig: profile line %d: %w", lineNo, err)
		}
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readNonBlankRecord returns the next record, skipping records that are
// entirely empty (a blank CSV line parses as a one-field empty record).
func readNonBlankRecord(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		return rec, nil
	}
}

func parseProfileRow(rec []string, col map[string]int) (ProfileRow, bool, error) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var row ProfileRow
	var err error

	if row.StartTime, err = strconv.ParseUint(field("START_TIME"), 10, 64); err != nil {
		return row, false, fmt.Errorf("START_TIME: %w", err)
	}
	if row.EndTime, err = strconv.ParseUint(field("END_TIME"), 10, 64); err != nil {
		return row, false, fmt.Errorf("END_TIME: %w", err)
	}

	l3, ok := parseL3(field("L3_PROTO"))
	if !ok {
		return row, false, fmt.Errorf("L3_PROTO %q: %w", field("L3_PROTO"), errUnknownProto)
	}
	row.L3Proto = l3

	l4, ok := parseL4(field("L4_PROTO"))
	if !ok {
		return row, false, fmt.Errorf("L4_PROTO %q: %w", field("L4_PROTO"), errUnknownProto)
	}
	row.L4Proto = l4

	srcPort, err := strconv.ParseUint(field("SRC_PORT"), 10, 16)
	if err != nil {
		return row, false, fmt.Errorf("SRC_PORT: %w", err)
	}
	row.SrcPort = uint16(srcPort)

	dstPort, err := strconv.ParseUint(field("DST_PORT"), 10, 16)
	if err != nil {
		return row, false, fmt.Errorf("DST_PORT: %w", err)
	}
	row.DstPort = uint16(dstPort)

	if row.Packets, err = strconv.ParseUint(field("PACKETS"), 10, 64); err != nil {
		return row, false, fmt.Errorf("PACKETS: %w", err)
	}
	if row.Bytes, err = strconv.ParseUint(field("BYTES"), 10, 64); err != nil {
		return row, false, fmt.Errorf("BYTES: %w", err)
	}
	if row.PacketsRev, err = strconv.ParseUint(field("PACKETS_REV"), 10, 64); err != nil {
		return row, false, fmt.Errorf("PACKETS_REV: %w", err)
	}
	if row.BytesRev, err = strconv.ParseUint(field("BYTES_REV"), 10, 64); err != nil {
		return row, false, fmt.Errorf("BYTES_REV: %w", err)
	}

	if i, ok := col["SRC_IP"]; ok && i < len(rec) {
		row.SrcIP = strings.TrimSpace(rec[i])
	}
	if i, ok := col["DST_IP"]; ok && i < len(rec) {
		row.DstIP = strings.TrimSpace(rec[i])
	}

	return row, true, nil
}

func parseL3(s string) (flow.L3Proto, bool) {
	switch strings.ToUpper(s) {
	case "IPV4", "4":
		return flow.L3IPv4, true
	case "IPV6", "6":
		return flow.L3IPv6, true
	default:
		return 0, false
	}
}

func parseL4(s string) (flow.L4Proto, bool) {
	switch strings.ToUpper(s) {
	case "TCP", "6":
		return flow.L4TCP, true
	case "UDP", "17":
		return flow.L4UDP, true
	case "ICMP", "1":
		return flow.L4ICMP, true
	case "ICMPV6", "58":
		return flow.L4ICMPv6, true
	default:
		return 0, false
	}
}
