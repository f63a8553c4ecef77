// Package ftmeter accounts for what was actually emitted per flow and
// writes the final CSV report (§4.8), grounded on minicli/output.go's use
// of encoding/csv for the teacher's own tabular output.
package ftmeter

import (
	"encoding/csv"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftlog"
)

// Record is one flow's open-per-flow accounting entry: target counts,
// directional L2/L3/port identity, and what was actually observed.
type Record struct {
	SrcIP, DstIP     net.IP
	SrcMAC, DstMAC   net.HardwareAddr
	SrcPort, DstPort uint16
	L3               flow.L3Proto
	L4               flow.L4Proto

	TargetFwdPackets, TargetRevPackets uint64
	TargetFwdBytes, TargetRevBytes     uint64

	StartTime, EndTime       uint64
	StartTimeRev, EndTimeRev uint64

	Packets, PacketsRev uint64
	Bytes, BytesRev     uint64
}

// Observe updates a record from one emitted packet.
func (r *Record) Observe(dir flow.Direction, ts uint64, size uint64) {
	if dir == flow.Reverse {
		r.PacketsRev++
		r.BytesRev += size
		if r.StartTimeRev == 0 || ts < r.StartTimeRev {
			r.StartTimeRev = ts
		}
		if ts > r.EndTimeRev {
			r.EndTimeRev = ts
		}
		return
	}
	r.Packets++
	r.Bytes += size
	if r.StartTime == 0 || ts < r.StartTime {
		r.StartTime = ts
	}
	if ts > r.EndTime {
		r.EndTime = ts
	}
}

// Meter accumulates every flow's Record; WriteReport writes the CSV report
// and LogSummary logs the aggregate delta-versus-target line.
type Meter struct {
	log     *ftlog.Logger
	records []*Record
	byID    map[uint64]*Record
}

func New(log *ftlog.Logger) *Meter {
	return &Meter{log: log, byID: make(map[uint64]*Record)}
}

// Open registers a new flow's Record, keyed by flow ID, for later lookup
// via RecordFor as the generator loop emits that flow's packets.
func (m *Meter) Open(flowID uint64, r *Record) {
	m.records = append(m.records, r)
	m.byID[flowID] = r
}

// RecordFor returns the Record registered under flowID, or nil.
func (m *Meter) RecordFor(flowID uint64) *Record {
	return m.byID[flowID]
}

var csvHeader = []string{
	"SRC_IP", "DST_IP", "START_TIME", "END_TIME", "START_TIME_REV", "END_TIME_REV",
	"L3_PROTO", "L4_PROTO", "SRC_PORT", "DST_PORT", "PACKETS", "BYTES", "PACKETS_REV", "BYTES_REV",
}

// WriteReport writes the CSV report with one row per flow, in the column
// order fixed by §4.8.
func (m *Meter) WriteReport(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("ftmeter: write header: %w", err)
	}
	for _, r := range m.records {
		row := []string{
			r.SrcIP.String(), r.DstIP.String(),
			strconv.FormatUint(r.StartTime, 10), strconv.FormatUint(r.EndTime, 10),
			strconv.FormatUint(r.StartTimeRev, 10), strconv.FormatUint(r.EndTimeRev, 10),
			strconv.Itoa(int(r.L3)), strconv.Itoa(int(r.L4)),
			strconv.Itoa(int(r.SrcPort)), strconv.Itoa(int(r.DstPort)),
			strconv.FormatUint(r.Packets, 10), strconv.FormatUint(r.Bytes, 10),
			strconv.FormatUint(r.PacketsRev, 10), strconv.FormatUint(r.BytesRev, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("ftmeter: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// LogSummary logs the aggregate packet/byte delta versus target across
// every flow, at info level.
func (m *Meter) LogSummary() {
	var targetPkts, targetBytes, actualPkts, actualBytes uint64
	for _, r := range m.records {
		targetPkts += r.TargetFwdPackets + r.TargetRevPackets
		targetBytes += r.TargetFwdBytes + r.TargetRevBytes
		actualPkts += r.Packets + r.PacketsRev
		actualBytes += r.Bytes + r.BytesRev
	}
	m.log.With(ftlog.Fields{
		"flows":        len(m.records),
		"target_pkts":  targetPkts,
		"actual_pkts":  actualPkts,
		"delta_pkts":   int64(actualPkts) - int64(targetPkts),
		"target_bytes": targetBytes,
		"actual_bytes": actualBytes,
		"delta_bytes":  int64(actualBytes) - int64(targetBytes),
	}).Info("traffic summary")
}

// SortByStartTime orders records by first-forward-packet time, useful
// for deterministic report output.
func (m *Meter) SortByStartTime() {
	sort.Slice(m.records, func(i, j int) bool {
		return m.records[i].StartTime < m.records[j].StartTime
	})
}
