package generator

import (
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/google/gopacket"

	"github.com/CESNET/ft-generator/internal/calendar"
	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/flowmaker"
	"github.com/CESNET/ft-generator/internal/ftlog"
	"github.com/CESNET/ft-generator/internal/ftmeter"
	"github.com/CESNET/ft-generator/internal/ftpkt"
	"github.com/CESNET/ft-generator/internal/genconfig"
)

// Generator drives the §4.7 calendar loop: at each step it either admits
// the next due profile row (once the flow maker has finished planning it)
// or pops the calendar's earliest-next-packet flow and emits one packet,
// whichever timestamp is smaller.
type Generator struct {
	log  *ftlog.Logger
	rows []genconfig.ProfileRow
	fm   *flowmaker.FlowMaker
	cal  *calendar.Calendar
	meter *ftmeter.Meter
	sink  *ftmeter.PcapSink

	queueDepth int
	submitted  int // rows handed to the flow maker so far
	consumed   int // futures popped from the flow maker so far

	// fm2err carries a Submit-time fatal error (collision exhaustion, §4.6)
	// from fillPipeline across to the next admitNextFlow call, since
	// fillPipeline's every-Run-iteration call site would otherwise need to
	// propagate an error out of a loop that's mostly just topping up a
	// queue.
	fm2err error
}

// New sorts rows by start time (required for the flow maker's
// submission-order futures to line up with calendar admission order) and
// wires the flow maker, calendar, and meter together.
func New(log *ftlog.Logger, rows []genconfig.ProfileRow, fm *flowmaker.FlowMaker, meter *ftmeter.Meter, sink *ftmeter.PcapSink, queueDepth int) *Generator {
	sorted := append([]genconfig.ProfileRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })
	if queueDepth <= 0 {
		queueDepth = flowmaker.DefaultQueueDepth
	}
	return &Generator{log: log, rows: sorted, fm: fm, cal: calendar.New(), meter: meter, sink: sink, queueDepth: queueDepth}
}

// Run executes the main loop to exhaustion and returns the total packets
// emitted.
func (g *Generator) Run() (uint64, error) {
	var emitted uint64

	for {
		g.fillPipeline()

		calTs, calOK := g.cal.PeekTimestamp()
		haveOutstandingFuture := g.consumed < g.submitted

		if !calOK && !haveOutstandingFuture {
			break
		}

		admitNext := haveOutstandingFuture && (!calOK || g.rows[g.consumed].StartTime <= calTs)
		if admitNext {
			if err := g.admitNextFlow(); err != nil {
				return emitted, err
			}
			continue
		}

		n, err := g.emitOne()
		if err != nil {
			return emitted, err
		}
		emitted += n
	}

	if g.meter != nil {
		g.meter.LogSummary()
	}
	return emitted, nil
}

// fillPipeline keeps up to queueDepth profile rows in flight with the flow
// maker, matching §4.5's fixed-size outstanding-futures pool.
func (g *Generator) fillPipeline() {
	for g.submitted < len(g.rows) && g.submitted-g.consumed < g.queueDepth {
		row := g.rows[g.submitted]
		flowID := uint64(g.submitted)
		if err := g.fm.Submit(row, flowID); err != nil {
			// A collision-exhaustion error is fatal per §4.6; surface it
			// to Run via a buffered result instead of losing it here.
			g.fm2err = err
			g.submitted++
			continue
		}
		g.submitted++
	}
}

func (g *Generator) admitNextFlow() error {
	if g.fm2err != nil {
		err := g.fm2err
		g.fm2err = nil
		return err
	}

	f, err, ok := g.fm.Next()
	g.consumed++
	if !ok {
		return fmt.Errorf("generator: flow maker closed unexpectedly")
	}
	if err != nil {
		return err
	}

	if g.meter != nil {
		g.meter.Open(f.ID, recordFromFlow(f))
	}

	state := newFlowState(f)
	if _, ok := state.NextTimestamp(); ok {
		g.cal.Push(state)
	}
	return nil
}

// emitOne pops the calendar's earliest flow, builds and serializes its
// next packet, records it, and re-pushes the flow if packets remain.
func (g *Generator) emitOne() (uint64, error) {
	top := g.cal.Pop().(*flowState)
	pkt := top.Advance()

	data, err := ftpkt.Serialize(top.f, pkt)
	if err != nil {
		return 0, fmt.Errorf("generator: serialize flow %d: %w", top.f.ID, err)
	}

	if g.sink != nil {
		ci := gopacket.CaptureInfo{
			Timestamp:     nsToTime(pkt.Timestamp),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := g.sink.WritePacket(ci, data); err != nil {
			return 0, err
		}
	}

	if g.meter != nil {
		if rec := g.meter.RecordFor(top.f.ID); rec != nil {
			rec.Observe(pkt.Direction, pkt.Timestamp, uint64(len(data)))
		}
	}

	if !top.Done() {
		g.cal.Push(top)
	}
	return 1, nil
}

func recordFromFlow(f *flow.Flow) *ftmeter.Record {
	return &ftmeter.Record{
		SrcIP: net.IP(cloneBytes(f.SrcIP)), DstIP: net.IP(cloneBytes(f.DstIP)),
		SrcMAC: net.HardwareAddr(f.SrcMAC), DstMAC: net.HardwareAddr(f.DstMAC),
		SrcPort: f.SrcPort, DstPort: f.DstPort,
		L3: f.L3, L4: f.L4,
		TargetFwdPackets: f.FwdPackets, TargetRevPackets: f.RevPackets,
		TargetFwdBytes: f.FwdBytes, TargetRevBytes: f.RevBytes,
	}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func nsToTime(ns uint64) time.Time {
	return time.Unix(0, int64(ns)).UTC()
}
