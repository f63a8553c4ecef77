package sizeplan

// Interval is one bucket of the packet-size probability table: values
// drawn from [Lo, Hi] with the given share of the overall packet count.
type Interval struct {
	Lo, Hi      uint64
	Probability float64
}

// DefaultIntervals is the hard-coded size distribution from §4.2: roughly
// 28% small packets, 61% near-MTU ("jumbo" relative to the small bucket),
// and the remainder filling the middle. Per spec §9 open question (a), this
// table is not user-tunable and its constants are preserved verbatim from
// the original.
var DefaultIntervals = []Interval{
	{Lo: 64, Hi: 127, Probability: 0.28},
	{Lo: 128, Hi: 1517, Probability: 0.11},
	{Lo: 1518, Hi: 1518, Probability: 0.61},
}

// MinPacketSize and MaxPacketSize bound any packet size this solver will
// ever produce absent a caller-supplied interval table.
const (
	MinPacketSize = 64
	MaxPacketSize = 1518
)
