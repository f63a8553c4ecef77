// Package calendar holds the min-heap of live flows keyed by next-packet
// timestamp that drives the generator's emission order (§4.7, §3
// "Calendar"), grounded on container/heap the way
// katalvlaran-lvlath/dijkstra uses it for its own priority queue.
package calendar

import "container/heap"

// Flow is the minimal view the calendar needs of a live flow: its next
// unemitted packet's timestamp. internal/generator supplies the concrete
// type.
type Flow interface {
	NextTimestamp() (uint64, bool)
}

type entry struct {
	flow Flow
	ts   uint64
}

type entryHeap []entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].ts < h[j].ts }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Calendar is a min-heap of flows ordered by their next packet's
// timestamp. Invariant: the top's timestamp is ≤ every other entry's;
// non-empty implies at least one flow has a pending packet.
type Calendar struct {
	h entryHeap
}

// New returns an empty Calendar.
func New() *Calendar {
	c := &Calendar{}
	heap.Init(&c.h)
	return c
}

// Len reports how many flows are currently scheduled.
func (c *Calendar) Len() int { return c.h.Len() }

// Push admits a flow, keyed by its next packet's timestamp. The flow
// must have at least one pending packet.
func (c *Calendar) Push(f Flow) {
	ts, ok := f.NextTimestamp()
	if !ok {
		panic("calendar: Push: flow has no pending packet")
	}
	heap.Push(&c.h, entry{flow: f, ts: ts})
}

// PeekTimestamp returns the top entry's timestamp, or false if empty.
func (c *Calendar) PeekTimestamp() (uint64, bool) {
	if c.h.Len() == 0 {
		return 0, false
	}
	return c.h[0].ts, true
}

// Pop removes and returns the flow with the earliest next packet.
func (c *Calendar) Pop() Flow {
	e := heap.Pop(&c.h).(entry)
	return e.flow
}
