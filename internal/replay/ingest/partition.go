package ingest

import "sync/atomic"

// Partitioner assigns classified packets to one of N output queues by
// hash mod N (§4.9) and tracks each queue's packet/byte share for
// diagnostics, mirroring PacketQueueProvider's per-queue counters.
type Partitioner struct {
	queues []queueShare
}

type queueShare struct {
	packets uint64
	bytes   uint64
}

// NewPartitioner builds a Partitioner for n output queues. n must be at
// least 1.
func NewPartitioner(n int) *Partitioner {
	if n < 1 {
		n = 1
	}
	return &Partitioner{queues: make([]queueShare, n)}
}

// Assign returns the output queue index for a classified packet and
// records it in that queue's running share.
func (p *Partitioner) Assign(c Classified) int {
	idx := int(c.Hash % uint32(len(p.queues)))
	atomic.AddUint64(&p.queues[idx].packets, 1)
	atomic.AddUint64(&p.queues[idx].bytes, uint64(c.Len))
	return idx
}

// QueueCount returns the number of output queues this partitioner spreads
// packets across.
func (p *Partitioner) QueueCount() int { return len(p.queues) }

// Share returns the packet and byte counts assigned to queue id so far.
func (p *Partitioner) Share(id int) (packets, bytes uint64) {
	q := &p.queues[id]
	return atomic.LoadUint64(&q.packets), atomic.LoadUint64(&q.bytes)
}
