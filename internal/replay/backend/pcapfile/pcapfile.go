// Package pcapfile is the "pcapFile" output backend: every queue writes
// its own "<base>.<id>" pcap file, grounded on ftmeter.PcapSink's
// pcapgo.Writer usage (itself grounded on bridge/capture.go) and §8
// scenario 6 ("pcapFile:file=/tmp/x.pcap,queueCount=2" writes
// /tmp/x.pcap.0 and /tmp/x.pcap.1).
package pcapfile

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/CESNET/ft-generator/internal/replay/backend"
)

// Backend writes each queue to its own numbered pcap file.
type Backend struct {
	base       string
	queueCount int
	mtu        int
}

// Options configures a pcapFile backend, parsed from the "-o" plugin
// argument string (§6).
type Options struct {
	File       string
	QueueCount int
	MTU        int
}

// New records the backend's options; no file is created here. Each queue's
// output file is created by GetQueue.
func New(opts Options) (*Backend, error) {
	if opts.QueueCount < 1 {
		opts.QueueCount = 1
	}
	if opts.MTU == 0 {
		opts.MTU = 65535
	}
	return &Backend{base: opts.File, queueCount: opts.QueueCount, mtu: opts.MTU}, nil
}

func (b *Backend) QueueCount() int { return b.queueCount }
func (b *Backend) MTU() int        { return b.mtu }
func (b *Backend) NumaNode() int   { return -1 }

func (b *Backend) ConfigureOffloads(requested []backend.OffloadRequest) ([]backend.OffloadRequest, error) {
	// A plain file has no hardware to offload to; nothing is granted.
	return nil, nil
}

func (b *Backend) GetQueue(id int) (backend.Queue, error) {
	if id < 0 || id >= b.queueCount {
		return nil, fmt.Errorf("pcapfile: queue %d out of range [0,%d)", id, b.queueCount)
	}
	fname := fmt.Sprintf("%s.%d", b.base, id)
	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("pcapfile: create %s: %w", fname, err)
	}
	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(uint32(b.mtu), layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapfile: write header: %w", err)
	}
	return &queue{f: f, w: w}, nil
}

func (b *Backend) Close() error { return nil }

type queue struct {
	mu sync.Mutex
	f  *os.File
	w  *pcapgo.Writer

	stats backend.QueueStats
}

func (q *queue) MaxBurstSize() int { return 1024 }

func (q *queue) AcquireBurst(n int) (*backend.Burst, error) {
	bufs := make([][]byte, n)
	for i := range bufs {
		bufs[i] = make([]byte, 65535)
	}
	return backend.NewBurst(bufs, q.commit), nil
}

func (q *queue) commit(bufs [][]byte, lens []int) (backend.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := uint64(time.Now().UnixNano())
	if q.stats.StartTs == 0 {
		q.stats.StartTs = now
	}
	for i, buf := range bufs {
		n := lens[i]
		if n == 0 {
			continue
		}
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: n, Length: n}
		if err := q.w.WritePacket(ci, buf[:n]); err != nil {
			q.stats.FailedPkts++
			continue
		}
		q.stats.TxPkts++
		q.stats.TxBytes += uint64(n)
	}
	q.stats.EndTs = now
	return q.stats, nil
}

func (q *queue) Flush() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.f.Sync()
}

func (q *queue) Stats() backend.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}
