// Package afpacket is the "packet" output backend: a PF_PACKET v2 TX
// ring bound to an interface, grounded on github.com/google/gopacket's
// afpacket subpackage (the teacher's own internal/bridge already pulls
// in google/gopacket for capture; afpacket is gopacket's own TPacket TX
// ring wrapper around the same mmap'd ring this spec's §4.12 describes).
package afpacket

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/gopacket/afpacket"

	"github.com/CESNET/ft-generator/internal/replay/backend"
	"github.com/CESNET/ft-generator/internal/replay/backend/linkinfo"
)

// Options configures an afpacket backend, parsed from the "-o" plugin
// argument string (§6: "ifc", "queueCount", "burstSize", "blockSize",
// "packetSize", "frameCount", "qdiskBypass", "packetLoss").
type Options struct {
	Interface         string
	QueueCount        int
	BurstSize         int
	BlockSize         int
	PacketSize        int
	FrameCount        int
	QdiscBypass       bool
	TolerateFrameLoss bool
}

// Backend opens one TPacket TX ring per queue, all bound to the same
// interface (§4.12: "bind by ifindex").
type Backend struct {
	opts     Options
	mtu      int
	numaNode int
}

// New validates the interface exists and resolves its NUMA node (§9's
// affinity hint); the TPacket handles themselves are opened lazily per
// queue in GetQueue, since each needs its own ring.
func New(opts Options) (*Backend, error) {
	if opts.QueueCount < 1 {
		opts.QueueCount = 1
	}
	if opts.BurstSize < 1 {
		opts.BurstSize = 64
	}
	if opts.BlockSize < 1 {
		opts.BlockSize = 1 << 20
	}
	if opts.PacketSize < 1 {
		opts.PacketSize = 2048
	}
	if opts.FrameCount < 1 {
		opts.FrameCount = 512
	}
	info, err := linkinfo.Query(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("afpacket: lookup interface %s: %w", opts.Interface, err)
	}
	return &Backend{opts: opts, mtu: opts.PacketSize, numaNode: info.NumaNode}, nil
}

func (b *Backend) QueueCount() int { return b.opts.QueueCount }
func (b *Backend) MTU() int        { return b.mtu }
func (b *Backend) NumaNode() int   { return b.numaNode }

func (b *Backend) ConfigureOffloads(requested []backend.OffloadRequest) ([]backend.OffloadRequest, error) {
	// TPacket TX doesn't expose an offload-negotiation knob through
	// gopacket/afpacket; nothing is granted.
	return nil, nil
}

func (b *Backend) GetQueue(id int) (backend.Queue, error) {
	if id < 0 || id >= b.opts.QueueCount {
		return nil, fmt.Errorf("afpacket: queue %d out of range [0,%d)", id, b.opts.QueueCount)
	}

	tpacketOpts := []interface{}{
		afpacket.OptInterface(b.opts.Interface),
		afpacket.OptFrameSize(b.opts.PacketSize),
		afpacket.OptBlockSize(b.opts.BlockSize),
		afpacket.OptNumBlocks(b.opts.FrameCount * b.opts.PacketSize / b.opts.BlockSize),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion2),
	}
	if b.opts.QdiscBypass {
		tpacketOpts = append(tpacketOpts, afpacket.SocketDgram)
	}

	tp, err := afpacket.NewTPacket(tpacketOpts...)
	if err != nil {
		return nil, fmt.Errorf("afpacket: open TX ring on %s: %w", b.opts.Interface, err)
	}

	return &queue{tp: tp, burstSize: b.opts.BurstSize, frameSize: b.opts.PacketSize, tolerateLoss: b.opts.TolerateFrameLoss}, nil
}

func (b *Backend) Close() error { return nil }

// tpacket is the subset of *afpacket.TPacket this backend needs,
// narrowed so tests can substitute a fake without opening a real socket.
type tpacket interface {
	WritePacketData(data []byte) error
	Close()
}

type queue struct {
	mu           sync.Mutex
	tp           tpacket
	burstSize    int
	frameSize    int
	tolerateLoss bool

	stats backend.QueueStats
}

func (q *queue) MaxBurstSize() int { return q.burstSize }

func (q *queue) AcquireBurst(n int) (*backend.Burst, error) {
	if n > q.burstSize {
		n = q.burstSize
	}
	bufs := make([][]byte, n)
	for i := range bufs {
		bufs[i] = make([]byte, q.frameSize)
	}
	return backend.NewBurst(bufs, q.commit), nil
}

// commit writes each filled buffer through gopacket/afpacket's
// WritePacketData, which performs the TP_STATUS_AVAILABLE poll and
// TP_STATUS_SEND_REQUEST handoff internally (§4.12's ring-slot walk,
// abstracted by the library rather than reimplemented here).
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
		if err := q.tp.WritePacketData(buf[:n]); err != nil {
			q.stats.FailedPkts++
			if !q.tolerateLoss {
				q.stats.EndTs = now
				return q.stats, fmt.Errorf("afpacket: write frame: %w", err)
			}
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
	q.tp.Close()
	return nil
}

func (q *queue) Stats() backend.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}
