// Package raw is the "raw" output backend: a plain AF_PACKET SOCK_RAW
// socket bound to an interface, grounded on golang.org/x/sys/unix's
// socket/bind/sendto wrappers (the same package the teacher's
// internal/bridge uses for netlink ioctls) and §4.12's note that the
// raw-socket plugin is "interface-only: mechanically simpler, same
// 3-phase contract" compared to the ring-based backends.
package raw

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/CESNET/ft-generator/internal/replay/backend"
	"github.com/CESNET/ft-generator/internal/replay/backend/linkinfo"
)

// Backend sends every queue's traffic out a single raw socket bound to
// one interface; §4.12's queue-fan-out is purely logical here since the
// kernel doesn't expose per-queue raw sockets the way AF_PACKET TX rings
// do.
type Backend struct {
	ifc        string
	ifindex    int
	mtu        int
	numaNode   int
	queueCount int
	burstSize  int
}

// Options configures a raw backend, parsed from the "-o" plugin argument
// string (§6: "ifc", "queueCount", "burstSize").
type Options struct {
	Interface  string
	QueueCount int
	BurstSize  int
}

// New resolves the interface's ifindex/MTU/NUMA node up front so a bad
// -o ifc= value fails at startup.
func New(opts Options) (*Backend, error) {
	info, err := linkinfo.Query(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("raw: lookup interface %s: %w", opts.Interface, err)
	}
	qc := opts.QueueCount
	if qc < 1 {
		qc = 1
	}
	bs := opts.BurstSize
	if bs < 1 {
		bs = 64
	}
	return &Backend{ifc: opts.Interface, ifindex: info.Ifindex, mtu: info.MTU, numaNode: info.NumaNode, queueCount: qc, burstSize: bs}, nil
}

func (b *Backend) QueueCount() int { return b.queueCount }
func (b *Backend) MTU() int        { return b.mtu }
func (b *Backend) NumaNode() int   { return b.numaNode }

func (b *Backend) ConfigureOffloads(requested []backend.OffloadRequest) ([]backend.OffloadRequest, error) {
	return nil, nil
}

func (b *Backend) GetQueue(id int) (backend.Queue, error) {
	if id < 0 || id >= b.queueCount {
		return nil, fmt.Errorf("raw: queue %d out of range [0,%d)", id, b.queueCount)
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, htons(unix.ETH_P_ALL))
	if err != nil {
		return nil, fmt.Errorf("raw: socket: %w", err)
	}
	sa := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: b.ifindex}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("raw: bind to %s: %w", b.ifc, err)
	}
	return &queue{fd: fd, sa: sa, burstSize: b.burstSize}, nil
}

func (b *Backend) Close() error { return nil }

// htons converts a uint16 host byte order value to the network byte
// order unix.Socket expects for the protocol argument, matching
// golang.org/x/net/bpf examples elsewhere in the ecosystem.
func htons(v uint16) uint16 {
	return (v<<8)&0xFF00 | (v>>8)&0x00FF
}

type queue struct {
	mu  sync.Mutex
	fd  int
	sa  *unix.SockaddrLinklayer
	burstSize int

	stats backend.QueueStats
}

func (q *queue) MaxBurstSize() int { return q.burstSize }

func (q *queue) AcquireBurst(n int) (*backend.Burst, error) {
	if n > q.burstSize {
		n = q.burstSize
	}
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
		if err := unix.Sendto(q.fd, buf[:n], 0, q.sa); err != nil {
			q.stats.FailedPkts++
			continue
		}
		q.stats.TxPkts++
		q.stats.TxBytes += uint64(n)
	}
	q.stats.EndTs = now
	return q.stats, nil
}

func (q *queue) Flush() error { return nil }

func (q *queue) Stats() backend.QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}
