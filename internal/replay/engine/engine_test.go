package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CESNET/ft-generator/internal/ftlog"
	"github.com/CESNET/ft-generator/internal/replay/backend"
)

type fakeQueue struct {
	mu    int
	sent  [][]byte
	stats backend.QueueStats
}

func (q *fakeQueue) MaxBurstSize() int { return 64 }

func (q *fakeQueue) AcquireBurst(n int) (*backend.Burst, error) {
	bufs := make([][]byte, n)
	for i := range bufs {
		bufs[i] = make([]byte, 2048)
	}
	return backend.NewBurst(bufs, func(bufs [][]byte, lens []int) (backend.QueueStats, error) {
		for i, b := range bufs {
			if lens[i] == 0 {
				continue
			}
			cp := append([]byte(nil), b[:lens[i]]...)
			q.sent = append(q.sent, cp)
			q.stats.TxPkts++
			q.stats.TxBytes += uint64(lens[i])
		}
		return q.stats, nil
	}), nil
}

func (q *fakeQueue) Flush() error              { return nil }
func (q *fakeQueue) Stats() backend.QueueStats { return q.stats }

type fakeBackend struct {
	queues []*fakeQueue
}

func newFakeBackend(n int) *fakeBackend {
	b := &fakeBackend{}
	for i := 0; i < n; i++ {
		b.queues = append(b.queues, &fakeQueue{})
	}
	return b
}

func (b *fakeBackend) QueueCount() int                              { return len(b.queues) }
func (b *fakeBackend) GetQueue(id int) (backend.Queue, error)       { return b.queues[id], nil }
func (b *fakeBackend) MTU() int                                     { return 1500 }
func (b *fakeBackend) NumaNode() int                                { return -1 }
func (b *fakeBackend) Close() error                                 { return nil }
func (b *fakeBackend) ConfigureOffloads(r []backend.OffloadRequest) ([]backend.OffloadRequest, error) {
	return nil, nil
}

func buildPcap(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))

	for i := 0; i < n; i++ {
		raw := make([]byte, 14+20+8)
		raw[12], raw[13] = 0x08, 0x00
		raw[14] = 0x45
		raw[14+9] = 17 // UDP
		copy(raw[14+12:14+16], []byte{10, 0, 0, 1})
		copy(raw[14+16:14+20], []byte{10, 0, 0, 2})
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(0, int64(i)*1000), CaptureLength: len(raw), Length: len(raw)}
		require.NoError(t, w.WritePacket(ci, raw))
	}
	return buf.Bytes()
}

func TestEngineRunDistributesAndEmitsAllPackets(t *testing.T) {
	log := ftlog.New(&bytes.Buffer{}, ftlog.ERROR)
	pcapData := buildPcap(t, 20)

	be := newFakeBackend(4)
	eng, err := New(log, bytes.NewReader(pcapData), be, nil, Config{Loops: 1})
	require.NoError(t, err)

	require.NoError(t, eng.Run(context.Background()))

	var total int
	for _, q := range be.queues {
		total += len(q.sent)
	}
	assert.Equal(t, 20, total)
}

func TestEngineRunRespectsLoopCount(t *testing.T) {
	log := ftlog.New(&bytes.Buffer{}, ftlog.ERROR)
	pcapData := buildPcap(t, 5)

	be := newFakeBackend(1)
	eng, err := New(log, bytes.NewReader(pcapData), be, nil, Config{Loops: 3})
	require.NoError(t, err)

	require.NoError(t, eng.Run(context.Background()))

	assert.Len(t, be.queues[0].sent, 15)
}
