// Package engine runs the replay pipeline: read a pcap, classify and
// partition every packet, hand each output queue's worker its own
// replicator/rate-limiter/backend-queue triple, and run them
// independently to completion (§5). Grounded structurally on
// internal/generator's calendar-driven loop (this repo's other
// "read input, drive per-worker state, stop on exhaustion" pipeline) and
// on original_source/tools/ft-replay/src/replicationUnit.{h,cpp}'s
// overall worker shape.
package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/gopacket/pcapgo"

	"github.com/CESNET/ft-generator/internal/ftlog"
	"github.com/CESNET/ft-generator/internal/ftmetrics"
	"github.com/CESNET/ft-generator/internal/ratelimit"
	"github.com/CESNET/ft-generator/internal/replay/affinity"
	"github.com/CESNET/ft-generator/internal/replay/backend"
	"github.com/CESNET/ft-generator/internal/replay/barrier"
	"github.com/CESNET/ft-generator/internal/replay/ingest"
	"github.com/CESNET/ft-generator/internal/replay/statsprinter"
	"github.com/CESNET/ft-generator/internal/replicator"
	replconfig "github.com/CESNET/ft-generator/internal/replicator/config"
)

// Config is one replay run's parameters (§6 Replay CLI).
type Config struct {
	Loops      int     // replay the whole capture this many times; 0 means 1
	Multiplier float64 // -r: replay-time rate multiplier; 0 disables replay-time pacing
	RateMode   ratelimit.Mode
	RatePerSec uint64 // packets/sec or bytes/sec, depending on RateMode

	// Metrics, if set, is fed every output queue's throughput once a
	// second alongside the statsprinter log line.
	Metrics *ftmetrics.Metrics
}

// Engine owns the classified/partitioned packet list and the per-queue
// workers that replay it.
type Engine struct {
	log    *ftlog.Logger
	cfg    Config
	be     backend.Backend
	repCfg *replconfig.Config
	part   *ingest.Partitioner
	queues [][]ingest.Classified
}

// New reads every packet from r via pcapgo, classifies and partitions it
// across be.QueueCount() queues. Packets that don't classify as IPv4/IPv6
// are dropped (§4.9). repCfg may be nil, meaning no address rewriting.
func New(log *ftlog.Logger, r io.Reader, be backend.Backend, repCfg *replconfig.Config, cfg Config) (*Engine, error) {
	src, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("engine: open pcap: %w", err)
	}

	part := ingest.NewPartitioner(be.QueueCount())
	queues := make([][]ingest.Classified, be.QueueCount())

	for {
		data, ci, err := src.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("engine: read packet: %w", err)
		}
		c, ok := ingest.Classify(data, uint64(ci.Timestamp.UnixNano()))
		if !ok {
			log.Debug("engine: dropping unclassifiable packet (%d bytes)", len(data))
			continue
		}
		idx := part.Assign(c)
		queues[idx] = append(queues[idx], c)
	}

	if cfg.Loops < 1 {
		cfg.Loops = 1
	}
	if repCfg == nil {
		repCfg = &replconfig.Config{}
	}

	return &Engine{log: log, cfg: cfg, be: be, repCfg: repCfg, part: part, queues: queues}, nil
}

// Run opens every non-empty queue's backend handle up front, pins each
// worker to its NIC's NUMA node (§9), starts them behind a barrier so no
// worker gets ahead while a sibling's queue is still being constructed
// (§5), and drives a statsprinter ticker alongside them until every
// worker finishes.
func (e *Engine) Run(ctx context.Context) error {
	type worker struct {
		id int
		q  backend.Queue
	}

	var workers []worker
	for i, pkts := range e.queues {
		if len(pkts) == 0 {
			continue
		}
		q, err := e.be.GetQueue(i)
		if err != nil {
			return fmt.Errorf("engine: queue %d: %w", i, err)
		}
		workers = append(workers, worker{id: i, q: q})
	}
	if len(workers) == 0 {
		return nil
	}

	statsCtx, cancelStats := context.WithCancel(ctx)
	defer cancelStats()

	sources := make([]statsprinter.Source, len(workers))
	metricSources := make([]ftmetrics.QueueSource, len(workers))
	for i, w := range workers {
		name := fmt.Sprintf("queue-%d", w.id)
		sources[i] = statsprinter.Source{Name: name, Queue: w.q}
		metricSources[i] = ftmetrics.QueueSource{Name: name, Queue: w.q}
	}
	go statsprinter.Run(statsCtx, e.log, sources)
	if e.cfg.Metrics != nil {
		go ftmetrics.Watch(statsCtx, e.cfg.Metrics, metricSources)
	}

	bar := barrier.New(len(workers))
	var wg sync.WaitGroup
	errs := make([]error, len(workers))

	for i, w := range workers {
		i, w := i, w
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = e.runWorker(ctx, w.id, w.q, bar)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runWorker(ctx context.Context, queueID int, q backend.Queue, bar *barrier.Barrier) error {
	pkts := e.queues[queueID]

	affinity.PinToNumaNodeOrWarn(e.log, fmt.Sprintf("queue-%d", queueID), e.be.NumaNode())
	bar.Ready()

	limiter := e.limiterFor()
	rep, err := e.workerReplicator()
	if err != nil {
		return fmt.Errorf("engine: queue %d: %w", queueID, err)
	}

	var lastTs uint64
	for loop := 0; loop < e.cfg.Loops; loop++ {
		for _, c := range pkts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if limiter != nil {
				e.pace(limiter, c, lastTs)
			}
			lastTs = c.TimestampNs

			outPkts := rep.Apply(&c, loop)
			if err := e.emit(q, outPkts); err != nil {
				return fmt.Errorf("engine: queue %d: %w", queueID, err)
			}
		}
	}
	return q.Flush()
}

// workerReplicator compiles a fresh Replicator for this worker: stateful
// unit ops (addCounter) must not be shared across goroutines (§5), so
// every worker compiles its own instance from the same config rather
// than sharing one.
func (e *Engine) workerReplicator() (*replicator.Replicator, error) {
	return replicator.Compile(e.repCfg)
}

func (e *Engine) limiterFor() *ratelimit.Limiter {
	switch {
	case e.cfg.Multiplier > 0:
		tokensPerSecond := uint64(float64(1_000_000_000) / e.cfg.Multiplier)
		return ratelimit.New(ratelimit.ReplayTime, tokensPerSecond)
	case e.cfg.RatePerSec > 0:
		return ratelimit.New(e.cfg.RateMode, e.cfg.RatePerSec)
	default:
		return nil
	}
}

func (e *Engine) pace(l *ratelimit.Limiter, c ingest.Classified, lastTs uint64) {
	switch l.Mode() {
	case ratelimit.PPS:
		l.Limit(1)
	case ratelimit.BPS:
		l.Limit(uint64(c.Len))
	case ratelimit.ReplayTime:
		if lastTs != 0 && c.TimestampNs > lastTs {
			l.Limit(c.TimestampNs - lastTs)
		}
	}
}

// Partitioner exposes the ingest partitioner's per-queue packet/byte
// share for diagnostic logging (§4.9).
func (e *Engine) Partitioner() *ingest.Partitioner { return e.part }

func (e *Engine) emit(q backend.Queue, pkts [][]byte) error {
	burst, err := q.AcquireBurst(len(pkts))
	if err != nil {
		return fmt.Errorf("acquire burst: %w", err)
	}
	bufs := burst.Buffers()
	for i, p := range pkts {
		n := copy(bufs[i], p)
		burst.SetLen(i, n)
	}
	_, err = burst.Commit()
	return err
}
