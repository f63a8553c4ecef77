// Package flowmaker runs the pipelined flow-preparation worker pool (§4.5)
// and owns the collision-detection pass (§4.6) that gates it. Grounded
// structurally on the producer/worker-pool shape used throughout the
// teacher's own goroutine-heavy subsystems (e.g. src/minimega/bridge.go's
// background reaper goroutine), generalized here into a fixed-size pool
// with ordered futures.
package flowmaker

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/CESNET/ft-generator/internal/flow"
	"github.com/CESNET/ft-generator/internal/ftrand"
	"github.com/CESNET/ft-generator/internal/genconfig"
)

// DefaultQueueDepth is the worker pool's default outstanding-futures bound
// (§4.5, §5: "fixed size, default 128 outstanding futures").
const DefaultQueueDepth = 128

// AddressSampler draws a candidate (srcIP, dstIP) pair for a profile row
// using the flow's dedicated PRNG stream. Re-invoked on each collision
// retry so the resulting tuple changes without touching any other flow
// state.
type AddressSampler func(row genconfig.ProfileRow, r *ftrand.Rand) (srcIP, dstIP []byte)

// BuildFunc instantiates a Flow's full layer stack for a profile row and
// runs its plan phase. Called from a worker goroutine; must not touch any
// shared state besides what it receives.
type BuildFunc func(row genconfig.ProfileRow, flowID uint64, srcIP, dstIP []byte, r *ftrand.Rand) (*flow.Flow, error)

type job struct {
	row        genconfig.ProfileRow
	flowID     uint64
	srcIP, dstIP []byte
	r          *ftrand.Rand
	resultCh   chan jobResult
}

type jobResult struct {
	flow *flow.Flow
	err  error
}

// FlowMaker pre-plans flows on a fixed-size worker pool while preserving
// submission order for the caller: futures are popped oldest-first,
// regardless of which worker finishes first.
type FlowMaker struct {
	globalSeed uint64
	sample     AddressSampler
	build      BuildFunc
	collisions *CollisionSet
	checkColl  bool

	jobs    chan job
	futures chan chan jobResult

	// pending tracks in-flight flow IDs for diagnostics; touched by both
	// the producer (Submit) and every worker goroutine, hence the
	// concurrent map instead of a mutex-guarded plain one.
	pending *xsync.MapOf[uint64, struct{}]
}

// New starts a pool of numWorkers goroutines backed by a channel of the
// given queue depth.
func New(numWorkers, queueDepth int, globalSeed uint64, checkCollisions bool, sample AddressSampler, build BuildFunc) *FlowMaker {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	fm := &FlowMaker{
		globalSeed: globalSeed,
		sample:     sample,
		build:      build,
		collisions: NewCollisionSet(),
		checkColl:  checkCollisions,
		jobs:       make(chan job, queueDepth),
		futures:    make(chan chan jobResult, queueDepth),
		pending:    xsync.NewMapOf[uint64, struct{}](),
	}
	for i := 0; i < numWorkers; i++ {
		go fm.worker()
	}
	return fm
}

func (fm *FlowMaker) worker() {
	for j := range fm.jobs {
		f, err := fm.build(j.row, j.flowID, j.srcIP, j.dstIP, j.r)
		j.resultCh <- jobResult{flow: f, err: err}
		fm.pending.Delete(j.flowID)
	}
}

// Submit runs the collision probe (if enabled) on the calling goroutine,
// then dispatches the row to the pool and returns immediately. Call Next
// to retrieve results in submission order.
func (fm *FlowMaker) Submit(row genconfig.ProfileRow, flowID uint64) error {
	r := ftrand.ForFlow(fm.globalSeed, flowID)

	srcIP, dstIP := fm.sample(row, r)
	if fm.checkColl {
		var err error
		srcIP, dstIP, err = fm.resolveCollision(row, r, srcIP, dstIP)
		if err != nil {
			return err
		}
	}

	resultCh := make(chan jobResult, 1)
	fm.pending.Store(flowID, struct{}{})
	fm.jobs <- job{row: row, flowID: flowID, srcIP: srcIP, dstIP: dstIP, r: r, resultCh: resultCh}
	fm.futures <- resultCh
	return nil
}

func (fm *FlowMaker) resolveCollision(row genconfig.ProfileRow, r *ftrand.Rand, srcIP, dstIP []byte) ([]byte, []byte, error) {
	id := flow.Normalize(srcIP, dstIP, row.SrcPort, row.DstPort, row.L4Proto)
	if fm.collisions.TryInsert(id) {
		return srcIP, dstIP, nil
	}
	for attempt := 1; attempt < TryCount; attempt++ {
		srcIP, dstIP = fm.sample(row, r)
		id = flow.Normalize(srcIP, dstIP, row.SrcPort, row.DstPort, row.L4Proto)
		if fm.collisions.TryInsert(id) {
			return srcIP, dstIP, nil
		}
	}
	return nil, nil, &ErrCollisionExhausted{Tuple: id, Tries: TryCount}
}

// Next blocks for the oldest outstanding future and returns its result.
// Reports false once Close has been called and every future drained.
func (fm *FlowMaker) Next() (*flow.Flow, error, bool) {
	resultCh, ok := <-fm.futures
	if !ok {
		return nil, nil, false
	}
	res := <-resultCh
	return res.flow, res.err, true
}

// PendingCount reports how many submitted jobs have not yet completed, for
// diagnostics/logging.
func (fm *FlowMaker) PendingCount() int {
	return fm.pending.Size()
}

// Close signals no further jobs will be submitted and stops accepting new
// futures once drained.
func (fm *FlowMaker) Close() {
	close(fm.jobs)
	close(fm.futures)
}
