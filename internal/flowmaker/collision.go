package flowmaker

import (
	"fmt"

	"github.com/CESNET/ft-generator/internal/flow"
)

// TryCount is the original's hard-coded retry budget for a colliding
// flow's address sample, preserved verbatim per spec §9 open question (b):
// no backoff between attempts.
const TryCount = 10

// CollisionSet is the single global set of normalized flow identifiers
// (§4.6). It is touched only from the producer goroutine that dispatches
// work to the pool, never from a worker, so it needs no internal locking.
type CollisionSet struct {
	seen map[flow.NormalizedIdentifier]bool
}

// NewCollisionSet returns an empty set.
func NewCollisionSet() *CollisionSet {
	return &CollisionSet{seen: make(map[flow.NormalizedIdentifier]bool)}
}

// TryInsert reports whether id was newly inserted (true) or already
// present (false, a collision).
func (c *CollisionSet) TryInsert(id flow.NormalizedIdentifier) bool {
	if c.seen[id] {
		return false
	}
	c.seen[id] = true
	return true
}

// ErrCollisionExhausted is returned when TryCount re-rolls all collide,
// per §4.6 "failure is fatal with an actionable message naming the
// conflicting tuple".
type ErrCollisionExhausted struct {
	Tuple flow.NormalizedIdentifier
	Tries int
}

func (e *ErrCollisionExhausted) Error() string {
	return fmt.Sprintf("flowmaker: exhausted %d collision retries on %s", e.Tries, e.Tuple)
}
