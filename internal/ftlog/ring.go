package ftlog

import (
	"container/ring"
	"sync"
)

// Ring is a fixed-size buffer of the most recent log lines, used to dump
// recent context around a fatal error without holding the whole run's
// output in memory.
type Ring struct {
	size int

	mu sync.Mutex
	r  *ring.Ring
}

// NewRing allocates a Ring holding up to size lines.
func NewRing(size int) *Ring {
	return &Ring{r: ring.New(size), size: size}
}

// Push appends a line, overwriting the oldest once the ring is full.
func (l *Ring) Push(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.r.Value = line
	l.r = l.r.Next()
}

// Dump returns buffered lines oldest to newest.
func (l *Ring) Dump() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make([]string, 0, l.size)
	l.r.Do(func(v interface{}) {
		if v == nil {
			return
		}
		res = append(res, v.(string))
	})
	return res
}
