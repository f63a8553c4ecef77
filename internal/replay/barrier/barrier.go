// Package barrier is a countDownLatch equivalent over sync.WaitGroup
// plus a start gate, grounded on original_source/tools/ft-replay/src/
// (the replay workers' startup barrier) and on the fan-out/wait shape
// flowmaker already uses elsewhere in this repo for its worker pool.
// It keeps queue 0 from racing ahead while queue N's backend is still
// being constructed (§5).
package barrier

import "sync"

// Barrier lets N workers each signal "ready" and then block until every
// other worker has also signaled, so all of them start their hot loop at
// the same moment.
type Barrier struct {
	wg    sync.WaitGroup
	gate  chan struct{}
	once  sync.Once
}

// New builds a Barrier for n participants.
func New(n int) *Barrier {
	b := &Barrier{gate: make(chan struct{})}
	b.wg.Add(n)
	return b
}

// Ready signals this participant is done with setup, then blocks until
// every other participant has also called Ready.
func (b *Barrier) Ready() {
	b.wg.Done()
	b.once.Do(func() {
		go func() {
			b.wg.Wait()
			close(b.gate)
		}()
	})
	<-b.gate
}
