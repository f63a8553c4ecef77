// Package statsprinter periodically logs each queue's pps/bps, grounded
// on original_source/tools/ft-replay/src/ (a one-second ticker printing
// per-queue throughput, separate from the final summary ftmeter-style
// report) and on this repo's own ftlog.Logger.With(Fields) idiom for
// structured per-queue context.
package statsprinter

import (
	"context"
	"time"

	"github.com/CESNET/ft-generator/internal/ftlog"
	"github.com/CESNET/ft-generator/internal/replay/backend"
)

// Source reports a named queue's cumulative stats snapshot on demand.
type Source struct {
	Name  string
	Queue backend.Queue
}

// Run logs every source's pps/bps once a second until ctx is canceled,
// computed as the delta between consecutive snapshots.
func Run(ctx context.Context, log *ftlog.Logger, sources []Source) {
	prev := make([]backend.QueueStats, len(sources))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, s := range sources {
				cur := s.Queue.Stats()
				dPkts := cur.TxPkts - prev[i].TxPkts
				dBytes := cur.TxBytes - prev[i].TxBytes
				prev[i] = cur
				log.With(ftlog.Fields{
					"queue": s.Name,
					"pps":   dPkts,
					"bps":   dBytes * 8,
				}).Info("replay throughput")
			}
		}
	}
}
