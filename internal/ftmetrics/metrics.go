// Package ftmetrics exposes replay's per-queue throughput counters as
// Prometheus metrics, grounded on minimega's own use of
// github.com/prometheus/client_golang for its exported runtime metrics
// (cmd/minimega's -cpuprofile/telemetry wiring). cmd/ft-replay mounts
// Handler on an HTTP server when -metrics-addr is set.
package ftmetrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CESNET/ft-generator/internal/replay/backend"
)

// Metrics is one replay run's counter/gauge set, labeled by output queue.
type Metrics struct {
	reg *prometheus.Registry

	TxPackets       *prometheus.CounterVec
	TxBytes         *prometheus.CounterVec
	FailedPackets   *prometheus.CounterVec
	UpscaledPackets *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec
}

// New builds a Metrics set registered against a fresh, private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		TxPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ft_replay", Name: "tx_packets_total", Help: "Packets submitted to a backend queue.",
		}, []string{"queue"}),
		TxBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ft_replay", Name: "tx_bytes_total", Help: "Bytes submitted to a backend queue.",
		}, []string{"queue"}),
		FailedPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ft_replay", Name: "tx_failed_packets_total", Help: "Packets a backend failed to submit.",
		}, []string{"queue"}),
		UpscaledPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ft_replay", Name: "tx_upscaled_packets_total", Help: "Packets padded up to the backend's minimum frame size.",
		}, []string{"queue"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ft_replay", Name: "queue_inflight_tokens", Help: "Rate limiter tokens currently outstanding per queue.",
		}, []string{"queue"}),
	}
	reg.MustRegister(m.TxPackets, m.TxBytes, m.FailedPackets, m.UpscaledPackets, m.QueueDepth)
	return m
}

// Handler returns an http.Handler serving this Metrics set in the
// Prometheus exposition format, for a caller that wants to mount it.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveQueue adds one backend queue's stats delta since the last call.
func (m *Metrics) ObserveQueue(queue string, txPkts, txBytes, failed, upscaled uint64) {
	label := prometheus.Labels{"queue": queue}
	m.TxPackets.With(label).Add(float64(txPkts))
	m.TxBytes.With(label).Add(float64(txBytes))
	m.FailedPackets.With(label).Add(float64(failed))
	m.UpscaledPackets.With(label).Add(float64(upscaled))
}

// SetQueueDepth reports the rate limiter's current outstanding-token
// count for a queue, useful to spot a backend falling behind its target
// rate.
func (m *Metrics) SetQueueDepth(queue string, tokens float64) {
	m.QueueDepth.With(prometheus.Labels{"queue": queue}).Set(tokens)
}

// QueueSource names one backend queue for Watch to poll.
type QueueSource struct {
	Name  string
	Queue backend.Queue
}

// Watch polls every source's cumulative Stats() once a second and feeds
// the delta since the previous poll into m, until ctx is canceled. It is
// the Prometheus-facing counterpart to statsprinter.Run, which does the
// same delta computation for the log instead.
func Watch(ctx context.Context, m *Metrics, sources []QueueSource) {
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
				m.ObserveQueue(s.Name, cur.TxPkts-prev[i].TxPkts, cur.TxBytes-prev[i].TxBytes,
					cur.FailedPkts-prev[i].FailedPkts, cur.UpscaledPkts-prev[i].UpscaledPkts)
				prev[i] = cur
			}
		}
	}
}
