package ftmetrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveQueueAccumulates(t *testing.T) {
	m := New()
	m.ObserveQueue("q0", 10, 1500, 0, 0)
	m.ObserveQueue("q0", 5, 700, 1, 2)

	var metric dto.Metric
	require.NoError(t, m.TxPackets.WithLabelValues("q0").Write(&metric))
	assert.EqualValues(t, 15, metric.GetCounter().GetValue())
}
