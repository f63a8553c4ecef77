package ftrand

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightedDistributeSumAndBounds(t *testing.T) {
	cases := []struct {
		sum        uint64
		count      int
		lo, hi     uint64
		seedOffset uint64
	}{
		{sum: 1000, count: 5, lo: 64, hi: 1518},
		{sum: 100, count: 10, lo: 10, hi: 10}, // only one feasible value per slot
		{sum: 500, count: 4, lo: 0, hi: 1000},
		{sum: 7, count: 3, lo: 1, hi: 5},
	}

	for i, c := range cases {
		r := New(uint64(i) + 1)
		values := r.WeightedDistribute(c.sum, c.count, c.lo, c.hi)

		assert.Len(t, values, c.count)

		var total uint64
		for _, v := range values {
			assert.GreaterOrEqual(t, v, c.lo)
			assert.LessOrEqual(t, v, c.hi)
			total += v
		}
		assert.Equal(t, c.sum, total)
	}
}

func TestWeightedDistributeInfeasiblePanics(t *testing.T) {
	r := New(1)
	assert.Panics(t, func() {
		r.WeightedDistribute(1, 5, 10, 20) // 5*10 > 1
	})
	assert.Panics(t, func() {
		r.WeightedDistribute(1000, 5, 10, 20) // 5*20 < 1000
	})
}
