package sizeplan

import (
	"testing"

	"github.com/CESNET/ft-generator/internal/ftrand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSumsExactly(t *testing.T) {
	cases := []struct {
		count  int
		target uint64
	}{
		{count: 100, target: 10000},
		{count: 2, target: 128},
		{count: 50, target: 64 * 50},
		{count: 50, target: 1518 * 50},
	}

	for i, c := range cases {
		r := ftrand.New(uint64(i) + 11)
		values, err := Generate(r, c.count, c.target, DefaultIntervals)
		require.NoError(t, err)
		require.Len(t, values, c.count)

		var sum uint64
		for _, v := range values {
			assert.GreaterOrEqual(t, v, uint64(MinPacketSize))
			assert.LessOrEqual(t, v, uint64(MaxPacketSize))
			sum += v
		}
		assert.Equal(t, c.target, sum)
	}
}

func TestGenerateInfeasibleErrors(t *testing.T) {
	r := ftrand.New(1)
	_, err := Generate(r, 10, 1, DefaultIntervals)
	assert.Error(t, err)
}

func TestGenerateZeroCount(t *testing.T) {
	r := ftrand.New(1)
	values, err := Generate(r, 0, 0, DefaultIntervals)
	require.NoError(t, err)
	assert.Empty(t, values)
}
