package tsplan

import (
	"testing"

	"github.com/CESNET/ft-generator/internal/ftrand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gap(v uint64) *uint64 { return &v }

func TestGenerateZeroAndOnePacket(t *testing.T) {
	r := ftrand.New(1)

	out, err := Generate(r, 0, 0, 100, nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = Generate(r, 1, 50, 50, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{50}, out)

	_, err = Generate(r, 1, 10, 20, nil)
	assert.Error(t, err)
}

func TestGenerateWithinGapFeasible(t *testing.T) {
	// §8 scenario 3: N=10, t0=0s, t1=50s, maxGap=10s (in seconds here for
	// readability; the function is unit-agnostic).
	r := ftrand.New(7)
	out, err := Generate(r, 10, 0, 50, gap(10))
	require.NoError(t, err)
	require.Len(t, out, 10)

	assert.Equal(t, uint64(0), out[0])
	assert.LessOrEqual(t, out[9], uint64(50))

	var sum uint64
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i], out[i-1])
		g := out[i] - out[i-1]
		assert.LessOrEqual(t, g, uint64(10))
		sum += g
	}
	assert.Equal(t, out[9]-out[0], sum)
}

func TestGenerateInfeasibleTrims(t *testing.T) {
	// §8 scenario 4: N=10, t0=10s, t1=100s, maxGap=1s: 9 gaps can sum to
	// at most 9s, far short of the 90s span, so every gap saturates at
	// the cap and the result is deterministic regardless of seed.
	for _, seed := range []uint64{1, 2, 42} {
		r := ftrand.New(seed)
		out, err := Generate(r, 10, 10, 100, gap(1))
		require.NoError(t, err)
		require.Len(t, out, 10)

		assert.Equal(t, uint64(10), out[0])
		assert.Equal(t, uint64(19), out[9])

		for i := 1; i < len(out); i++ {
			assert.Equal(t, uint64(1), out[i]-out[i-1])
		}
	}
}

func TestGenerateNonDecreasing(t *testing.T) {
	r := ftrand.New(99)
	out, err := Generate(r, 200, 1000, 50000, nil)
	require.NoError(t, err)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i], out[i-1])
	}
	assert.Equal(t, uint64(1000), out[0])
}
