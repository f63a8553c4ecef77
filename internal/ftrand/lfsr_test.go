package ftrand

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLFSRZeroBitsIsNoOp(t *testing.T) {
	l := NewLFSR(0, 42)
	for i := 0; i < 5; i++ {
		got := l.Next()
		assert.Equal(t, int64(0), got.Int64())
	}
}

func TestLFSRFullPeriodDistinct(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 6, 8} {
		n := n
		t.Run(fmt.Sprintf("degree_%d", n), func(t *testing.T) {
			l := NewLFSR(n, 7)
			period := 1 << uint(n)

			seen := map[string]bool{}
			var zeroCount int
			for i := 0; i < period; i++ {
				v := l.Next()
				key := v.String()
				require.False(t, seen[key], "degree %d: duplicate suffix %s within one period", n, key)
				seen[key] = true
				if v.Sign() == 0 {
					zeroCount++
				}
			}
			assert.Equal(t, 1, zeroCount, "degree %d: zero suffix must appear exactly once per period", n)
			assert.Len(t, seen, period)

			// The (period+1)th call must repeat the very first value.
			first := l.Next()
			l2 := NewLFSR(n, 7)
			expectFirst := l2.Next()
			assert.Equal(t, expectFirst.String(), first.String())
		})
	}
}

func TestPrefixedGeneratorPreservesPrefix(t *testing.T) {
	base := []byte{192, 168, 1, 0}
	g := NewPrefixedGenerator(base, 24, 99)

	for i := 0; i < 50; i++ {
		out := g.Next()
		require.Len(t, out, 4)
		assert.Equal(t, byte(192), out[0])
		assert.Equal(t, byte(168), out[1])
		assert.Equal(t, byte(1), out[2])
	}
}

func TestMACGeneratorNeverSetsGroupBitWhenPrefixShort(t *testing.T) {
	base := []byte{0x02, 0, 0, 0, 0, 0}
	g := NewMACGenerator(base, 0, 1234)

	for i := 0; i < 200; i++ {
		out := g.Next()
		assert.Zero(t, out[0]&0x01, "group/multicast bit must be clear")
	}
}

func TestMACGeneratorAllowsForcedGroupBit(t *testing.T) {
	base := []byte{0x01, 0, 0, 0, 0, 0}
	g := NewMACGenerator(base, 8, 1234)

	out := g.Next()
	assert.Equal(t, byte(0x01), out[0])
}
