package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimitDoesNotBlockWithinBucket(t *testing.T) {
	clock := int64(0)
	l := New(PPS, 1000).withClock(func() int64 { return clock })

	clock = int64(nsPerSecond) // one full second elapsed, bucket fills to 1000
	l.Limit(500)

	assert.LessOrEqual(t, l.accumulated, int64(500))
}

func TestLimitClampsBacklogToOneSecond(t *testing.T) {
	clock := int64(0)
	l := New(PPS, 1000).withClock(func() int64 { return clock })

	clock = int64(10 * nsPerSecond) // ten seconds of idle time
	l.Limit(1)

	// bucket must not have accumulated more than one second's worth.
	assert.LessOrEqual(t, l.accumulated, int64(999))
}

func TestChooseShiftKeepsHighRatesInRange(t *testing.T) {
	shift := chooseShift(50_000_000_000)
	assert.Greater(t, shift, uint(0))
	assert.Equal(t, uint(0), chooseShift(1000))
}
