package genconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDurationSuffixes(t *testing.T) {
	cases := map[string]time.Duration{
		"10ns": 10 * time.Nanosecond,
		"10us": 10 * time.Microsecond,
		"10ms": 10 * time.Millisecond,
		"10s":  10 * time.Second,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseLinkSpeed(t *testing.T) {
	got, err := ParseLinkSpeed("10mbps")
	assert.NoError(t, err)
	assert.Equal(t, 10e6, got)
}

func TestParsePercentOrFraction(t *testing.T) {
	p, err := ParsePercentOrFraction("30%")
	assert.NoError(t, err)
	assert.InDelta(t, 0.3, p, 1e-9)

	f, err := ParsePercentOrFraction("0.3")
	assert.NoError(t, err)
	assert.InDelta(t, 0.3, f, 1e-9)
}
