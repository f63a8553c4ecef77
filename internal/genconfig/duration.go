package genconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ParseDuration parses a "<number><suffix>" value where suffix is one of
// ns/us/ms/s, grounded on
// original_source/tools/ft-generator/src/timeval.h and timestamp.h's
// duration-suffix table. The numeric part is coerced with spf13/cast so a
// YAML-decoded int, float, or string all parse the same way.
func ParseDuration(v interface{}) (time.Duration, error) {
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" {
		return 0, fmt.Errorf("genconfig: empty duration")
	}

	for _, suf := range []struct {
		tag  string
		unit time.Duration
	}{
		{"ns", time.Nanosecond},
		{"us", time.Microsecond},
		{"ms", time.Millisecond},
		{"s", time.Second},
	} {
		if strings.HasSuffix(s, suf.tag) {
			numPart := strings.TrimSuffix(s, suf.tag)
			n, err := cast.ToFloat64E(numPart)
			if err != nil {
				return 0, fmt.Errorf("genconfig: duration %q: %w", s, err)
			}
			return time.Duration(n * float64(suf.unit)), nil
		}
	}
	return 0, fmt.Errorf("genconfig: duration %q has no recognized ns/us/ms/s suffix", s)
}

// linkSpeedMultipliers maps the §6 link_speed suffixes to bits per second.
var linkSpeedMultipliers = map[string]float64{
	"bps":  1,
	"kbps": 1e3,
	"mbps": 1e6,
	"gbps": 1e9,
}

// ParseLinkSpeed parses a "<number><bps|kbps|mbps|gbps>" value into bits
// per second.
func ParseLinkSpeed(v interface{}) (float64, error) {
	s := strings.TrimSpace(strings.ToLower(cast.ToString(v)))
	// "bps" is tried last: it is a suffix of every other unit.
	for _, suf := range []string{"kbps", "mbps", "gbps", "bps"} {
		mult := linkSpeedMultipliers[suf]
		if strings.HasSuffix(s, suf) {
			n, err := cast.ToFloat64E(strings.TrimSuffix(s, suf))
			if err != nil {
				return 0, fmt.Errorf("genconfig: link speed %q: %w", s, err)
			}
			return n * mult, nil
		}
	}
	return 0, fmt.Errorf("genconfig: link speed %q has no recognized bps/kbps/mbps/gbps suffix", s)
}

// ParsePercentOrFraction parses either a bare fraction ("0.3") or a
// percentage ("30%") into [0,1], for fragmentation_probability and similar
// §6 fields.
func ParsePercentOrFraction(v interface{}) (float64, error) {
	s := strings.TrimSpace(cast.ToString(v))
	if strings.HasSuffix(s, "%") {
		n, err := cast.ToFloat64E(strings.TrimSuffix(s, "%"))
		if err != nil {
			return 0, fmt.Errorf("genconfig: percentage %q: %w", s, err)
		}
		return n / 100, nil
	}
	n, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, fmt.Errorf("genconfig: fraction %q: %w", s, err)
	}
	return n, nil
}
