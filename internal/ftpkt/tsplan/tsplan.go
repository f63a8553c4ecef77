// Package tsplan spreads N packet timestamps over [t0, t1], optionally
// capping the inter-packet gap, per spec §4.3. It is a direct port of
// original_source/tools/ft-generator/src/timestampgenerator.cpp, with one
// deliberate fix: the original shuffles gaps with an unseeded
// std::default_random_engine (spec §9(d) flags this as a bug); this port
// shuffles with the caller's seeded *ftrand.Rand instead.
package tsplan

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/CESNET/ft-generator/internal/ftrand"
)

// Generate returns numPackets non-decreasing timestamps in [t0, t1] with
// the first equal to t0 and the last at most t1. If maxGap is non-nil, no
// adjacent pair differs by more than *maxGap; when that cap makes the full
// span infeasible, the sequence is implicitly trimmed (the last timestamp
// ends up short of t1) rather than erroring, matching §4.3(c).
func Generate(r *ftrand.Rand, numPackets uint64, t0, t1 uint64, maxGap *uint64) ([]uint64, error) {
	if t0 > t1 {
		return nil, fmt.Errorf("tsplan: t0 (%d) > t1 (%d)", t0, t1)
	}

	if numPackets == 0 {
		return nil, nil
	}
	if numPackets == 1 {
		if t0 != t1 {
			return nil, fmt.Errorf("tsplan: single packet requires t0 == t1")
		}
		return []uint64{t0}, nil
	}

	limit := ^uint64(0)
	if maxGap != nil {
		limit = *maxGap
	}

	gaps := generateRandomGaps(r, numPackets, t1-t0)
	applyLimit(r, limit, gaps)

	r.Shuffle(len(gaps), func(i, j int) { gaps[i], gaps[j] = gaps[j], gaps[i] })

	return gapsToTimestamps(t0, gaps), nil
}

// generateRandomGaps draws numPackets-1 gaps that sum to exactly duration,
// via numPackets-2 uniform interior points in [0,1] sorted into place.
func generateRandomGaps(r *ftrand.Rand, numPackets uint64, duration uint64) []uint64 {
	n := int(numPackets)
	tNorm := make([]float64, n)
	tNorm[0] = 0.0
	tNorm[n-1] = 1.0
	for i := 1; i < n-1; i++ {
		tNorm[i] = r.Float64()
	}
	sort.Float64s(tNorm)

	gaps := make([]uint64, n-1)
	var sum uint64
	for i := 0; i < n-1; i++ {
		value := uint64((tNorm[i+1] - tNorm[i]) * float64(duration))
		sum += value
		gaps[i] = value
	}

	// Compensate for floating point rounding error so the gaps sum to
	// exactly `duration`.
	if duration >= sum {
		gaps[0] += duration - sum
	} else {
		// sum overshot by rounding; claw it back from the first gap
		// without underflowing.
		overshoot := sum - duration
		if overshoot > gaps[0] {
			overshoot = gaps[0]
		}
		gaps[0] -= overshoot
	}

	return gaps
}

// applyLimit caps every gap at limitPerValue, redistributing the excess
// among gaps that still have headroom. Once no gap has headroom left, any
// further excess is simply dropped — the caller observes this as the
// overall span coming up short of t1, which is the intended trim behavior
// for an infeasible maxGap (§4.3(c)).
func applyLimit(r *ftrand.Rand, limitPerValue uint64, values []uint64) {
	if limitPerValue == ^uint64(0) {
		return
	}

	boundary := len(values)
	for i := 0; i < boundary; {
		if values[i] < limitPerValue {
			i++
			continue
		}
		values[i], values[boundary-1] = values[boundary-1], values[i]
		boundary--
	}

	for i := boundary; i < len(values); i++ {
		redistribute(r, values[i]-limitPerValue, limitPerValue, values, &boundary)
		values[i] = limitPerValue
	}
}

func redistribute(r *ftrand.Rand, amount uint64, limitPerValue uint64, values []uint64, boundary *int) {
	for amount > 0 && *boundary > 0 {
		i := r.Choice(*boundary)

		room := limitPerValue - values[i]
		add := amount
		if add > room {
			add = room
		}
		values[i] += add
		amount -= add

		if values[i] == limitPerValue {
			values[i], values[*boundary-1] = values[*boundary-1], values[i]
			*boundary--
		}
	}
}

func gapsToTimestamps(t0 uint64, gaps []uint64) []uint64 {
	out := make([]uint64, len(gaps)+1)
	t := t0
	for i, g := range gaps {
		out[i] = t
		t += g
	}
	out[len(gaps)] = t
	return out
}

// checkedMul64 multiplies a*b, returning an error on overflow, with the
// same overflow discipline as the original's OverflowCheckedMultiply.
func checkedMul64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("tsplan: overflow multiplying %d * %d", a, b)
	}
	return lo, nil
}

// CheckedMul64 is the exported form of checkedMul64.
func CheckedMul64(a, b uint64) (uint64, error) { return checkedMul64(a, b) }
