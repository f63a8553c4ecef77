// Package sizeplan draws per-packet sizes (IP-and-above length) that sum to
// a target byte count, per spec §4.2. It is grounded on
// original_source/.../valuegenerator.h's shape (count, desired sum, a table
// of weighted intervals) with the solving strategy spec.md §4.2 describes:
// partition the packet count across intervals by weight, draw uniformly
// within each, then bias the tail to close the sum exactly, falling back to
// ftrand.WeightedDistribute when the target sits too close to a boundary
// for the interval-local bias pass to reach it.
package sizeplan

import (
	"fmt"

	"github.com/CESNET/ft-generator/internal/ftrand"
)

// Generate draws count values summing to exactly byteTarget, each within
// the overall [lo, hi] spanned by intervals. Values not fixed (the given
// set of already-finished packet sizes should be handled by the caller,
// which only asks this solver for the remaining non-finished packets).
func Generate(r *ftrand.Rand, count int, byteTarget uint64, intervals []Interval) ([]uint64, error) {
	if count == 0 {
		if byteTarget != 0 {
			return nil, fmt.Errorf("sizeplan: count 0 but byteTarget %d != 0", byteTarget)
		}
		return nil, nil
	}
	if len(intervals) == 0 {
		return nil, fmt.Errorf("sizeplan: no intervals given")
	}

	globalLo, globalHi := intervals[0].Lo, intervals[0].Hi
	for _, iv := range intervals[1:] {
		if iv.Lo < globalLo {
			globalLo = iv.Lo
		}
		if iv.Hi > globalHi {
			globalHi = iv.Hi
		}
	}

	minTotal := globalLo * uint64(count)
	maxTotal := globalHi * uint64(count)
	if byteTarget < minTotal || byteTarget > maxTotal {
		return nil, fmt.Errorf(
			"sizeplan: byteTarget %d outside feasible range [%d, %d] for %d packets",
			byteTarget, minTotal, maxTotal, count,
		)
	}

	counts := partitionCounts(count, intervals)

	values := make([]uint64, 0, count)
	idx := 0
	bounds := make([][2]uint64, 0, count)
	for i, iv := range intervals {
		for j := 0; j < counts[i]; j++ {
			values = append(values, iv.Lo+r.Uint64n(0, iv.Hi-iv.Lo))
			bounds = append(bounds, [2]uint64{iv.Lo, iv.Hi})
			idx++
		}
	}

	var sum uint64
	for _, v := range values {
		sum += v
	}

	if !biasToTarget(r, values, bounds, sum, byteTarget) {
		// Near a boundary: the interval-local bias pass couldn't close
		// the gap without violating some value's bucket bounds. Fall
		// back to a flat weighted distribution over the overall range.
		return r.WeightedDistribute(byteTarget, count, globalLo, globalHi), nil
	}

	r.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
		bounds[i], bounds[j] = bounds[j], bounds[i]
	})

	return values, nil
}

// partitionCounts splits count items across intervals proportionally to
// their probability weight, using largest-remainder rounding so the parts
// sum to exactly count.
func partitionCounts(count int, intervals []Interval) []int {
	n := len(intervals)
	counts := make([]int, n)
	remainders := make([]float64, n)

	var totalWeight float64
	for _, iv := range intervals {
		totalWeight += iv.Probability
	}
	if totalWeight <= 0 {
		totalWeight = float64(n)
	}

	assigned := 0
	for i, iv := range intervals {
		w := iv.Probability
		if totalWeight != float64(n) {
			w = iv.Probability / totalWeight
		} else {
			w = 1.0 / float64(n)
		}
		exact := w * float64(count)
		counts[i] = int(exact)
		remainders[i] = exact - float64(counts[i])
		assigned += counts[i]
	}

	remaining := count - assigned
	for remaining > 0 {
		best := 0
		for i := 1; i < n; i++ {
			if remainders[i] > remainders[best] {
				best = i
			}
		}
		counts[best]++
		remainders[best] = -1
		remaining--
	}

	return counts
}

// biasToTarget nudges values toward summing to exactly byteTarget, each
// kept within its own interval's [lo, hi]. Returns false if it could not
// fully close the gap.
func biasToTarget(r *ftrand.Rand, values []uint64, bounds [][2]uint64, sum, target uint64) bool {
	if sum == target {
		return true
	}

	order := r.Perm(len(values))

	if sum < target {
		remaining := target - sum
		for _, i := range order {
			if remaining == 0 {
				break
			}
			room := bounds[i][1] - values[i]
			if room == 0 {
				continue
			}
			add := room
			if add > remaining {
				add = remaining
			}
			values[i] += add
			remaining -= add
		}
		return remaining == 0
	}

	remaining := sum - target
	for _, i := range order {
		if remaining == 0 {
			break
		}
		room := values[i] - bounds[i][0]
		if room == 0 {
			continue
		}
		sub := room
		if sub > remaining {
			sub = remaining
		}
		values[i] -= sub
		remaining -= sub
	}
	return remaining == 0
}
