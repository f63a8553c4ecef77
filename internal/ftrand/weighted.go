package ftrand

// WeightedDistribute draws count values, each within [lo, hi], summing to
// exactly sum, per §4.1. It panics (a logic error, not a runtime condition)
// if count*lo > sum or count*hi < sum — the caller is responsible for
// ensuring the request is feasible before calling.
func (r *Rand) WeightedDistribute(sum uint64, count int, lo, hi uint64) []uint64 {
	if count <= 0 {
		if sum != 0 {
			panic("ftrand: WeightedDistribute: count <= 0 but sum != 0")
		}
		return nil
	}
	if hi < lo {
		panic("ftrand: WeightedDistribute: hi < lo")
	}

	minTotal := lo * uint64(count)
	maxTotal := hi * uint64(count)
	if sum < minTotal || sum > maxTotal {
		panic("ftrand: WeightedDistribute: sum outside [count*lo, count*hi]")
	}

	values := make([]uint64, count)
	for i := range values {
		values[i] = lo
	}
	remainder := sum - minTotal

	weights := make([]float64, count)

	for remainder > 0 {
		var total float64
		for i := range weights {
			if values[i] >= hi {
				weights[i] = 0
				continue
			}
			w := r.Float64()
			if w == 0 {
				w = 1e-12
			}
			weights[i] = w
			total += w
		}

		if total == 0 {
			break
		}

		distributed := uint64(0)
		for i := range values {
			if weights[i] == 0 {
				continue
			}
			share := uint64(float64(remainder) * (weights[i] / total))
			room := hi - values[i]
			if share > room {
				share = room
			}
			values[i] += share
			distributed += share
		}

		if distributed == 0 {
			// No progress in a full weighted pass: fall back to a
			// greedy fill in order so we always terminate.
			for i := range values {
				if remainder == 0 {
					break
				}
				room := hi - values[i]
				if room == 0 {
					continue
				}
				take := room
				if take > remainder {
					take = remainder
				}
				values[i] += take
				remainder -= take
			}
			break
		}

		remainder -= distributed
	}

	r.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})

	return values
}
