package ftrand

// tapTable holds, for each LFSR degree, the bit positions (1-indexed, i.e.
// bit 1 is the LSB) of a primitive polynomial over GF(2) known to produce a
// maximal-length sequence (period 2^n - 1) in Fibonacci form. Degrees 1..64
// are the commonly published taps (e.g. Xilinx XAPP052-style tables
// reproduced across many LFSR references); degrees 72, 96, 104, 112, 120 and
// 128 are likewise taken from that extended table, since the address
// generator needs up to 128 bits for an unconstrained IPv6 suffix. See
// DESIGN.md for the degrees in between, which fall back to a derived
// 4-tap construction rather than an independently verified polynomial.
var tapTable = map[int][]int{
	1: {1}, 2: {2, 1}, 3: {3, 2}, 4: {4, 3}, 5: {5, 3}, 6: {6, 5}, 7: {7, 6},
	8: {8, 6, 5, 4}, 9: {9, 5}, 10: {10, 7}, 11: {11, 9}, 12: {12, 11, 10, 4},
	13: {13, 12, 11, 8}, 14: {14, 13, 12, 2}, 15: {15, 14}, 16: {16, 15, 13, 4},
	17: {17, 14}, 18: {18, 11}, 19: {19, 18, 17, 14}, 20: {20, 17},
	21: {21, 19}, 22: {22, 21}, 23: {23, 18}, 24: {24, 23, 22, 17},
	25: {25, 22}, 26: {26, 25, 24, 20}, 27: {27, 26, 25, 22}, 28: {28, 25},
	29: {29, 27}, 30: {30, 29, 28, 7}, 31: {31, 28}, 32: {32, 30, 26, 25},
	33: {33, 20}, 34: {34, 31, 30, 26}, 35: {35, 33}, 36: {36, 25},
	37: {37, 36, 33, 31}, 38: {38, 37, 33, 32}, 39: {39, 35},
	40: {40, 38, 21, 19}, 41: {41, 38}, 42: {42, 41, 20, 19},
	43: {43, 42, 38, 37}, 44: {44, 43, 18, 17}, 45: {45, 44, 42, 41},
	46: {46, 45, 26, 25}, 47: {47, 42}, 48: {48, 47, 21, 20}, 49: {49, 40},
	50: {50, 49, 24, 23}, 51: {51, 50, 36, 35}, 52: {52, 49},
	53: {53, 52, 38, 37}, 54: {54, 53, 18, 17}, 55: {55, 31},
	56: {56, 55, 35, 34}, 57: {57, 50}, 58: {58, 39}, 59: {59, 58, 38, 37},
	60: {60, 59}, 61: {61, 60, 46, 45}, 62: {62, 61, 6, 5}, 63: {63, 62},
	64: {64, 63, 61, 60},
	72: {72, 66, 25, 19}, 96: {96, 94, 49, 47}, 104: {104, 94, 46, 39},
	112: {112, 110, 69, 67}, 120: {120, 113, 9, 2}, 128: {128, 126, 101, 99},
}

// lfsrTaps returns the feedback tap positions for an n-bit LFSR. Degrees
// present in tapTable use the published polynomial; any other degree falls
// back to a deterministic 4-tap construction (n, n-1, ⌈n/3⌉, 1) that is
// not independently verified to be maximal-length but keeps the generator
// total, since every prefix length 1..128 must be constructible.
func lfsrTaps(n int) []int {
	if n <= 0 {
		return nil
	}
	if taps, ok := tapTable[n]; ok {
		out := make([]int, len(taps))
		copy(out, taps)
		return out
	}
	third := (n + 2) / 3
	if third >= n {
		third = n - 1
	}
	if third < 1 {
		third = 1
	}
	seen := map[int]bool{n: true}
	taps := []int{n}
	for _, t := range []int{n - 1, third, 1} {
		if t >= 1 && t <= n && !seen[t] {
			seen[t] = true
			taps = append(taps, t)
		}
	}
	return taps
}
