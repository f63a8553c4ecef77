// Package ratelimit paces replay output with a token-bucket limiter,
// grounded on original_source/tools/ft-replay/src/rateLimiter.{h,cpp}
// (§4.11). It supports three mutually exclusive pacing modes: packets per
// second, bytes per second, and replay-time (re-creating the original
// capture's inter-packet gaps).
package ratelimit

import (
	"sync"
	"time"
)

// Mode selects what one token represents.
type Mode int

const (
	// PPS spends one token per packet.
	PPS Mode = iota
	// BPS spends one token per byte of IP-and-above length.
	BPS
	// ReplayTime spends one token per nanosecond of gap between
	// successive original packet timestamps.
	ReplayTime
)

const nsPerSecond = 1_000_000_000

// Limiter is a token bucket paced by the monotonic clock. The zero value
// is not usable; use New.
type Limiter struct {
	mode            Mode
	tokensPerSecond uint64
	precisionShift  uint

	mu          sync.Mutex
	accumulated int64
	startNs     int64
	lastNs      int64

	now func() int64
}

// New builds a Limiter for the given mode and rate. tokensPerSecond is
// packets/sec for PPS, bytes/sec for BPS, or for ReplayTime the rate at
// which the gap nanoseconds passed to Limit are paid back; the replay
// engine passes nsPerSecond/multiplier, so Limit(gapNs) spends gapNs tokens
// and a gap of g ns takes g*multiplier ns of real time (1.0 == realtime).
func New(mode Mode, tokensPerSecond uint64) *Limiter {
	l := &Limiter{
		mode:            mode,
		tokensPerSecond: tokensPerSecond,
		precisionShift:  chooseShift(tokensPerSecond),
		now:             monotonicNs,
	}
	l.startNs = l.now()
	l.lastNs = l.startNs
	return l
}

// Mode reports which pacing mode this limiter was built with.
func (l *Limiter) Mode() Mode { return l.mode }

// chooseShift picks the bit shift needed to keep the tokens<->ns
// conversion inside 64 bits when tokensPerSecond exceeds 1e9 (§4.11's
// "precisionShift" technique): shift the numerator down before
// multiplying, then compensate by shifting the divisor down to match.
func chooseShift(tokensPerSecond uint64) uint {
	var shift uint
	for tokensPerSecond>>shift > nsPerSecond {
		shift++
	}
	return shift
}

func (l *Limiter) tokensForElapsed(elapsedNs int64) int64 {
	if elapsedNs <= 0 {
		return 0
	}
	tps := l.tokensPerSecond >> l.precisionShift
	div := uint64(nsPerSecond) >> l.precisionShift
	if div == 0 {
		div = 1
	}
	return int64(tps*uint64(elapsedNs)) / int64(div)
}

func (l *Limiter) durationForTokens(tokens int64) time.Duration {
	if tokens <= 0 {
		return 0
	}
	tps := l.tokensPerSecond >> l.precisionShift
	if tps == 0 {
		return 0
	}
	div := uint64(nsPerSecond) >> l.precisionShift
	ns := uint64(tokens) * div / tps
	return time.Duration(ns)
}

// Limit blocks the calling goroutine until n tokens are available,
// crediting elapsed real time into the bucket first. The bucket never
// accumulates more than one second's worth of tokens, so a caller that
// fell behind is not allowed to burst ahead to catch up (§4.11).
func (l *Limiter) Limit(n uint64) {
	l.mu.Lock()
	now := l.now()
	l.accumulated += l.tokensForElapsed(now - l.lastNs)
	l.lastNs = now

	if cap := int64(l.tokensPerSecond); l.accumulated > cap {
		l.accumulated = cap
	}

	need := int64(n) - l.accumulated
	if need <= 0 {
		l.accumulated -= int64(n)
		l.mu.Unlock()
		return
	}

	l.accumulated = 0
	wait := l.durationForTokens(need)
	l.mu.Unlock()

	time.Sleep(wait)

	l.mu.Lock()
	l.lastNs = l.now()
	l.mu.Unlock()
}

// clockBase anchors monotonicNs; time.Since uses the monotonic clock
// reading, so wall-clock steps do not affect pacing.
var clockBase = time.Now()

func monotonicNs() int64 { return int64(time.Since(clockBase)) }

// withClock overrides the time source, used by tests to drive elapsed
// time deterministically without sleeping.
func (l *Limiter) withClock(now func() int64) *Limiter {
	l.now = now
	l.startNs = now()
	l.lastNs = l.startNs
	return l
}
