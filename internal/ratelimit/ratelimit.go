// Package ratelimit implements the token-bucket send admission control
// used to cap a Network Module's outbound datagram rate.
package ratelimit

import (
	"golang.org/x/time/rate"
)

// Limiter is a token bucket replenishing at Rate tokens/second, capped at
// Rate tokens of burst. It wraps golang.org/x/time/rate rather than
// hand-rolling the refill arithmetic: x/time/rate.Limiter.SetLimit folds
// elapsed time into the token count under the OLD rate before swapping
// in the new one, which is exactly the "SetRate must not alter the
// current token count" semantics this module needs. Not safe for
// concurrent use — callers own a Limiter exclusively, matching the
// single-threaded Network Module.
type Limiter struct {
	rate float64
	lim  *rate.Limiter
}

// New creates a Limiter admitting at most hz datagrams/second, starting
// with a full bucket.
func New(hz float64) *Limiter {
	return &Limiter{rate: hz, lim: rate.NewLimiter(rate.Limit(hz), burstOf(hz))}
}

// Admit reports whether a send may proceed now, deducting one token if
// so.
func (l *Limiter) Admit() bool { return l.lim.Allow() }

// SetRate changes the replenishment rate without altering the current
// token count.
func (l *Limiter) SetRate(hz float64) {
	l.rate = hz
	l.lim.SetLimit(rate.Limit(hz))
	l.lim.SetBurst(burstOf(hz))
}

// Rate returns the current replenishment rate in Hz.
func (l *Limiter) Rate() float64 { return l.rate }

// burstOf caps the bucket at one second's worth of tokens, rounded to
// the nearest integer. A zero or negative rate gets a zero burst (never
// admits); any positive rate gets at least one, so sub-1Hz rates still
// admit occasionally rather than starving entirely.
func burstOf(hz float64) int {
	if hz <= 0 {
		return 0
	}
	n := int(hz + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}
