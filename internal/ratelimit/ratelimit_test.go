package ratelimit

import (
	"testing"
	"time"
)

// Apart from the final Admit smoke test, the tests below drive the wrapped
// x/time/rate.Limiter through its explicit-time entry points
// (AllowN/TokensAt/SetLimitAt/SetBurstAt) rather than Limiter's
// convenience wrappers, so time only ever advances when the test says
// so — no real sleeping, no flakiness.

func TestBurstNeverExceedsRate(t *testing.T) {
	l := New(4)
	now := time.Now().Add(time.Hour) // plenty of time to refill to cap
	admitted := 0
	for i := 0; i < 10; i++ {
		if l.lim.AllowN(now, 1) {
			admitted++
		}
	}
	if admitted != 4 {
		t.Fatalf("want burst of 4, got %d", admitted)
	}
}

func TestTokensNeverNegativeOrAboveRate(t *testing.T) {
	l := New(2)
	now := time.Now()
	for i := 0; i < 20; i++ {
		l.lim.AllowN(now, 1)
		tokens := l.lim.TokensAt(now)
		if tokens < 0 || tokens > l.rate+1e-9 {
			t.Fatalf("tokens out of bounds: %v (rate=%v)", tokens, l.rate)
		}
		now = now.Add(100 * time.Millisecond)
	}
}

func TestAdmissionRateBoundedOverWindow(t *testing.T) {
	l := New(10)
	now := time.Now()
	window := 5 * time.Second
	step := 10 * time.Millisecond
	admitted := 0
	for elapsed := time.Duration(0); elapsed < window; elapsed += step {
		if l.lim.AllowN(now, 1) {
			admitted++
		}
		now = now.Add(step)
	}
	maxAllowed := int(10*window.Seconds()) + 10 // rate*T + burst
	if admitted > maxAllowed {
		t.Fatalf("admitted %d exceeds bound %d", admitted, maxAllowed)
	}
}

func TestSetRateDoesNotAlterCurrentTokens(t *testing.T) {
	l := New(4)
	now := time.Now()
	l.lim.AllowN(now, 1) // draw the bucket down from full so there's something to preserve
	before := l.lim.TokensAt(now)

	l.rate = 100
	l.lim.SetLimitAt(now, 100)
	l.lim.SetBurstAt(now, burstOf(100))

	after := l.lim.TokensAt(now)
	if diff := after - before; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("SetRate must not touch current tokens at the same instant, before=%v after=%v", before, after)
	}
	if l.Rate() != 100 {
		t.Fatalf("want rate 100 got %v", l.Rate())
	}
}

func TestAdmitSucceedsOnFullBucket(t *testing.T) {
	l := New(5)
	if !l.Admit() {
		t.Fatal("expected first Admit on a full bucket to succeed")
	}
}
