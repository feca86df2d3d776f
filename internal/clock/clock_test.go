package clock

import "testing"

func TestNowMonotonicNonDecreasing(t *testing.T) {
	a := Now()
	b := Now()
	if b < a {
		t.Fatalf("clock went backwards: a=%d b=%d", a, b)
	}
}

func TestNowNeverNegative(t *testing.T) {
	if Now() > 1<<62 {
		t.Fatalf("Now() looks like an underflowed value: %d", Now())
	}
}
