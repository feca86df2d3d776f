package kpolicy

import (
	"testing"

	"github.com/kstaniek/hoip-link/internal/congestion"
)

func TestSDMI(t *testing.T) {
	p := SDMI{}
	if k, ok := p.Select(congestion.Congested, 2); !ok || k != KMax {
		t.Fatalf("congested: want KMax, got %d ok=%v", k, ok)
	}
	if k, ok := p.Select(congestion.NotCongested, 2); !ok || k != 1 {
		t.Fatalf("not congested: want 1, got %d ok=%v", k, ok)
	}
	if k, ok := p.Select(congestion.NotCongested, KMin); !ok || k != KMin {
		t.Fatalf("floor at KMin: want %d, got %d", KMin, k)
	}
	if _, ok := p.Select(congestion.NotSure, 2); ok {
		t.Fatalf("not sure must not change k")
	}
}

func TestSDSI(t *testing.T) {
	p := SDSI{}
	if k, ok := p.Select(congestion.Congested, 2); !ok || k != 3 {
		t.Fatalf("congested: want 3, got %d ok=%v", k, ok)
	}
	if k, ok := p.Select(congestion.Congested, KMax); !ok || k != KMax {
		t.Fatalf("ceiling at KMax: want %d, got %d", KMax, k)
	}
	if k, ok := p.Select(congestion.NotCongested, 2); !ok || k != 1 {
		t.Fatalf("not congested: want 1, got %d ok=%v", k, ok)
	}
}

func TestSDMIBackoffSuppressesRepeatedJumps(t *testing.T) {
	p := NewSDMIBackoff(40)

	// floor(1.5^0) == floor(1.5^1) == 1, so the cool-off window hasn't
	// actually widened yet after just one jump: the first two congestion
	// signals both jump immediately.
	if k, ok := p.Select(congestion.Congested, 1); !ok || k != KMax {
		t.Fatalf("1st congestion signal should jump to KMax, got %d ok=%v", k, ok)
	}
	if k, ok := p.Select(congestion.Congested, KMax); !ok || k != KMax {
		t.Fatalf("2nd congestion signal (window still 1) should also jump, got %d ok=%v", k, ok)
	}

	// zig_zag_counter is now 2, widening the window to floor(1.5^2) == 2:
	// the very next congested tick is one short and must be suppressed.
	if _, ok := p.Select(congestion.Congested, KMax); ok {
		t.Fatalf("3rd congestion signal should be suppressed by the widened cool-off window")
	}
	// The following tick brings the accumulated counter up to the
	// now-required 2, so the jump resumes.
	if k, ok := p.Select(congestion.Congested, KMax); !ok || k != KMax {
		t.Fatalf("4th congestion signal should jump once the cool-off window elapses, got %d ok=%v", k, ok)
	}
}

func TestSDMIBackoffWindowContinuesToWiden(t *testing.T) {
	p := NewSDMIBackoff(40)
	// Replay ticks 1-4 from TestSDMIBackoffSuppressesRepeatedJumps to
	// reach zig_zag_counter=3 (window floor(1.5^3) == 3) with the
	// accumulated counter freshly reset by the 4th tick's jump.
	for i, wantOK := range []bool{true, true, false, true} {
		if _, ok := p.Select(congestion.Congested, KMax); ok != wantOK {
			t.Fatalf("setup tick %d: want ok=%v, got %v", i+1, wantOK, ok)
		}
	}
	// The window is now 3: the next two ticks are one and two short of
	// it and must be suppressed; the third reaches it and jumps.
	for i, wantOK := range []bool{false, false, true} {
		if _, ok := p.Select(congestion.Congested, KMax); ok != wantOK {
			t.Fatalf("tick %d: want ok=%v, got %v", i+5, wantOK, ok)
		}
	}
}

func TestSDMIBackoffResetsOnClearLink(t *testing.T) {
	p := NewSDMIBackoff(40)
	p.Select(congestion.Congested, 1)
	if k, ok := p.Select(congestion.NotCongested, KMax); !ok || k != KMax-1 {
		t.Fatalf("want decrement to %d, got %d ok=%v", KMax-1, k, ok)
	}
	if p.zigZagCounter != 0 {
		t.Fatalf("zig-zag counter should reset on clear link, got %d", p.zigZagCounter)
	}
}

func TestKBoundsStayWithinRange(t *testing.T) {
	policies := []Policy{SDMI{}, SDSI{}, NewSDMIBackoff(40)}
	for _, p := range policies {
		k := int8(KMax)
		for i := 0; i < 100; i++ {
			state := congestion.State(i % 3)
			if next, ok := p.Select(state, k); ok {
				k = next
			}
			if k < KMin || k > KMax {
				t.Fatalf("%T: k out of bounds: %d", p, k)
			}
		}
	}
}
