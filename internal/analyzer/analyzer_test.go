package analyzer

import (
	"testing"

	"github.com/kstaniek/hoip-link/internal/congestion"
)

// stubDetector lets tests drive the Analyzer's state transitions without
// depending on any particular detector's threshold behavior.
type stubDetector struct {
	next congestion.State
	got  struct {
		rott, avgRott, stdRott float64
		prevRott               uint32
		called                 bool
	}
}

func (s *stubDetector) Classify(rott uint32, avgRott, stdRott float64, prevRott uint32) congestion.State {
	s.got.rott = float64(rott)
	s.got.avgRott = avgRott
	s.got.stdRott = stdRott
	s.got.prevRott = prevRott
	s.got.called = true
	return s.next
}

func TestNewStartsNotSure(t *testing.T) {
	a := New(&stubDetector{}, 0.1)
	if a.State() != congestion.NotSure {
		t.Fatalf("want NotSure at construction, got %v", a.State())
	}
}

func TestUpdateComputesEWMAAverage(t *testing.T) {
	d := &stubDetector{next: congestion.NotSure}
	a := New(d, 0.5)
	a.Update(100)
	if a.AvgRott() != 50 {
		t.Fatalf("want avgRott=50 after first sample with w=0.5, got %v", a.AvgRott())
	}
	a.Update(100)
	if a.AvgRott() != 75 {
		t.Fatalf("want avgRott=75 after second sample, got %v", a.AvgRott())
	}
}

func TestUpdateStdRottFormulaIsNonStandard(t *testing.T) {
	d := &stubDetector{next: congestion.NotSure}
	a := New(d, 0.25)
	a.Update(40)
	// avgRott = 0.75*0 + 0.25*40 = 10
	// stdRott = (1-0.5) + 0.5*|40-10| = 0.5 + 15 = 15.5
	if a.AvgRott() != 10 {
		t.Fatalf("want avgRott=10, got %v", a.AvgRott())
	}
	if a.StdRott() != 15.5 {
		t.Fatalf("want stdRott=15.5, got %v", a.StdRott())
	}
}

func TestUpdatePassesPrevRottToDetector(t *testing.T) {
	d := &stubDetector{next: congestion.Congested}
	a := New(d, 0.5)
	a.Update(200)
	if !d.got.called {
		t.Fatalf("detector was not invoked")
	}
	if d.got.prevRott != 0 {
		t.Fatalf("want prevRott=0 on first update, got %d", d.got.prevRott)
	}
	d.next = congestion.NotCongested
	a.Update(50)
	if d.got.prevRott != 200 {
		t.Fatalf("want prevRott=200 on second update, got %d", d.got.prevRott)
	}
}

func TestUpdateRecordsDetectorState(t *testing.T) {
	d := &stubDetector{next: congestion.Congested}
	a := New(d, 0.5)
	got := a.Update(100)
	if got != congestion.Congested {
		t.Fatalf("Update should return the new state, got %v", got)
	}
	if a.State() != congestion.Congested {
		t.Fatalf("State() should reflect the last Update, got %v", a.State())
	}
}
