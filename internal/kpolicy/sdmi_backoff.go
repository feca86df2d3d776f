package kpolicy

import "github.com/kstaniek/hoip-link/internal/congestion"

// SDMIBackoff is SDMI with an exponential back-off gate on how often a
// Congested signal is allowed to jump k back to KMax. counter counts the
// Congested ticks since the last granted jump, including the current one;
// a jump is granted once counter reaches the cool-off window
// min(maxBackoff, floor(1.5^n)),
// where n is zigZagCounter, the number of jumps already granted in the
// current congested run. Each granted jump resets counter and raises
// zigZagCounter, so the window only widens the longer congestion
// persists. A NotCongested tick clears every counter, relaxing the gate
// immediately.
//
// DESIGN.md's open-question notes record how this back-off gate was
// settled.
type SDMIBackoff struct {
	maxBackoff      int
	counter         int
	zigZagCounter   int
	congestedInARow int
}

// NewSDMIBackoff builds a back-off-gated SDMI policy; maxBackoff caps how
// many ticks the cool-off window can grow to.
func NewSDMIBackoff(maxBackoff int) *SDMIBackoff {
	return &SDMIBackoff{maxBackoff: maxBackoff}
}

// cooledOff reports whether enough ticks have accumulated since the last
// granted jump (or since construction) to grant another one.
func (p *SDMIBackoff) cooledOff() bool {
	limit := powFloor(1.5, p.zigZagCounter)
	if limit > p.maxBackoff {
		limit = p.maxBackoff
	}
	return p.counter >= limit
}

func (p *SDMIBackoff) Select(state congestion.State, currentK int8) (int8, bool) {
	switch state {
	case congestion.NotSure:
		return 0, false
	case congestion.Congested:
		p.counter++
		p.congestedInARow++
		if !p.cooledOff() {
			return 0, false
		}
		p.counter = 0
		p.congestedInARow = 0
		p.zigZagCounter++
		return KMax, true
	default: // NotCongested
		p.counter = 0
		p.congestedInARow = 0
		p.zigZagCounter = 0
		return clamp(currentK - 1), true
	}
}

// powFloor returns floor(base^exp) for non-negative integer exp using
// repeated multiplication, matching the reference's 1.5f64.powf(n).
func powFloor(base float64, exp int) int {
	v := 1.0
	for i := 0; i < exp; i++ {
		v *= base
	}
	return int(v)
}
