package kpolicy

import "github.com/kstaniek/hoip-link/internal/congestion"

// SDMI ("slow-down, multiplicative increase"): jumps straight to KMax
// under congestion, backs off by one when clear, and leaves k alone when
// unsure.
type SDMI struct{}

func (SDMI) Select(state congestion.State, currentK int8) (int8, bool) {
	switch state {
	case congestion.Congested:
		return KMax, true
	case congestion.NotCongested:
		return clamp(currentK - 1), true
	default:
		return 0, false
	}
}
