package kpolicy

import "github.com/kstaniek/hoip-link/internal/congestion"

// SDSI ("symmetric decrease/increase"): steps k up by one under
// congestion and down by one when clear.
type SDSI struct{}

func (SDSI) Select(state congestion.State, currentK int8) (int8, bool) {
	switch state {
	case congestion.Congested:
		return clamp(currentK + 1), true
	case congestion.NotCongested:
		return clamp(currentK - 1), true
	default:
		return 0, false
	}
}
