// Package kpolicy implements the pluggable policies that map a congestion
// classification plus the current compression factor k to the next k.
package kpolicy

import "github.com/kstaniek/hoip-link/internal/congestion"

const (
	// KMin is the smallest allowed compression factor.
	KMin = 1
	// KMax is the largest allowed compression factor.
	KMax = 4
)

// Policy selects the next k given the latest congestion state. Returning
// false means "no change".
type Policy interface {
	Select(state congestion.State, currentK int8) (next int8, changed bool)
}

func clamp(k int8) int8 {
	if k < KMin {
		return KMin
	}
	if k > KMax {
		return KMax
	}
	return k
}
