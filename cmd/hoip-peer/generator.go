package main

import (
	"math"
	"time"

	"github.com/kstaniek/hoip-link/internal/wire"
)

// sampleGenerator produces a deterministic synthetic waveform so a peer
// can be smoke-tested without a real haptic device attached. It is
// deliberately minimal: no parameter sweeps, no CSV logging, no loss
// injection — that belongs to an external experiment-driving harness.
type sampleGenerator struct {
	start time.Time
	role  wire.Role
}

func newSampleGenerator(role wire.Role) *sampleGenerator {
	return &sampleGenerator{start: time.Now(), role: role}
}

// Next returns the next synthetic sample appropriate for this
// generator's role.
func (g *sampleGenerator) Next() wire.Record {
	t := time.Since(g.start).Seconds()
	if g.role == wire.Master {
		return &wire.PoseVelocity{
			Position: [3]float32{float32(math.Sin(t)), float32(math.Cos(t)), 0},
			Velocity: [3]float32{float32(math.Cos(t)), float32(-math.Sin(t)), 0},
		}
	}
	return &wire.Force{Force: [3]float32{float32(math.Sin(2 * t)), 0, 0}}
}
