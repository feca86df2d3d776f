// Package analyzer maintains the exponentially-weighted rott average and
// deviation and drives the congestion detector on every received frame.
package analyzer

import (
	"github.com/kstaniek/hoip-link/internal/congestion"
	"github.com/kstaniek/hoip-link/internal/metrics"
)

// Analyzer tracks rott statistics and the detector's classification.
// Not safe for concurrent use.
type Analyzer struct {
	w        float64
	detector congestion.Detector
	avgRott  float64
	stdRott  float64
	prevRott uint32
	state    congestion.State
}

// New builds an Analyzer with smoothing weight w in [0,1], starting in
// the NotSure state (matches the reference: no decision until the first
// frame arrives).
func New(detector congestion.Detector, w float64) *Analyzer {
	return &Analyzer{w: w, detector: detector, state: congestion.NotSure}
}

// Update folds a newly observed rott into the running average/deviation,
// invokes the detector, and records the new state.
//
// The std_rott formula below is not textbook variance; it is the
// reference implementation's chosen approximation and is preserved
// verbatim because downstream k-policy thresholds were tuned against it.
func (a *Analyzer) Update(rott uint32) congestion.State {
	avgRott := (1-a.w)*a.avgRott + a.w*float64(rott)
	stdRott := (1 - 2*a.w) + 2*a.w*absFloat(float64(rott)-avgRott)

	a.state = a.detector.Classify(rott, avgRott, stdRott, a.prevRott)

	a.avgRott = avgRott
	a.stdRott = stdRott
	a.prevRott = rott

	metrics.SetRottStats(a.avgRott, a.stdRott)
	metrics.SetCongestionState(int(a.state))
	return a.state
}

// State returns the last classification without re-evaluating it.
func (a *Analyzer) State() congestion.State { return a.state }

// AvgRott returns the current exponentially-weighted average rott.
func (a *Analyzer) AvgRott() float64 { return a.avgRott }

// StdRott returns the current deviation estimate (reference formula, see
// Update's doc comment).
func (a *Analyzer) StdRott() float64 { return a.stdRott }

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
