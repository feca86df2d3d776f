package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kstaniek/hoip-link/internal/congestion"
	"github.com/kstaniek/hoip-link/internal/kpolicy"
	"github.com/kstaniek/hoip-link/internal/netmod"
	"github.com/kstaniek/hoip-link/internal/wire"
)

func buildDetector(name string) (congestion.Detector, error) {
	switch name {
	case "zigzag":
		return congestion.ZigZag{}, nil
	case "trend":
		return congestion.NewTrend(), nil
	case "window":
		return congestion.NewWindowDefault(), nil
	case "biaz":
		return congestion.NewBiaz()
	default:
		return nil, fmt.Errorf("unknown detector %q", name)
	}
}

func buildPolicy(name string, maxBackoff int) (kpolicy.Policy, error) {
	switch name {
	case "sdmi":
		return kpolicy.SDMI{}, nil
	case "sdsi":
		return kpolicy.SDSI{}, nil
	case "sdmi-backoff":
		return kpolicy.NewSDMIBackoff(maxBackoff), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

func buildRole(name string) wire.Role {
	if name == "slave" {
		return wire.Slave
	}
	return wire.Master
}

func openModule(cfg *appConfig) (*netmod.Module, error) {
	detector, err := buildDetector(cfg.detector)
	if err != nil {
		return nil, err
	}
	policy, err := buildPolicy(cfg.policy, cfg.maxBackoff)
	if err != nil {
		return nil, err
	}
	return netmod.New(cfg.listenAddr, cfg.remoteAddr, buildRole(cfg.role), detector, policy, cfg.smoothing, cfg.rateHz)
}

// reconnector rebuilds the Network Module's UDP socket after a fatal
// error, waiting with a bounded exponential back-off between attempts —
// this replaces the hand-rolled doubling loop the teacher's serial RX
// path used, with the back-off library the wider pack already depends
// on.
type reconnector struct {
	cfg    *appConfig
	logger *slog.Logger
	bo     backoff.BackOff
}

func newReconnector(cfg *appConfig, logger *slog.Logger) *reconnector {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.reconnectMin
	eb.MaxInterval = cfg.reconnectMax
	eb.MaxElapsedTime = 0 // retry indefinitely; the caller controls lifetime via ctx
	return &reconnector{cfg: cfg, logger: logger, bo: eb}
}

// Reopen blocks (honoring ctx) until a new Module is built, retrying
// with exponential back-off on failure.
func (r *reconnector) Reopen(ctx context.Context) (*netmod.Module, error) {
	r.bo.Reset()
	attempt := 0
	for {
		m, err := openModule(r.cfg)
		if err == nil {
			return m, nil
		}
		attempt++
		wait := r.bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, fmt.Errorf("reconnect: giving up after %d attempts: %w", attempt, err)
		}
		r.logger.Warn("netmod_reopen_failed", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
