package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/hoip-link/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"frames_tx", snap.FramesTx,
					"frames_rx", snap.FramesRx,
					"malformed", snap.MalformedFrames,
					"short_read", snap.ShortReadFrames,
					"rate_limited", snap.RateLimitedSends,
					"telemetry_observers", snap.TelemetryObservers,
					"telemetry_dropped", snap.TelemetryDropped,
					"telemetry_kicked", snap.TelemetryKicked,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
