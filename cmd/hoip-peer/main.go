package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kstaniek/hoip-link/internal/clock"
	"github.com/kstaniek/hoip-link/internal/metrics"
	"github.com/kstaniek/hoip-link/internal/netmod"
	"github.com/kstaniek/hoip-link/internal/telemetry"
)

// Set via -ldflags at build time; defaults make an unreleased binary
// identifiable in logs and /metrics build_info.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const snapshotInterval = 50 * time.Millisecond

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("hoip-peer %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	recon := newReconnector(cfg, l)
	mod, err := openModule(cfg)
	if err != nil {
		l.Error("netmod_open_failed", "error", err)
		return
	}

	var (
		hub  *telemetry.Hub
		pub  *telemetry.Publisher
		tsrv *telemetry.Server
	)
	if cfg.telemetryAddr != "" {
		policy := telemetry.PolicyDrop
		if cfg.telemetryPolicy == "kick" {
			policy = telemetry.PolicyKick
		}
		hub = telemetry.New()
		hub.Policy = policy
		tsrv = telemetry.NewServer(
			telemetry.WithListenAddr(cfg.telemetryAddr),
			telemetry.WithHub(hub),
			telemetry.WithMaxObservers(cfg.maxObservers),
			telemetry.WithHandshakeTimeout(cfg.handshakeTO),
			telemetry.WithLogger(l),
		)
		pub = telemetry.NewPublisher(ctx, hub, 256)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tsrv.Serve(ctx); err != nil {
				l.Error("telemetry_server_error", "error", err)
			}
		}()
	}

	metrics.SetReadinessFunc(func() bool {
		if tsrv == nil {
			return ctx.Err() == nil
		}
		select {
		case <-tsrv.Ready():
			return ctx.Err() == nil
		default:
			return false
		}
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metricsSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	wg.Add(1)
	go func() {
		defer wg.Done()
		runLoop(ctx, l, cfg, mod, recon, pub)
	}()

	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	if tsrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = tsrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	if pub != nil {
		pub.Close()
	}
	wg.Wait()
}

// runLoop drives the Network Module's cooperative send/receive cycle: on
// every tick it offers the generator's next sample to Send, then polls
// TryRecv once. Both calls are non-blocking by construction, so a single
// ticker-paced goroutine is enough — this mirrors the protocol's
// single-threaded scheduling model rather than fighting it with extra
// goroutines per direction.
func runLoop(ctx context.Context, l *slog.Logger, cfg *appConfig, mod *netmod.Module, recon *reconnector, pub *telemetry.Publisher) {
	gen := newSampleGenerator(buildRole(cfg.role))
	ticker := time.NewTicker(time.Second / time.Duration(cfg.rateHz))
	defer ticker.Stop()
	snapTicker := time.NewTicker(snapshotInterval)
	defer snapTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			mod.Close()
			return
		case <-snapTicker.C:
			if pub != nil {
				publishSnapshot(mod, pub)
			}
		case <-ticker.C:
			if err := mod.Send(gen.Next()); err != nil {
				l.Warn("netmod_send_failed", "error", err)
				mod = reopen(ctx, l, recon, mod)
				continue
			}
			sample, ok, err := mod.TryRecv()
			if err != nil {
				l.Warn("netmod_recv_failed", "error", err)
				mod = reopen(ctx, l, recon, mod)
				continue
			}
			if ok {
				_ = sample // application consumption point: hand sample.Record to the haptic device driver.
			}
		}
	}
}

func publishSnapshot(mod *netmod.Module, pub *telemetry.Publisher) {
	state, avg, std := mod.AnalyzerState()
	snap := metrics.Snap()
	pub.Publish(telemetry.Snapshot{
		Timestamp:       clock.Now(),
		K:               mod.K(),
		Rott:            mod.LastRott(),
		AvgRott:         avg,
		StdRott:         std,
		CongestionState: uint8(state),
		FramesTx:        snap.FramesTx,
		FramesRx:        snap.FramesRx,
	})
}

func reopen(ctx context.Context, l *slog.Logger, recon *reconnector, old *netmod.Module) *netmod.Module {
	old.Close()
	next, err := recon.Reopen(ctx)
	if err != nil {
		l.Error("netmod_reopen_abandoned", "error", err)
		return old
	}
	return next
}
