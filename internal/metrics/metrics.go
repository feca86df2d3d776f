package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/hoip-link/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters and gauges
var (
	FramesTx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_tx_total",
		Help: "Total frames transmitted by the network module.",
	})
	FramesRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frames_rx_total",
		Help: "Total frames successfully decoded by the network module.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total datagrams dropped for an invalid header bit combination.",
	})
	ShortReadFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "short_read_frames_total",
		Help: "Total datagrams dropped because the payload was shorter than declared.",
	})
	RateLimitedSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_limited_sends_total",
		Help: "Total send attempts rejected by the admission rate limiter.",
	})
	CurrentK = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "k_current",
		Help: "Current compression factor k in [1,4].",
	})
	RottMicros = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rott_micros",
		Help: "Most recently measured round/one-way trip time, in microseconds.",
	})
	AvgRottMicros = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "avg_rott_micros",
		Help: "Exponentially-weighted average rott, in microseconds.",
	})
	StdRottMicros = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "std_rott_micros",
		Help: "Analyzer deviation estimate (non-standard formula, see analyzer package).",
	})
	CongestionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "congestion_state",
		Help: "Last congestion classification (0=NotSure 1=Congested 2=NotCongested).",
	})
	TelemetryObservers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_observers",
		Help: "Current number of connected telemetry observers.",
	})
	TelemetryDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_dropped_total",
		Help: "Total telemetry snapshots dropped due to a slow observer.",
	})
	TelemetryKicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_kicked_total",
		Help: "Total observers disconnected by the kick backpressure policy.",
	})
	TelemetryRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_rejected_total",
		Help: "Total observer connection attempts rejected (e.g., max-observers, bad handshake).",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrUDPRead     = "udp_read"
	ErrUDPWrite    = "udp_write"
	ErrSocketFatal = "socket_fatal"
	ErrTelemetryTx = "telemetry_tx"
	ErrHandshake   = "handshake"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap in-process logging (avoid scraping in-process).
var (
	localFramesTx        uint64
	localFramesRx        uint64
	localMalformed       uint64
	localShortRead       uint64
	localRateLimited     uint64
	localErrors          uint64
	localTelemetryObs    uint64
	localTelemetryDrop   uint64
	localTelemetryKick   uint64
	localTelemetryReject uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	FramesTx           uint64
	FramesRx           uint64
	MalformedFrames    uint64
	ShortReadFrames    uint64
	RateLimitedSends   uint64
	Errors             uint64
	TelemetryObservers uint64
	TelemetryDropped   uint64
	TelemetryKicked    uint64
	TelemetryRejected  uint64
}

func Snap() Snapshot {
	return Snapshot{
		FramesTx:           atomic.LoadUint64(&localFramesTx),
		FramesRx:           atomic.LoadUint64(&localFramesRx),
		MalformedFrames:    atomic.LoadUint64(&localMalformed),
		ShortReadFrames:    atomic.LoadUint64(&localShortRead),
		RateLimitedSends:   atomic.LoadUint64(&localRateLimited),
		Errors:             atomic.LoadUint64(&localErrors),
		TelemetryObservers: atomic.LoadUint64(&localTelemetryObs),
		TelemetryDropped:   atomic.LoadUint64(&localTelemetryDrop),
		TelemetryKicked:    atomic.LoadUint64(&localTelemetryKick),
		TelemetryRejected:  atomic.LoadUint64(&localTelemetryReject),
	}
}

func IncFramesTx() {
	FramesTx.Inc()
	atomic.AddUint64(&localFramesTx, 1)
}

func IncFramesRx() {
	FramesRx.Inc()
	atomic.AddUint64(&localFramesRx, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncShortRead() {
	ShortReadFrames.Inc()
	atomic.AddUint64(&localShortRead, 1)
}

func IncRateLimited() {
	RateLimitedSends.Inc()
	atomic.AddUint64(&localRateLimited, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// SetK records the current compression factor.
func SetK(k int8) { CurrentK.Set(float64(k)) }

// SetRott records the most recently measured rott.
func SetRott(rott uint32) { RottMicros.Set(float64(rott)) }

// SetRottStats records the analyzer's running average and deviation.
func SetRottStats(avg, std float64) {
	AvgRottMicros.Set(avg)
	StdRottMicros.Set(std)
}

// SetCongestionState records the detector's last classification.
func SetCongestionState(state int) { CongestionState.Set(float64(state)) }

func SetTelemetryObservers(n int) {
	TelemetryObservers.Set(float64(n))
	atomic.StoreUint64(&localTelemetryObs, uint64(n))
}

func IncTelemetryDropped() {
	TelemetryDropped.Inc()
	atomic.AddUint64(&localTelemetryDrop, 1)
}

func IncTelemetryKicked() {
	TelemetryKicked.Inc()
	atomic.AddUint64(&localTelemetryKick, 1)
}

func IncTelemetryRejected() {
	TelemetryRejected.Inc()
	atomic.AddUint64(&localTelemetryReject, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{ErrUDPRead, ErrUDPWrite, ErrSocketFatal, ErrTelemetryTx, ErrHandshake} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers the function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function, if any.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
