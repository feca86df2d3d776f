package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	role            string
	listenAddr      string
	remoteAddr      string
	detector        string
	policy          string
	smoothing       float64
	maxBackoff      int
	rateHz          float64
	logFormat       string
	logLevel        string
	metricsAddr     string
	telemetryAddr   string
	telemetryPolicy string
	maxObservers    int
	handshakeTO     time.Duration
	reconnectMin    time.Duration
	reconnectMax    time.Duration
	logMetricsEvery time.Duration
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	role := flag.String("role", "master", "Peer role: master|slave")
	listen := flag.String("listen", "127.0.0.1:13370", "Local UDP bind address")
	remote := flag.String("remote", "127.0.0.1:13380", "Remote peer UDP address")
	detector := flag.String("detector", "zigzag", "Congestion detector: zigzag|trend|window|biaz")
	policy := flag.String("policy", "sdmi", "k-policy: sdmi|sdsi|sdmi-backoff")
	smoothing := flag.Float64("w", 0.1, "Analyzer EWMA smoothing weight in [0,1]")
	maxBackoff := flag.Int("cooloff", 40, "Max back-off ticks for sdmi-backoff policy")
	rateHz := flag.Float64("rate", 1000, "Send admission rate (Hz)")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	telemetryAddr := flag.String("telemetry-addr", "", "Telemetry TCP listen address; empty disables")
	telemetryPolicy := flag.String("telemetry-policy", "drop", "Telemetry backpressure policy: drop|kick")
	maxObservers := flag.Int("max-observers", 32, "Maximum simultaneous telemetry observers (0 = unlimited)")
	handshakeTO := flag.Duration("handshake-timeout", 3*time.Second, "Telemetry observer handshake timeout")
	reconnectMin := flag.Duration("reconnect-backoff-min", 100*time.Millisecond, "Minimum socket reconnect back-off")
	reconnectMax := flag.Duration("reconnect-backoff-max", 10*time.Second, "Maximum socket reconnect back-off")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.role = *role
	cfg.listenAddr = *listen
	cfg.remoteAddr = *remote
	cfg.detector = *detector
	cfg.policy = *policy
	cfg.smoothing = *smoothing
	cfg.maxBackoff = *maxBackoff
	cfg.rateHz = *rateHz
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.telemetryAddr = *telemetryAddr
	cfg.telemetryPolicy = *telemetryPolicy
	cfg.maxObservers = *maxObservers
	cfg.handshakeTO = *handshakeTO
	cfg.reconnectMin = *reconnectMin
	cfg.reconnectMax = *reconnectMax
	cfg.logMetricsEvery = *logMetricsEvery

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not open sockets — only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.role {
	case "master", "slave":
	default:
		return fmt.Errorf("invalid role: %s", c.role)
	}
	switch c.detector {
	case "zigzag", "trend", "window", "biaz":
	default:
		return fmt.Errorf("invalid detector: %s", c.detector)
	}
	switch c.policy {
	case "sdmi", "sdsi", "sdmi-backoff":
	default:
		return fmt.Errorf("invalid policy: %s", c.policy)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.telemetryPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid telemetry-policy: %s", c.telemetryPolicy)
	}
	if c.smoothing < 0 || c.smoothing > 1 {
		return fmt.Errorf("w must be in [0,1] (got %v)", c.smoothing)
	}
	if c.rateHz <= 0 {
		return fmt.Errorf("rate must be > 0 (got %v)", c.rateHz)
	}
	if c.maxBackoff <= 0 {
		return fmt.Errorf("cooloff must be > 0 (got %d)", c.maxBackoff)
	}
	if c.maxObservers < 0 {
		return fmt.Errorf("max-observers must be >= 0")
	}
	if c.handshakeTO <= 0 {
		return fmt.Errorf("handshake-timeout must be > 0")
	}
	if c.reconnectMin <= 0 || c.reconnectMax <= 0 || c.reconnectMin > c.reconnectMax {
		return fmt.Errorf("reconnect-backoff-min must be > 0 and <= reconnect-backoff-max")
	}
	return nil
}

// applyEnvOverrides maps HOIP_* environment variables to config fields
// unless a corresponding flag was explicitly set (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["role"]; !ok {
		if v, ok := get("HOIP_ROLE"); ok && v != "" {
			c.role = v
		}
	}
	if _, ok := set["listen"]; !ok {
		if v, ok := get("HOIP_LISTEN"); ok && v != "" {
			c.listenAddr = v
		}
	}
	if _, ok := set["remote"]; !ok {
		if v, ok := get("HOIP_REMOTE"); ok && v != "" {
			c.remoteAddr = v
		}
	}
	if _, ok := set["detector"]; !ok {
		if v, ok := get("HOIP_DETECTOR"); ok && v != "" {
			c.detector = v
		}
	}
	if _, ok := set["policy"]; !ok {
		if v, ok := get("HOIP_POLICY"); ok && v != "" {
			c.policy = v
		}
	}
	if _, ok := set["w"]; !ok {
		if v, ok := get("HOIP_W"); ok && v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.smoothing = f
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid HOIP_W: %w", err)
			}
		}
	}
	if _, ok := set["cooloff"]; !ok {
		if v, ok := get("HOIP_COOLOFF"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.maxBackoff = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HOIP_COOLOFF: %w", err)
			}
		}
	}
	if _, ok := set["rate"]; !ok {
		if v, ok := get("HOIP_RATE"); ok && v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				c.rateHz = f
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HOIP_RATE: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("HOIP_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("HOIP_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("HOIP_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["telemetry-addr"]; !ok {
		if v, ok := get("HOIP_TELEMETRY"); ok {
			c.telemetryAddr = v
		}
	}
	if _, ok := set["telemetry-policy"]; !ok {
		if v, ok := get("HOIP_TELEMETRY_POLICY"); ok && v != "" {
			c.telemetryPolicy = v
		}
	}
	if _, ok := set["max-observers"]; !ok {
		if v, ok := get("HOIP_MAX_OBSERVERS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.maxObservers = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HOIP_MAX_OBSERVERS: %w", err)
			}
		}
	}
	if _, ok := set["handshake-timeout"]; !ok {
		if v, ok := get("HOIP_HANDSHAKE_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.handshakeTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HOIP_HANDSHAKE_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["reconnect-backoff-min"]; !ok {
		if v, ok := get("HOIP_RECONNECT_BACKOFF_MIN"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.reconnectMin = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HOIP_RECONNECT_BACKOFF_MIN: %w", err)
			}
		}
	}
	if _, ok := set["reconnect-backoff-max"]; !ok {
		if v, ok := get("HOIP_RECONNECT_BACKOFF_MAX"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.reconnectMax = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HOIP_RECONNECT_BACKOFF_MAX: %w", err)
			}
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("HOIP_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid HOIP_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}
