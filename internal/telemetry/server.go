package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kstaniek/hoip-link/internal/logging"
	"github.com/kstaniek/hoip-link/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("telemetry: listen")
	ErrAccept    = errors.New("telemetry: accept")
	ErrHandshake = errors.New("telemetry: handshake")
)

const (
	defaultHandshakeTimeout = 3 * time.Second
	defaultMaxObservers     = 32
)

// Server accepts TCP observers and fans snapshots out to them via Hub.
type Server struct {
	mu     sync.RWMutex
	addr   string
	Hub    *Hub
	codec  Codec
	logger *slog.Logger

	handshakeTimeout time.Duration
	maxObservers     int

	readyOnce sync.Once
	readyCh   chan struct{}
	listener  net.Listener
	wg        sync.WaitGroup
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// NewServer builds a Server; Hub defaults to a fresh telemetry.Hub if
// WithHub is not supplied.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		handshakeTimeout: defaultHandshakeTimeout,
		maxObservers:     defaultMaxObservers,
		readyCh:          make(chan struct{}),
		logger:           logging.L(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.Hub == nil {
		s.Hub = New()
	}
	if s.addr == "" {
		s.addr = ":0"
	}
	return s
}

func WithListenAddr(a string) ServerOption { return func(s *Server) { s.addr = a } }
func WithHub(h *Hub) ServerOption          { return func(s *Server) { s.Hub = h } }
func WithMaxObservers(n int) ServerOption {
	return func(s *Server) {
		if n >= 0 {
			s.maxObservers = n
		}
	}
}
func WithHandshakeTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.handshakeTimeout = d
		}
	}
}
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Addr returns the server's bound listen address.
func (s *Server) Addr() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.addr }

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.readyCh }

// Serve accepts observer connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	addr := s.addr
	s.mu.Unlock()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		wrap := fmt.Errorf("%w: %v", ErrListen, err)
		metrics.IncError(metrics.ErrTelemetryTx)
		return wrap
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.listener = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("telemetry_listen", "addr", s.Addr())

	go func() { <-ctx.Done(); _ = ln.Close() }()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			wrap := fmt.Errorf("%w: %v", ErrAccept, err)
			metrics.IncError(metrics.ErrTelemetryTx)
			return wrap
		}
		go s.handleObserver(ctx, conn)
	}
}

func (s *Server) handleObserver(ctx context.Context, conn net.Conn) {
	if s.maxObservers > 0 && s.Hub.Count() >= s.maxObservers {
		metrics.IncTelemetryRejected()
		_ = conn.Close()
		return
	}
	if err := Handshake(ctx, conn, s.handshakeTimeout); err != nil {
		metrics.IncError(metrics.ErrHandshake)
		s.logger.Warn("telemetry_handshake_failed", "remote", conn.RemoteAddr().String(), "error", err)
		_ = conn.Close()
		return
	}

	obs := s.Hub.NewObserver()
	connLogger := s.logger.With("observer_id", obs.ID.String(), "remote", conn.RemoteAddr().String())
	connLogger.Info("telemetry_observer_connected")

	s.wg.Add(1)
	defer s.wg.Done()
	defer func() {
		s.Hub.Remove(obs)
		_ = conn.Close()
		connLogger.Info("telemetry_observer_disconnected")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-obs.Closed:
			return
		case snap, ok := <-obs.Out:
			if !ok {
				return
			}
			if _, err := s.codec.EncodeTo(conn, snap); err != nil {
				metrics.IncError(metrics.ErrTelemetryTx)
				return
			}
		}
	}
}

// Shutdown closes the listener and waits for observer goroutines to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	for _, o := range s.Hub.Snapshot() {
		o.Close()
	}
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-ctx.Done():
		return fmt.Errorf("telemetry: shutdown timeout: %w", ctx.Err())
	case <-done:
		return nil
	}
}
