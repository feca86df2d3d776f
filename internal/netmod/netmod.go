// Package netmod implements the Network Module: the single-threaded,
// cooperative owner of a peer's UDP socket, pending-send buffer, k
// adaptation, rate limiting, and release queue.
package netmod

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/kstaniek/hoip-link/internal/analyzer"
	"github.com/kstaniek/hoip-link/internal/clock"
	"github.com/kstaniek/hoip-link/internal/congestion"
	"github.com/kstaniek/hoip-link/internal/kpolicy"
	"github.com/kstaniek/hoip-link/internal/logging"
	"github.com/kstaniek/hoip-link/internal/metrics"
	"github.com/kstaniek/hoip-link/internal/ratelimit"
	"github.com/kstaniek/hoip-link/internal/wire"
)

const (
	maxDatagram      = 2048
	releaseStepUs    = 1000
	defaultThreshold = 10
)

// Sample is a received record paired with the timestamp at which it
// should be released to the application.
type Sample struct {
	ReleaseTS uint64
	Record    wire.Record
}

// Module owns a connected UDP socket plus the send/receive state machine
// described by the wire protocol. All methods run to completion on the
// caller's goroutine; nothing inside blocks or suspends. A Module is not
// safe for concurrent use — exactly one goroutine may drive it, matching
// the protocol's single-threaded, cooperative scheduling model. The two
// peers of a link run independent Modules communicating only through the
// socket; there is no shared state between them.
type Module struct {
	conn *net.UDPConn
	role wire.Role

	detector congestion.Detector
	policy   kpolicy.Policy
	analyzer *analyzer.Analyzer
	limiter  *ratelimit.Limiter
	logger   *slog.Logger

	k       int8
	pending []wire.Record

	lastRott          uint32
	previousFrameTS   uint64
	haveReleasedFrame bool
	releaseQueue      []wire.Record
	releaseOffset     int

	recvBuf []byte
}

// Option configures optional Module construction parameters.
type Option func(*Module)

// WithLogger overrides the per-module logger (defaults to a role-tagged
// child of the package-global logger).
func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRecvBufferSize overrides the datagram read buffer size.
func WithRecvBufferSize(n int) Option {
	return func(m *Module) {
		if n > 0 {
			m.recvBuf = make([]byte, n)
		}
	}
}

// New binds a UDP socket at localAddr, connects it to remoteAddr, and
// returns a Module ready to send/receive as role, driven by detector and
// policy with analyzer smoothing weight w and send admission rate rateHz.
// k starts at kpolicy.KMax.
func New(localAddr, remoteAddr string, role wire.Role, detector congestion.Detector, policy kpolicy.Policy, w float64, rateHz float64, opts ...Option) (*Module, error) {
	laddr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve local %q: %v", ErrBind, localAddr, err)
	}
	raddr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve remote %q: %v", ErrConnect, remoteAddr, err)
	}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	m := &Module{
		conn:     conn,
		role:     role,
		detector: detector,
		policy:   policy,
		analyzer: analyzer.New(detector, w),
		limiter:  ratelimit.New(rateHz),
		logger:   logging.WithRole(roleString(role)),
		k:        kpolicy.KMax,
		recvBuf:  make([]byte, maxDatagram),
	}
	for _, o := range opts {
		o(m)
	}
	metrics.SetK(m.k)
	m.logger.Info("netmod_open", "local", conn.LocalAddr().String(), "remote", conn.RemoteAddr().String(), "rate_hz", rateHz)
	return m, nil
}

// Send appends sample to the pending-send buffer, lets the k-policy react
// to the analyzer's last classification, and — once the buffer holds
// exactly k samples and the rate limiter admits — frames and transmits
// them. Transmit failures are fatal and returned wrapped in
// ErrSocketFatal; the caller is expected to treat the Module as unusable
// after that and rebuild it.
func (m *Module) Send(sample wire.Record) error {
	if next, changed := m.policy.Select(m.analyzer.State(), m.k); changed {
		m.k = next
		metrics.SetK(m.k)
	}

	m.pending = append(m.pending, sample)

	if len(m.pending) < int(m.k) {
		return nil
	}
	if len(m.pending) > int(m.k) {
		drop := len(m.pending) - int(m.k)
		m.pending = append(m.pending[:0], m.pending[drop:]...)
	}

	if !m.limiter.Admit() {
		metrics.IncRateLimited()
		return nil
	}

	payload := make([]byte, 0, len(m.pending)*maxRecordLen(m.pending))
	for _, r := range m.pending {
		payload = append(payload, r.Marshal()...)
	}
	header := wire.Header{
		Role:          m.role,
		Scheme:        wire.Lossless,
		NumSamples:    uint8(m.k),
		DelayLocation: wire.InHeader,
		Threshold:     defaultThreshold,
		Rott:          m.lastRott,
		Timestamp:     clock.Now(),
	}
	m.pending = m.pending[:0]

	if _, err := m.conn.Write(wire.Encode(wire.Frame{Header: header, Payload: payload})); err != nil {
		metrics.IncError(metrics.ErrUDPWrite)
		return fmt.Errorf("%w: write: %v", ErrSocketFatal, err)
	}
	metrics.IncFramesTx()
	return nil
}

func maxRecordLen(records []wire.Record) int {
	if len(records) == 0 {
		return 0
	}
	return records[0].Len()
}

// K returns the current compression factor.
func (m *Module) K() int8 { return m.k }

// Rate returns the current send admission rate in Hz.
func (m *Module) Rate() float64 { return m.limiter.Rate() }

// SetRate updates the send admission rate without altering the limiter's
// current token count.
func (m *Module) SetRate(hz float64) { m.limiter.SetRate(hz) }

// LocalAddr returns the socket's bound local address.
func (m *Module) LocalAddr() string { return m.conn.LocalAddr().String() }

// LastRott returns the most recently measured rott, in microseconds.
func (m *Module) LastRott() uint32 { return m.lastRott }

// AnalyzerState returns the analyzer's current congestion classification,
// EWMA average rott, and deviation estimate.
func (m *Module) AnalyzerState() (state congestion.State, avgRott, stdRott float64) {
	return m.analyzer.State(), m.analyzer.AvgRott(), m.analyzer.StdRott()
}

// Close releases the underlying socket. The Module must not be used
// afterward.
func (m *Module) Close() error { return m.conn.Close() }

func roleString(r wire.Role) string {
	if r == wire.Slave {
		return "slave"
	}
	return "master"
}
