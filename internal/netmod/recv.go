package netmod

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/kstaniek/hoip-link/internal/clock"
	"github.com/kstaniek/hoip-link/internal/metrics"
	"github.com/kstaniek/hoip-link/internal/wire"
)

// TryRecv drains the socket non-blockingly (keeping only the newest
// datagram of the drain; anything older in the same call is discarded),
// folds a freshly decoded frame's rott into the analyzer, and releases at
// most one already-queued sample per call at a notional 1ms intra-batch
// spacing. ok is false when nothing was released this call. A non-nil
// error (always wrapping ErrSocketFatal) means the socket itself failed
// and the Module should be rebuilt by the caller.
func (m *Module) TryRecv() (Sample, bool, error) {
	datagram, err := m.drainNewest()
	if err != nil {
		return Sample{}, false, err
	}

	if datagram != nil {
		m.ingestFrame(datagram)
	}

	if len(m.releaseQueue) == 0 {
		return Sample{}, false, nil
	}
	return m.releaseOne(), true, nil
}

// drainNewest reads every datagram currently available without blocking
// and returns only the last one read (or nil if none arrived).
func (m *Module) drainNewest() ([]byte, error) {
	var newest []byte
	for {
		if err := m.conn.SetReadDeadline(time.Now()); err != nil {
			return newest, fmt.Errorf("%w: set deadline: %v", ErrSocketFatal, err)
		}
		n, err := m.conn.Read(m.recvBuf)
		if err != nil {
			if isWouldBlock(err) {
				break
			}
			metrics.IncError(metrics.ErrUDPRead)
			return newest, fmt.Errorf("%w: read: %v", ErrSocketFatal, err)
		}
		newest = append(newest[:0:0], m.recvBuf[:n]...)
	}
	return newest, nil
}

func isWouldBlock(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ingestFrame decodes datagram, updates rott bookkeeping, and — if it
// carries a strictly newer sender timestamp than the last frame that
// produced a release batch — replaces the release queue with its
// samples. Malformed or short frames are dropped; the existing release
// queue (if any) is preserved exactly as the failure semantics require.
func (m *Module) ingestFrame(datagram []byte) {
	frame, err := wire.Decode(datagram)
	if err != nil {
		if errors.Is(err, wire.ErrMalformedFrame) {
			metrics.IncMalformed()
		} else if errors.Is(err, wire.ErrShortRead) {
			metrics.IncShortRead()
		}
		m.logger.Warn("frame_decode_dropped", "error", err)
		return
	}
	metrics.IncFramesRx()

	now := clock.Now()
	var rott uint32
	if now > frame.Timestamp {
		rott = uint32(now - frame.Timestamp)
	}
	m.lastRott = rott
	metrics.SetRott(rott)

	if m.haveReleasedFrame && frame.Timestamp <= m.previousFrameTS {
		return
	}

	records, err := splitRecords(frame)
	if err != nil {
		if errors.Is(err, wire.ErrShortRead) {
			metrics.IncShortRead()
		}
		m.logger.Warn("frame_payload_dropped", "error", err)
		return
	}

	m.releaseQueue = records
	m.releaseOffset = int(frame.NumSamples)
	m.previousFrameTS = frame.Timestamp
	m.haveReleasedFrame = true

	effectiveRott := frame.Rott + uint32(m.releaseOffset-1)*releaseStepUs
	m.analyzer.Update(effectiveRott)
}

// splitRecords unframes a payload into records of the shape implied by
// the sender's role (Master sends PoseVelocity, Slave sends Force).
func splitRecords(frame wire.Frame) ([]wire.Record, error) {
	switch frame.Role {
	case wire.Master:
		pvs, err := wire.SplitPoseVelocity(frame.Payload, int(frame.NumSamples))
		if err != nil {
			return nil, err
		}
		out := make([]wire.Record, len(pvs))
		for i := range pvs {
			out[i] = &pvs[i]
		}
		return out, nil
	default: // wire.Slave
		fs, err := wire.SplitForce(frame.Payload, int(frame.NumSamples))
		if err != nil {
			return nil, err
		}
		out := make([]wire.Record, len(fs))
		for i := range fs {
			out[i] = &fs[i]
		}
		return out, nil
	}
}

// releaseOne pops the tail of the release queue, which yields samples in
// reverse of their encoded order, stamped at 1ms notional intervals
// counting down from the frame's sample count.
func (m *Module) releaseOne() Sample {
	m.releaseOffset--
	rec := m.releaseQueue[len(m.releaseQueue)-1]
	m.releaseQueue = m.releaseQueue[:len(m.releaseQueue)-1]
	ts := m.previousFrameTS + uint64(m.releaseOffset)*releaseStepUs
	return Sample{ReleaseTS: ts, Record: rec}
}
