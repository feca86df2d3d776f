package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// snapshotWireLen is the fixed encoded size of a Snapshot: 8(ts) + 1(k) +
// 4(rott) + 8(avgRott) + 8(stdRott) + 1(state) + 8(framesTx) + 8(framesRx).
const snapshotWireLen = 8 + 1 + 4 + 8 + 8 + 1 + 8 + 8

// ErrTruncatedSnapshot is returned when the underlying reader ends
// mid-record.
var ErrTruncatedSnapshot = errors.New("telemetry: truncated snapshot")

// Codec encodes/decodes Snapshot records. Stateless and safe for
// concurrent use.
type Codec struct{}

// Encode packs a single snapshot into a fresh byte slice.
func (Codec) Encode(s Snapshot) []byte {
	buf := make([]byte, snapshotWireLen)
	encodeInto(buf, s)
	return buf
}

// EncodeTo writes the wire representation of s to w and returns the
// number of bytes written.
func (Codec) EncodeTo(w io.Writer, s Snapshot) (int, error) {
	buf := make([]byte, snapshotWireLen)
	encodeInto(buf, s)
	n, err := w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("telemetry encode: %w", err)
	}
	return n, nil
}

func encodeInto(buf []byte, s Snapshot) {
	binary.BigEndian.PutUint64(buf[0:8], s.Timestamp)
	buf[8] = byte(s.K)
	binary.BigEndian.PutUint32(buf[9:13], s.Rott)
	binary.BigEndian.PutUint64(buf[13:21], math.Float64bits(s.AvgRott))
	binary.BigEndian.PutUint64(buf[21:29], math.Float64bits(s.StdRott))
	buf[29] = s.CongestionState
	binary.BigEndian.PutUint64(buf[30:38], s.FramesTx)
	binary.BigEndian.PutUint64(buf[38:46], s.FramesRx)
}

// Decode reads exactly one snapshot record from r.
func (Codec) Decode(r io.Reader) (Snapshot, error) {
	buf := make([]byte, snapshotWireLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Snapshot{}, fmt.Errorf("telemetry decode: %w", ErrTruncatedSnapshot)
		}
		return Snapshot{}, err
	}
	var s Snapshot
	s.Timestamp = binary.BigEndian.Uint64(buf[0:8])
	s.K = int8(buf[8])
	s.Rott = binary.BigEndian.Uint32(buf[9:13])
	s.AvgRott = math.Float64frombits(binary.BigEndian.Uint64(buf[13:21]))
	s.StdRott = math.Float64frombits(binary.BigEndian.Uint64(buf[21:29]))
	s.CongestionState = buf[29]
	s.FramesTx = binary.BigEndian.Uint64(buf[30:38])
	s.FramesRx = binary.BigEndian.Uint64(buf[38:46])
	return s, nil
}
