package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Record is a fixed-shape sample payload that can be concatenated into a
// Frame's payload and split back out on receipt.
type Record interface {
	Len() int
	Marshal() []byte
	Unmarshal([]byte) error
}

// PoseVelocity is the Master->Slave sample: position and velocity, three
// big-endian float32 components each (24 bytes total).
type PoseVelocity struct {
	Position [3]float32
	Velocity [3]float32
}

const poseVelocityLen = 6 * 4

func (PoseVelocity) Len() int { return poseVelocityLen }

func (p PoseVelocity) Marshal() []byte {
	buf := make([]byte, poseVelocityLen)
	putFloats(buf, p.Position[:])
	putFloats(buf[12:], p.Velocity[:])
	return buf
}

func (p *PoseVelocity) Unmarshal(bs []byte) error {
	if len(bs) < poseVelocityLen {
		return fmt.Errorf("wire: pose/velocity record: %w", ErrShortRead)
	}
	getFloats(bs, p.Position[:])
	getFloats(bs[12:], p.Velocity[:])
	return nil
}

// Force is the Slave->Master sample: three big-endian float32 force
// components (12 bytes total).
type Force struct {
	Force [3]float32
}

const forceLen = 3 * 4

func (Force) Len() int { return forceLen }

func (f Force) Marshal() []byte {
	buf := make([]byte, forceLen)
	putFloats(buf, f.Force[:])
	return buf
}

func (f *Force) Unmarshal(bs []byte) error {
	if len(bs) < forceLen {
		return fmt.Errorf("wire: force record: %w", ErrShortRead)
	}
	getFloats(bs, f.Force[:])
	return nil
}

func putFloats(dst []byte, vals []float32) {
	for i, v := range vals {
		binary.BigEndian.PutUint32(dst[i*4:i*4+4], math.Float32bits(v))
	}
}

func getFloats(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.BigEndian.Uint32(src[i*4 : i*4+4]))
	}
}

// SplitPoseVelocity splits a payload into num PoseVelocity records.
func SplitPoseVelocity(payload []byte, num int) ([]PoseVelocity, error) {
	out := make([]PoseVelocity, num)
	for i := range out {
		off := i * poseVelocityLen
		if off+poseVelocityLen > len(payload) {
			return nil, fmt.Errorf("wire: split pose/velocity: %w", ErrShortRead)
		}
		if err := out[i].Unmarshal(payload[off : off+poseVelocityLen]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SplitForce splits a payload into num Force records.
func SplitForce(payload []byte, num int) ([]Force, error) {
	out := make([]Force, num)
	for i := range out {
		off := i * forceLen
		if off+forceLen > len(payload) {
			return nil, fmt.Errorf("wire: split force: %w", ErrShortRead)
		}
		if err := out[i].Unmarshal(payload[off : off+forceLen]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ConcatRecords concatenates the marshaled bytes of a slice of records.
func ConcatRecords[R Record](records []R) []byte {
	if len(records) == 0 {
		return nil
	}
	out := make([]byte, 0, len(records)*records[0].Len())
	for _, r := range records {
		out = append(out, r.Marshal()...)
	}
	return out
}
