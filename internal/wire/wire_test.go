package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderRoundTripAllCombinations(t *testing.T) {
	roles := []Role{Master, Slave}
	schemes := []SamplingScheme{Lossless, Weber, LevelCrossing}
	delays := []DelayLocation{InHeader, InPayload}

	for _, role := range roles {
		for _, scheme := range schemes {
			for num := uint8(1); num <= 4; num++ {
				for _, delay := range delays {
					h := Header{
						Role:          role,
						Scheme:        scheme,
						NumSamples:    num,
						DelayLocation: delay,
						Threshold:     10,
						Rott:          12345,
						Timestamp:     0xDEADBEEF,
					}
					buf := make([]byte, 14)
					EncodeHeaderInto(buf, h)
					got, err := DecodeHeader(buf)
					if err != nil {
						t.Fatalf("role=%v scheme=%v num=%d delay=%v: decode error: %v", role, scheme, num, delay, err)
					}
					if got != h {
						t.Fatalf("round trip mismatch: want %+v got %+v", h, got)
					}
				}
			}
		}
	}
}

func TestFrameRoundTripWithPayload(t *testing.T) {
	f := Frame{
		Header: Header{
			Role:          Slave,
			Scheme:        Lossless,
			NumSamples:    3,
			DelayLocation: InHeader,
			Threshold:     7,
			Rott:          42,
			Timestamp:     99,
		},
		Payload: []byte{1, 2, 3, 4, 5, 6},
	}
	encoded := Encode(f)
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Header != f.Header {
		t.Fatalf("header mismatch: want %+v got %+v", f.Header, got.Header)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: want %v got %v", f.Payload, got.Payload)
	}
}

func TestRottSaturatesAt24Bits(t *testing.T) {
	h := Header{NumSamples: 1, Rott: 1<<32 - 1}
	buf := make([]byte, 14)
	EncodeHeaderInto(buf, h)
	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Rott != 0xFFFFFF {
		t.Fatalf("expected rott to saturate at 0xFFFFFF, got 0x%X", got.Rott)
	}
}

func TestRottSaturationScenario(t *testing.T) {
	h := Header{NumSamples: 1, Rott: 0x1FFFFFF}
	buf := make([]byte, 14)
	EncodeHeaderInto(buf, h)
	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Rott != 0x00FFFFFF {
		t.Fatalf("want 0x00FFFFFF got 0x%X", got.Rott)
	}
}

func TestHeaderByte0ZeroScenario(t *testing.T) {
	h := Header{Role: Master, Scheme: Lossless, NumSamples: 1, DelayLocation: InHeader}
	buf := make([]byte, 14)
	EncodeHeaderInto(buf, h)
	want := make([]byte, 14)
	if !bytes.Equal(buf, want) {
		t.Fatalf("expected 14 zero bytes, got % X", buf)
	}
}

func TestHeaderByte0SlaveWeberFourInPayloadScenario(t *testing.T) {
	h := Header{Role: Slave, Scheme: Weber, NumSamples: 4, DelayLocation: InPayload}
	buf := make([]byte, 14)
	EncodeHeaderInto(buf, h)
	const want = 0x80 | 0x10 | 0x04 | 0x02 | 0x01
	if buf[0] != want {
		t.Fatalf("want byte0=0x%X got 0x%X", want, buf[0])
	}
	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: want %+v got %+v", h, got)
	}
}

func TestDecodeRejectsBothSchemeBitsSet(t *testing.T) {
	buf := make([]byte, 14)
	buf[0] = weberMask | levelMask
	_, err := DecodeHeader(buf)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeShortHeader(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
}

func TestPoseVelocityRoundTrip(t *testing.T) {
	p := PoseVelocity{Position: [3]float32{1, -2.5, 3.25}, Velocity: [3]float32{-1, 0, 100.125}}
	bs := p.Marshal()
	if len(bs) != poseVelocityLen {
		t.Fatalf("want len %d got %d", poseVelocityLen, len(bs))
	}
	var got PoseVelocity
	if err := got.Unmarshal(bs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != p {
		t.Fatalf("want %+v got %+v", p, got)
	}
}

func TestForceRoundTrip(t *testing.T) {
	f := Force{Force: [3]float32{0.5, -0.5, 9.81}}
	bs := f.Marshal()
	var got Force
	if err := got.Unmarshal(bs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != f {
		t.Fatalf("want %+v got %+v", f, got)
	}
}

func TestForceUnmarshalShortRead(t *testing.T) {
	var f Force
	err := f.Unmarshal([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
}

func TestSplitPoseVelocity(t *testing.T) {
	a := PoseVelocity{Position: [3]float32{1, 2, 3}, Velocity: [3]float32{4, 5, 6}}
	b := PoseVelocity{Position: [3]float32{7, 8, 9}, Velocity: [3]float32{10, 11, 12}}
	payload := ConcatRecords([]*PoseVelocity{&a, &b})
	got, err := SplitPoseVelocity(payload, 2)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if got[0] != a || got[1] != b {
		t.Fatalf("split mismatch: got %+v", got)
	}
}
