package vm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// reader walks a WASM module's raw byte sections. WASM integers are
// byte-aligned LEB128, not bit-packed, so this is a distinct (and much
// simpler) cursor than internal/bitio's shift-register reader used for
// the network wire format.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("unexpected end of module")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("unexpected end of module")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32le() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64le() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) f32le() (float32, error) {
	v, err := r.u32le()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) f64le() (float64, error) {
	v, err := r.u64le()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// uleb reads an unsigned LEB128 value, capped at 32 significant bits
// (callers needing a wider range read it as two uleb32 halves or use
// sleb64 for signed i64 constants).
func (r *reader) uleb() (uint32, error) {
	var result uint32
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift < 32 {
			result |= uint32(b&0x7f) << shift
		}
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift > 35 {
			return 0, fmt.Errorf("LEB128 overflow")
		}
	}
	return result, nil
}

// sleb reads a signed LEB128 value of the given bit width (32 or 64),
// sign-extending the final byte's high bits per the WASM spec.
func (r *reader) sleb(bits int) (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < uint(bits) && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}
