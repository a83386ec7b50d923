package netfield

import (
	"math"
	"math/bits"

	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
)

// Kind is the width-descriptor sentinel scheme from spec §3.2.
type Kind int

const (
	// KindPlain sends |Bits| bits; Bits<0 sign-extends on read.
	KindPlain Kind = iota
	KindFloat
	KindLEB
	KindAngle
	KindColor
)

// Field describes one transmissible member of T: how to read/write its
// 32-bit wire representation (a raw int32 bit pattern for plain/LEB
// fields, an IEEE-754 bit pattern for float/angle/color fields) and its
// width descriptor. This replaces the C reference's offsetof()+memcpy
// genericity — Go structs have no portable byte-offset story, so each
// field carries typed accessor closures instead.
type Field[T any] struct {
	Name string
	Kind Kind
	Bits int // only meaningful for KindPlain
	Get  func(*T) uint32
	Set  func(*T, uint32)
}

// maxBitsFor returns the worst-case bit cost of one field, per
// MSG_CountDeltaMaxBits.
func maxBitsFor[T any](f Field[T]) int {
	switch f.Kind {
	case KindFloat:
		return 2 + 32
	case KindLEB:
		return 4*9 + 1
	case KindAngle:
		return 16
	case KindColor:
		return 8
	default:
		n := f.Bits
		if n < 0 {
			n = -n
		}
		return n
	}
}

// CountDeltaMaxBits sums the worst-case per-field cost of a field table,
// used to derive the bounded max-delta-size invariant (spec §8.3).
func CountDeltaMaxBits[T any](fields []Field[T]) int {
	total := 0
	for _, f := range fields {
		total++ // the leading changed-bit
		total += maxBitsFor(f)
	}
	return total
}

// NCBits returns ceil(log2(len(fields))), the width used to encode the
// changed-field count nc.
func NCBits[T any](fields []Field[T]) int {
	n := len(fields)
	if n <= 1 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

// countDeltaFields scans the field table and returns nc = 1 + highest
// index of any differing field (0 if none differ).
func countDeltaFields[T any](fields []Field[T], n int, from, to *T) int {
	nc := 0
	for i := 0; i < n; i++ {
		if fields[i].Get(from) != fields[i].Get(to) {
			nc = i + 1
		}
	}
	return nc
}

func writeDeltaFields[T any](w *bitio.Writer, fields []Field[T], n int, from, to *T) {
	for i := 0; i < n; i++ {
		f := fields[i]
		fromV, toV := f.Get(from), f.Get(to)
		if fromV == toV {
			w.WriteBit(false)
			continue
		}
		w.WriteBit(true)
		switch f.Kind {
		case KindFloat:
			w.WriteFloat(toV)
		case KindLEB:
			w.WriteLeb32(toV)
		case KindAngle:
			w.WriteBits(int32(bitio.Angle2Short(math.Float32frombits(toV))), -16)
		case KindColor:
			w.WriteBits(int32(bitio.ClipColor8(math.Float32frombits(toV))), 8)
		default:
			w.WriteBits(int32(toV), f.Bits)
		}
	}
}

func readDeltaFields[T any](r *bitio.Reader, fields []Field[T], n int, to *T) {
	for i := 0; i < n; i++ {
		f := fields[i]
		if !r.ReadBit() {
			continue
		}
		var toV uint32
		switch f.Kind {
		case KindFloat:
			toV = r.ReadFloat()
		case KindLEB:
			toV = r.ReadLeb32()
		case KindAngle:
			toV = math.Float32bits(bitio.Short2Angle(int16(r.ReadBits(-16))))
		case KindColor:
			toV = math.Float32bits(float32(r.ReadBits(8)) / 255.0)
		default:
			toV = uint32(r.ReadBits(f.Bits))
		}
		f.Set(to, toV)
	}
}

// floatField builds the Get/Set pair for a KindFloat/KindAngle/KindColor
// field addressed via a pointer-returning accessor, e.g.
// floatField(func(e *EntityState) *float32 { return &e.Alpha }).
func floatField[T any](ptr func(*T) *float32) (func(*T) uint32, func(*T, uint32)) {
	get := func(v *T) uint32 { return math.Float32bits(*ptr(v)) }
	set := func(v *T, x uint32) { *ptr(v) = math.Float32frombits(x) }
	return get, set
}

// intField builds the Get/Set pair for a KindPlain/KindLEB field addressed
// via a pointer-returning accessor.
func intField[T any](ptr func(*T) *int32) (func(*T) uint32, func(*T, uint32)) {
	get := func(v *T) uint32 { return uint32(*ptr(v)) }
	set := func(v *T, x uint32) { *ptr(v) = int32(x) }
	return get, set
}
