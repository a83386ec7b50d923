package bitio

import (
	"math"
	"testing"
)

func TestBytePrimitivesRoundTrip(t *testing.T) {
	w := NewWriter(MaxMsgLen)
	w.WriteByte(200)
	w.WriteShort(54321)
	w.WriteLong(-123456)
	w.WriteLong64(-9000000000)
	w.WriteString("hello")

	r := NewReader(w.Bytes())
	if got := r.ReadByte(); got != 200 {
		t.Fatalf("ReadByte = %d, want 200", got)
	}
	if got := r.ReadShort(); got != 54321 {
		t.Fatalf("ReadShort = %d, want 54321", got)
	}
	if got := r.ReadLong(); got != -123456 {
		t.Fatalf("ReadLong = %d, want -123456", got)
	}
	if got := r.ReadLong64(); got != -9000000000 {
		t.Fatalf("ReadLong64 = %d, want -9000000000", got)
	}
	if got := r.ReadString(); got != "hello" {
		t.Fatalf("ReadString = %q, want hello", got)
	}
}

func TestWriteBitsRoundTrip(t *testing.T) {
	cases := []struct {
		value int32
		bits  int
	}{
		{0, 1},
		{1, 1},
		{5, 3},
		{-5, -8},
		{12345, 16},
		{-12345, -16},
		{1<<31 - 1, 32},
		{-(1 << 31), 32},
	}

	w := NewWriter(MaxMsgLen)
	for _, c := range cases {
		w.WriteBits(c.value, c.bits)
	}
	w.FlushBits()

	r := NewReader(w.Bytes())
	for _, c := range cases {
		got := r.ReadBits(c.bits)
		want := c.value
		if c.bits > 0 {
			want = int32(uint32(c.value) & uint32(mask(c.bits)))
		}
		if got != want {
			t.Fatalf("ReadBits(%d) = %d, want %d", c.bits, got, want)
		}
	}
}

func TestWriteBitInterleavedWithBytes(t *testing.T) {
	w := NewWriter(MaxMsgLen)
	w.WriteBit(true)
	w.WriteBit(false)
	w.WriteBits(7, 3)
	w.FlushBits()
	w.WriteByte(42)

	r := NewReader(w.Bytes())
	if !r.ReadBit() {
		t.Fatal("expected true")
	}
	if r.ReadBit() {
		t.Fatal("expected false")
	}
	if got := r.ReadBits(3); got != 7 {
		t.Fatalf("ReadBits(3) = %d, want 7", got)
	}
	r.AlignBits()
	if got := r.ReadByte(); got != 42 {
		t.Fatalf("ReadByte = %d, want 42", got)
	}
}

func TestLeb32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 256, 1 << 20, 0xffffffff}
	w := NewWriter(MaxMsgLen)
	for _, v := range values {
		w.WriteLeb32(v)
	}
	w.FlushBits()

	r := NewReader(w.Bytes())
	for _, v := range values {
		if got := r.ReadLeb32(); got != v {
			t.Fatalf("ReadLeb32() = %d, want %d", got, v)
		}
	}
}

func TestLeb32TerminatesWithinBound(t *testing.T) {
	// §8 invariant 4: any LEB stream terminates within <=5 control bits for
	// 32-bit values. Count control (odd-index) bits consumed for the max value.
	w := NewWriter(MaxMsgLen)
	w.WriteLeb32(0xffffffff)
	w.FlushBits()

	r := NewReader(w.Bytes())
	controlBits := 0
	for r.ReadBit() {
		controlBits++
		r.ReadBits(8)
		if controlBits > 5 {
			t.Fatalf("LEB32 did not terminate within 5 control bits")
		}
	}
}

func TestSignedLeb32RoundTrip(t *testing.T) {
	values := []int32{0, 1, -1, 12345, -12345, math.MinInt32, math.MaxInt32}
	w := NewWriter(MaxMsgLen)
	for _, v := range values {
		w.WriteSignedLeb32(v)
	}
	w.FlushBits()

	r := NewReader(w.Bytes())
	for _, v := range values {
		if got := r.ReadSignedLeb32(); got != v {
			t.Fatalf("ReadSignedLeb32() = %d, want %d", got, v)
		}
	}
}

func TestLeb64RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 1 << 40, ^uint64(0)}
	w := NewWriter(MaxMsgLen)
	for _, v := range values {
		w.WriteLeb64(v)
	}
	w.FlushBits()

	r := NewReader(w.Bytes())
	for _, v := range values {
		if got := r.ReadLeb64(); got != v {
			t.Fatalf("ReadLeb64() = %d, want %d", got, v)
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 8191, -8192, 8192.5, -8193, 1.5, 3.14159, 1e30}
	w := NewWriter(MaxMsgLen)
	for _, v := range values {
		w.WriteFloat(math.Float32bits(v))
	}
	w.FlushBits()

	r := NewReader(w.Bytes())
	for _, v := range values {
		got := math.Float32frombits(r.ReadFloat())
		if got != v {
			t.Fatalf("ReadFloat() = %v, want %v", got, v)
		}
	}
}

func TestAngleRoundTrip(t *testing.T) {
	for _, deg := range []float32{0, 90, 180, 270, 359.9, -45} {
		s := Angle2Short(deg)
		back := Short2Angle(s)
		// lossy: verify re-encoding is stable (idempotent after one round-trip)
		if Angle2Short(back) != s {
			t.Fatalf("angle round-trip unstable for %v: %d -> %v -> %d", deg, s, back, Angle2Short(back))
		}
	}
}

func TestClipColor8(t *testing.T) {
	cases := []struct {
		in   float32
		want uint8
	}{
		{-1, 0}, {0, 0}, {0.5, 127}, {1, 255}, {2, 255},
	}
	for _, c := range cases {
		if got := ClipColor8(c.in); got != c.want {
			t.Fatalf("ClipColor8(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestWriterOverflowPolicy(t *testing.T) {
	w := NewWriter(4)
	w.WriteLong(1)
	if w.Overflowed() {
		t.Fatal("should not be overflowed yet")
	}
	w.WriteByte(1)
	if !w.Overflowed() {
		t.Fatal("expected overflow")
	}
}

func TestReaderUnderflowReturnsSentinel(t *testing.T) {
	r := NewReader(nil)
	if got := r.ReadByte(); got != -1 {
		t.Fatalf("ReadByte on empty = %d, want -1", got)
	}
	if got := r.ReadData(4); got != nil {
		t.Fatalf("ReadData on empty = %v, want nil", got)
	}
}
