package netfield

import (
	"testing"

	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
)

// (A) Full round-trip of a moving entity, spec §8 scenario A.
func TestWriteDeltaEntity_BaselineThenMove(t *testing.T) {
	b := EntityState{Number: 42, Origin: Vec3{0, 0, 0}, ModelIndex: 17}

	w := bitio.NewWriter(bitio.MaxMsgLen)
	WriteDeltaEntity(w, nil, &b, true)
	w.FlushBits()

	r := bitio.NewReader(w.Bytes())
	num := r.ReadBits(EntitynumBits)
	got := EntityState{Number: num}
	ReadDeltaEntity(r, &NullEntityState, &got)
	if got != b {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, b)
	}

	tgt := b
	tgt.Origin = Vec3{128, 0, 0}

	w2 := bitio.NewWriter(bitio.MaxMsgLen)
	WriteDeltaEntity(w2, &b, &tgt, false)
	w2.FlushBits()

	r2 := bitio.NewReader(w2.Bytes())
	num2 := r2.ReadBits(EntitynumBits)
	if removed := r2.ReadBit(); removed {
		t.Fatal("expected removed bit unset")
	}
	if changed := r2.ReadBit(); !changed {
		t.Fatal("expected changed bit set")
	}

	result := b
	result.Number = num2
	ReadDeltaEntity(r2, &b, &result)
	if result != tgt {
		t.Fatalf("delta-from-baseline mismatch: got %+v, want %+v", result, tgt)
	}
}

// (B) No-op delta, spec §8 scenario B / invariant 2.
func TestWriteDeltaEntity_NoOp(t *testing.T) {
	s := EntityState{Number: 7, Origin: Vec3{1, 2, 3}}
	w := bitio.NewWriter(bitio.MaxMsgLen)
	WriteDeltaEntity(w, &s, &s, false)
	if w.Len() != 0 {
		t.Fatalf("no-op delta emitted %d bytes, want 0", w.Len())
	}
}

// (C) Removal, spec §8 scenario C.
func TestWriteDeltaEntity_Removal(t *testing.T) {
	s := EntityState{Number: 42}
	w := bitio.NewWriter(bitio.MaxMsgLen)
	WriteDeltaEntity(w, &s, nil, false)
	w.FlushBits()

	r := bitio.NewReader(w.Bytes())
	num := r.ReadBits(EntitynumBits)
	if num != 42 {
		t.Fatalf("entity number = %d, want 42", num)
	}
	if !r.ReadBit() {
		t.Fatal("expected removed bit set")
	}
}

func TestWriteDeltaPlayerstate_RoundTrip(t *testing.T) {
	from := NullPlayerState
	to := PlayerState{
		PMType:     1,
		Origin:     Vec3{10, 20, 30},
		ClientNum:  3,
		ViewAngles: Vec3{0, 90, 0},
	}
	to.Stats[2] = 55
	to.Stats[10] = -3

	w := bitio.NewWriter(bitio.MaxMsgLen)
	WriteDeltaPlayerstate(w, &from, &to)
	w.FlushBits()

	r := bitio.NewReader(w.Bytes())
	got := from
	ReadDeltaPlayerstate(r, &got)

	if got != to {
		t.Fatalf("playerstate round trip mismatch:\n got  %+v\n want %+v", got, to)
	}
}

func TestWriteDeltaPlayerstate_NoOp(t *testing.T) {
	s := PlayerState{PMType: 2}
	w := bitio.NewWriter(bitio.MaxMsgLen)
	WriteDeltaPlayerstate(w, &s, &s)
	if w.Len() != 0 {
		t.Fatalf("no-op player delta emitted %d bytes, want 0", w.Len())
	}
}

func TestMsgMaxEntityBytesPositive(t *testing.T) {
	if MsgMaxEntityBytes <= 0 {
		t.Fatal("MsgMaxEntityBytes should be derived to a positive value")
	}
}

// §8 invariant 3: WriteDelta output never exceeds MsgMaxEntityBytes.
func TestWriteDeltaEntity_BoundedSize(t *testing.T) {
	from := EntityState{}
	to := EntityState{
		Number: 100, Origin: Vec3{1, 2, 3}, Angles: Vec3{10, 20, 30},
		ModelIndex: 5, SkinNum: 9, Effects: 0xff, RenderFx: 3, Solid: 1,
		MoreFx: 2, Frame: 40, Sound: 8, Alpha: 0.5, Scale: 2, OtherNum: 9,
		OldOrigin: Vec3{9, 9, 9},
	}
	w := bitio.NewWriter(bitio.MaxMsgLen)
	WriteDeltaEntity(w, &from, &to, true)
	w.FlushBits()
	if w.Len() > MsgMaxEntityBytes {
		t.Fatalf("delta size %d exceeds MsgMaxEntityBytes %d", w.Len(), MsgMaxEntityBytes)
	}
}
