package imports

import (
	"strings"
	"testing"

	"github.com/sauerbraten-ng/q2pro-ng/internal/vm"
	"github.com/sauerbraten-ng/q2pro-ng/internal/world"
)

func newTestMemory(size int) *vm.Memory {
	return &vm.Memory{Pages: uint32(size / 65536), Bytes: make([]byte, size)}
}

func putString(mem *vm.Memory, ptr uint32, s string) {
	copy(mem.Bytes[ptr:], s)
	mem.Bytes[ptr+uint32(len(s))] = 0
}

func TestGuestStringRoundTrip(t *testing.T) {
	mem := newTestMemory(256)
	putString(mem, 16, "hello")

	s, err := GuestString(mem, 16)
	if err != nil {
		t.Fatalf("GuestString: %v", err)
	}
	if s != "hello" {
		t.Fatalf("got %q, want %q", s, "hello")
	}
}

func TestGuestStringRejectsUnterminated(t *testing.T) {
	mem := newTestMemory(8)
	for i := range mem.Bytes {
		mem.Bytes[i] = 'x'
	}
	if _, err := GuestString(mem, 0); err == nil {
		t.Fatal("expected an error for an unterminated string")
	}
}

func TestGuestBytesRejectsOutOfBounds(t *testing.T) {
	mem := newTestMemory(64)
	if _, err := GuestBytes(mem, 60, 16); err == nil {
		t.Fatal("expected an error for an out-of-bounds array")
	}
}

func TestGuestPtrAlignment(t *testing.T) {
	mem := newTestMemory(64)
	if _, err := GuestPtr(mem, 3, 4, 4, false); err == nil {
		t.Fatal("expected a misalignment error")
	}
	if _, err := GuestPtr(mem, 4, 4, 4, false); err != nil {
		t.Fatalf("GuestPtr: %v", err)
	}
}

func TestGuestPtrNullable(t *testing.T) {
	mem := newTestMemory(64)
	if _, err := GuestPtr(mem, 0, 4, 4, false); err == nil {
		t.Fatal("expected null pointer to be rejected")
	}
	if _, err := GuestPtr(mem, 0, 4, 4, true); err != nil {
		t.Fatalf("GuestPtr nullable: %v", err)
	}
}

func newTestHost() *Host {
	w := world.NewWorld(16)
	w.Reset(fakeModel{}, world.Vec3{-1024, -1024, -1024}, world.Vec3{1024, 1024, 1024})
	return NewHost("game", w, 32)
}

func TestCvarRegisterAndSet(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(256)
	putString(mem, 128, "sv_gravity")
	putString(mem, 32, "800")

	h.doCvarRegister(mem, []vm.Value{vm.U32Val(128), vm.U32Val(32), vm.U32Val(0)})
	if c := h.cvars["sv_gravity"]; c == nil || c.Value != "800" {
		t.Fatalf("expected registered cvar with default 800, got %+v", c)
	}

	putString(mem, 64, "sv_gravity")
	putString(mem, 96, "400")
	h.doCvarSet(mem, []vm.Value{vm.U32Val(64), vm.U32Val(96)})
	if h.cvars["sv_gravity"].Value != "400" {
		t.Fatalf("Cvar_Set did not update value: %+v", h.cvars["sv_gravity"])
	}
}

func TestCvarVariableStringWritesBuffer(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(256)
	putString(mem, 128, "sv_gravity")
	h.cvars["sv_gravity"] = &Cvar{Name: "sv_gravity", Value: "800"}

	ret := h.doCvarVariableString(mem, []vm.Value{vm.U32Val(128), vm.U32Val(64), vm.U32Val(16)})
	if ret.I32() != 3 {
		t.Fatalf("expected length 3, got %d", ret.I32())
	}
	got, err := GuestString(mem, 64)
	if err != nil || got != "800" {
		t.Fatalf("buffer = %q, err = %v", got, err)
	}
}

func TestSetAndGetConfigstring(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(256)
	putString(mem, 128, "maps/q2dm1.bsp")

	h.doSetConfigstring(mem, []vm.Value{vm.U32Val(5), vm.U32Val(128)})
	if h.Configstrings[5] != "maps/q2dm1.bsp" {
		t.Fatalf("SetConfigstring did not store value: %q", h.Configstrings[5])
	}

	ret := h.doGetConfigstring(mem, []vm.Value{vm.U32Val(5), vm.U32Val(64), vm.U32Val(32)})
	if ret.I32() != int32(len("maps/q2dm1.bsp")) {
		t.Fatalf("unexpected length %d", ret.I32())
	}
	got, _ := GuestString(mem, 64)
	if got != "maps/q2dm1.bsp" {
		t.Fatalf("buffer = %q", got)
	}
}

func TestGetConfigstringRejectsBadIndex(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(256)
	ret := h.doGetConfigstring(mem, []vm.Value{vm.U32Val(999), vm.U32Val(0), vm.U32Val(8)})
	if ret.I32() != -1 {
		t.Fatalf("expected -1 for out-of-range index, got %d", ret.I32())
	}
}

func TestLinkAndUnlinkEntity(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(16)

	args := []vm.Value{
		vm.I32Val(0),                             // entnum
		vm.F32Val(0), vm.F32Val(0), vm.F32Val(0), // origin
		vm.F32Val(-16), vm.F32Val(-16), vm.F32Val(-16), // mins
		vm.F32Val(16), vm.F32Val(16), vm.F32Val(16), // maxs
		vm.F32Val(0), vm.F32Val(0), vm.F32Val(0), // angles
		vm.F32Val(0), vm.F32Val(0), vm.F32Val(0), // oldOrigin
		vm.I32Val(0),                      // beam
		vm.I32Val(int32(world.SolidBBox)), // solid
	}
	h.doLinkEntity(mem, args)

	out := make([]int, 4)
	n := h.World.AreaEdicts(world.Vec3{-32, -32, -32}, world.Vec3{32, 32, 32}, out, world.AreaSolid)
	if n != 1 || out[0] != 0 {
		t.Fatalf("expected linked entity 0 to be found, got n=%d out=%v", n, out[:n])
	}

	h.doUnlinkEntity(mem, []vm.Value{vm.I32Val(0)})
	n = h.World.AreaEdicts(world.Vec3{-32, -32, -32}, world.Vec3{32, 32, 32}, out, world.AreaSolid)
	if n != 0 {
		t.Fatalf("expected no entities after unlink, got n=%d", n)
	}
}

type fakeModel struct{}

func (fakeModel) PointLeaf(p world.Vec3) world.Leaf { return world.Leaf{} }
func (fakeModel) BoxLeafs(mins, maxs world.Vec3) ([]int, int, int, bool) {
	return []int{0}, 0, 0, false
}
func (fakeModel) ClusterVis(cluster int, mode world.VisMode) []byte { return nil }
func (fakeModel) AreasConnected(a, b int) bool                      { return true }
func (fakeModel) BoxTrace(start, end, mins, maxs world.Vec3) world.TraceResult {
	return world.TraceResult{Fraction: 1, Entity: -1}
}

type fakeFile struct {
	r *strings.Reader
}

func (f *fakeFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *fakeFile) Close() error               { return nil }

func TestFileHandleLifecycle(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(256)
	putString(mem, 128, "default.cfg")

	h.OpenFile = func(name string) (interface {
		Read([]byte) (int, error)
		Close() error
	}, int64, error) {
		if name != "default.cfg" {
			t.Fatalf("unexpected file name %q", name)
		}
		return &fakeFile{r: strings.NewReader("bind w +forward")}, 16, nil
	}

	ret := h.doOpenFile(mem, []vm.Value{vm.U32Val(128)})
	handle := ret.I32()
	if handle == 0 {
		t.Fatal("expected a non-zero file handle")
	}

	n := h.doReadFile(mem, []vm.Value{vm.I32Val(handle), vm.U32Val(64), vm.U32Val(64)})
	if n.I32() <= 0 {
		t.Fatalf("expected a positive read count, got %d", n.I32())
	}

	h.doCloseFile(mem, []vm.Value{vm.I32Val(handle)})
	if _, ok := h.handles[int(handle)]; ok {
		t.Fatal("expected handle to be removed after close")
	}

	// Re-closing an already-closed handle must be a no-op, not a panic.
	h.doCloseFile(mem, []vm.Value{vm.I32Val(handle)})
}

func TestReadFileRejectsUnknownHandle(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(64)
	ret := h.doReadFile(mem, []vm.Value{vm.I32Val(99), vm.U32Val(0), vm.U32Val(8)})
	if ret.I32() != -1 {
		t.Fatalf("expected -1 for unknown handle, got %d", ret.I32())
	}
}

func TestMemcmp(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(64)
	putString(mem, 24, "abc")
	putString(mem, 8, "abc")
	putString(mem, 16, "abd")

	if r := h.doMemcmp(mem, []vm.Value{vm.U32Val(24), vm.U32Val(8), vm.U32Val(3)}); r.I32() != 0 {
		t.Fatalf("equal buffers: got %d", r.I32())
	}
	if r := h.doMemcmp(mem, []vm.Value{vm.U32Val(24), vm.U32Val(16), vm.U32Val(3)}); r.I32() >= 0 {
		t.Fatalf("expected negative for 'abc' < 'abd', got %d", r.I32())
	}
}

func TestPointContentsWithoutBackingModelReportsEmpty(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(16)
	ret := h.doPointContents(mem, []vm.Value{vm.F32Val(0), vm.F32Val(0), vm.F32Val(0)})
	if ret.I32() != 0 {
		t.Fatalf("expected CONTENTS_EMPTY (0), got %d", ret.I32())
	}
}

func TestPointContentsDelegatesWhenWired(t *testing.T) {
	h := newTestHost()
	h.PointContentsFunc = func(p world.Vec3) int32 { return 1 }
	mem := newTestMemory(16)
	ret := h.doPointContents(mem, []vm.Value{vm.F32Val(0), vm.F32Val(0), vm.F32Val(0)})
	if ret.I32() != 1 {
		t.Fatalf("expected delegated value 1, got %d", ret.I32())
	}
}

func TestBoxEdictsWritesOutArray(t *testing.T) {
	h := newTestHost()
	mem := newTestMemory(256)

	h.World.LinkEdict(0, world.SolidBBox, world.Vec3{0, 0, 0}, world.Vec3{-16, -16, -16}, world.Vec3{16, 16, 16}, world.Vec3{}, world.Vec3{}, false)

	args := []vm.Value{
		vm.F32Val(-32), vm.F32Val(-32), vm.F32Val(-32),
		vm.F32Val(32), vm.F32Val(32), vm.F32Val(32),
		vm.U32Val(128), vm.U32Val(4), vm.I32Val(int32(world.AreaSolid)),
	}
	ret := h.doBoxEdicts(mem, args)
	if ret.I32() != 1 {
		t.Fatalf("expected 1 matching edict, got %d", ret.I32())
	}
}
