package imports

import (
	"fmt"
	"log"

	"github.com/sauerbraten-ng/q2pro-ng/internal/vm"
	"github.com/sauerbraten-ng/q2pro-ng/internal/world"
)

// Cvar is the minimal cvar surface a guest module can register and read
// back. The real archive/persistence path lives in internal/config;
// Host only needs enough to satisfy Cvar_Register/Cvar_VariableString.
type Cvar struct {
	Name    string
	Value   string
	Flags   uint32
	Default string
}

// FileHandle is one entry in a module's private open-file table. Handle
// IDs are 1-based; 0 is always "invalid". Mirrors spec §4.6's
// file-handle translation contract.
type FileHandle struct {
	id int
	f  interface {
		Read([]byte) (int, error)
		Close() error
	}
}

// Host binds one WASM module instance to the concrete server state its
// imports operate on: the spatial index, the cvar table, configstrings,
// an open-file table, and the entity-pointer validation range recorded
// by LocateGameData. One Host per loaded module (game or cgame).
type Host struct {
	Name string // module name, for log prefixes ("game", "cgame")

	World         *world.World
	Configstrings []string

	cvars map[string]*Cvar

	edictsBase uint32
	edictSize  uint32
	clientBase uint32
	clientSize uint32

	handles    map[int]*FileHandle
	nextHandle int

	OpenFile func(name string) (interface {
		Read([]byte) (int, error)
		Close() error
	}, int64, error)

	// PointContentsFunc delegates to the loaded BSP, outside this
	// package's scope. Nil reports CONTENTS_EMPTY everywhere.
	PointContentsFunc func(p world.Vec3) int32
}

// NewHost constructs a Host ready to have its import table built.
func NewHost(name string, w *world.World, numConfigstrings int) *Host {
	return &Host{
		Name:          name,
		World:         w,
		Configstrings: make([]string, numConfigstrings),
		cvars:         make(map[string]*Cvar),
		handles:       make(map[int]*FileHandle),
	}
}

// Imports builds the host import table bound to this Host. Grounded on
// spec §4.6's named examples (Print, Error, Trace, BoxEdicts,
// PointContents, Cvar_Register, SetConfigstring, LinkEntity/
// UnlinkEntity, FS_OpenFile, math helpers, memcmp).
func (h *Host) Imports() []vm.Import {
	return []vm.Import{
		{Name: "Print", Mask: "i", Thunk: h.doPrint},
		{Name: "Error", Mask: "i", Thunk: h.doError},
		{Name: "Trace", Mask: "i", Thunk: h.doTrace},

		{Name: "LocateGameData", Mask: "iiii", Thunk: h.doLocateGameData},

		{Name: "PointContents", Mask: "i fff", Thunk: h.doPointContents},

		{Name: "Cvar_Register", Mask: "i iii", Thunk: h.doCvarRegister},
		{Name: "Cvar_VariableString", Mask: "i iii", Thunk: h.doCvarVariableString},
		{Name: "Cvar_Set", Mask: "ii", Thunk: h.doCvarSet},

		{Name: "SetConfigstring", Mask: "ii", Thunk: h.doSetConfigstring},
		{Name: "GetConfigstring", Mask: "i iii", Thunk: h.doGetConfigstring},

		{Name: "LinkEntity", Mask: "ifffffffffffffffii", Thunk: h.doLinkEntity},
		{Name: "UnlinkEntity", Mask: "i", Thunk: h.doUnlinkEntity},
		{Name: "BoxEdicts", Mask: "i ffffffiii", Thunk: h.doBoxEdicts},

		{Name: "FS_OpenFile", Mask: "i i", Thunk: h.doOpenFile},
		{Name: "FS_ReadFile", Mask: "i iii", Thunk: h.doReadFile},
		{Name: "FS_CloseFile", Mask: "i", Thunk: h.doCloseFile},

		{Name: "memcmp", Mask: "i iii", Thunk: h.doMemcmp},

		{Name: "sinf", Mask: "f f", Thunk: mathUnaryF32(mathSin)},
		{Name: "cosf", Mask: "f f", Thunk: mathUnaryF32(mathCos)},
		{Name: "sqrtf", Mask: "f f", Thunk: mathUnaryF32(mathSqrt)},
		{Name: "atan2f", Mask: "f ff", Thunk: mathBinaryF32(mathAtan2)},
		{Name: "powf", Mask: "f ff", Thunk: mathBinaryF32(mathPow)},
		{Name: "floorf", Mask: "f f", Thunk: mathUnaryF32(mathFloor)},
		{Name: "ceilf", Mask: "f f", Thunk: mathUnaryF32(mathCeil)},
		{Name: "fabsf", Mask: "f f", Thunk: mathUnaryF32(mathAbs)},
	}
}

func (h *Host) doPrint(mem *vm.Memory, args []vm.Value) vm.Value {
	s, err := GuestString(mem, args[0].U32())
	if err != nil {
		log.Printf("%s: Print: %v", h.Name, err)
		return vm.I32Val(0)
	}
	log.Print(s)
	return vm.I32Val(0)
}

func (h *Host) doError(mem *vm.Memory, args []vm.Value) vm.Value {
	s, err := GuestString(mem, args[0].U32())
	if err != nil {
		s = fmt.Sprintf("<unreadable error string: %v>", err)
	}
	log.Panicf("%s: fatal game error: %s", h.Name, s)
	return vm.I32Val(0)
}

func (h *Host) doTrace(mem *vm.Memory, args []vm.Value) vm.Value {
	s, err := GuestString(mem, args[0].U32())
	if err != nil {
		return vm.I32Val(0)
	}
	log.Printf("%s: %s", h.Name, s)
	return vm.I32Val(0)
}

// doLocateGameData records the guest's edict array bounds, per spec
// §4.6's "game code calls LocateGameData ... once" contract.
func (h *Host) doLocateGameData(mem *vm.Memory, args []vm.Value) vm.Value {
	h.edictsBase = args[0].U32()
	h.edictSize = args[1].U32()
	h.clientBase = args[2].U32()
	h.clientSize = args[3].U32()
	return vm.I32Val(0)
}

// doPointContents defers to the BSP collision loader, which spec §1
// treats as an external collaborator this package only consumes through
// a narrow interface (PointLeaf/BoxLeafs/ClusterVis/AreasConnected/
// BoxTrace). Host has no BSP of its own to query, so it reports empty
// space; a real server wires PointContentsFunc to its loaded map.
func (h *Host) doPointContents(mem *vm.Memory, args []vm.Value) vm.Value {
	if h.PointContentsFunc == nil {
		return vm.I32Val(0)
	}
	p := world.Vec3{args[0].F32(), args[1].F32(), args[2].F32()}
	return vm.I32Val(h.PointContentsFunc(p))
}

func (h *Host) doCvarRegister(mem *vm.Memory, args []vm.Value) vm.Value {
	name, err := GuestString(mem, args[0].U32())
	if err != nil {
		return vm.I32Val(0)
	}
	def, _ := GuestString(mem, args[1].U32())
	flags := args[2].U32()

	c, ok := h.cvars[name]
	if !ok {
		c = &Cvar{Name: name, Value: def, Default: def, Flags: flags}
		h.cvars[name] = c
	}
	return vm.I32Val(0)
}

func (h *Host) doCvarVariableString(mem *vm.Memory, args []vm.Value) vm.Value {
	name, err := GuestString(mem, args[0].U32())
	if err != nil {
		return vm.I32Val(-1)
	}
	val := ""
	if c, ok := h.cvars[name]; ok {
		val = c.Value
	}
	n, err := putGuestString(mem, args[1].U32(), args[2].U32(), val)
	if err != nil {
		return vm.I32Val(-1)
	}
	return vm.I32Val(int32(n))
}

func (h *Host) doCvarSet(mem *vm.Memory, args []vm.Value) vm.Value {
	name, err := GuestString(mem, args[0].U32())
	if err != nil {
		return vm.I32Val(0)
	}
	val, _ := GuestString(mem, args[1].U32())
	if c, ok := h.cvars[name]; ok {
		c.Value = val
	} else {
		h.cvars[name] = &Cvar{Name: name, Value: val}
	}
	return vm.I32Val(0)
}

func (h *Host) doSetConfigstring(mem *vm.Memory, args []vm.Value) vm.Value {
	idx := args[0].U32()
	s, err := GuestString(mem, args[1].U32())
	if err != nil || int(idx) >= len(h.Configstrings) {
		return vm.I32Val(0)
	}
	h.Configstrings[idx] = s
	return vm.I32Val(0)
}

func (h *Host) doGetConfigstring(mem *vm.Memory, args []vm.Value) vm.Value {
	idx := args[0].U32()
	if int(idx) >= len(h.Configstrings) {
		return vm.I32Val(-1)
	}
	n, err := putGuestString(mem, args[1].U32(), args[2].U32(), h.Configstrings[idx])
	if err != nil {
		return vm.I32Val(-1)
	}
	return vm.I32Val(int32(n))
}

func (h *Host) doLinkEntity(mem *vm.Memory, args []vm.Value) vm.Value {
	entnum := int(args[0].I32())
	origin := world.Vec3{args[1].F32(), args[2].F32(), args[3].F32()}
	mins := world.Vec3{args[4].F32(), args[5].F32(), args[6].F32()}
	maxs := world.Vec3{args[7].F32(), args[8].F32(), args[9].F32()}
	angles := world.Vec3{args[10].F32(), args[11].F32(), args[12].F32()}
	oldOrigin := world.Vec3{args[13].F32(), args[14].F32(), args[15].F32()}
	beam := args[16].I32() != 0
	solid := world.SolidType(args[17].I32())

	h.World.LinkEdict(entnum, solid, origin, mins, maxs, angles, oldOrigin, beam)
	return vm.I32Val(0)
}

func (h *Host) doUnlinkEntity(mem *vm.Memory, args []vm.Value) vm.Value {
	h.World.UnlinkEdict(int(args[0].I32()))
	return vm.I32Val(0)
}

func (h *Host) doBoxEdicts(mem *vm.Memory, args []vm.Value) vm.Value {
	mins := world.Vec3{args[0].F32(), args[1].F32(), args[2].F32()}
	maxs := world.Vec3{args[3].F32(), args[4].F32(), args[5].F32()}
	outPtr := args[6].U32()
	maxCount := args[7].U32()
	areaType := world.AreaType(args[8].I32())

	out := make([]int, maxCount)
	n := h.World.AreaEdicts(mins, maxs, out, areaType)

	buf, err := GuestBytes(mem, outPtr, maxCount*4)
	if err != nil {
		return vm.I32Val(0)
	}
	for i := 0; i < n; i++ {
		putU32(buf[i*4:], uint32(out[i]))
	}
	return vm.I32Val(int32(n))
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (h *Host) doOpenFile(mem *vm.Memory, args []vm.Value) vm.Value {
	name, err := GuestString(mem, args[0].U32())
	if err != nil || h.OpenFile == nil {
		return vm.I32Val(0)
	}
	f, _, err := h.OpenFile(name)
	if err != nil {
		return vm.I32Val(0)
	}
	h.nextHandle++
	id := h.nextHandle
	h.handles[id] = &FileHandle{id: id, f: f}
	return vm.I32Val(int32(id))
}

func (h *Host) doReadFile(mem *vm.Memory, args []vm.Value) vm.Value {
	id := int(args[0].I32())
	bufPtr := args[1].U32()
	count := args[2].U32()

	fh, ok := h.handles[id]
	if !ok || fh == nil {
		return vm.I32Val(-1)
	}
	buf, err := GuestBytes(mem, bufPtr, count)
	if err != nil {
		return vm.I32Val(-1)
	}
	n, err := fh.f.Read(buf)
	if err != nil && n == 0 {
		return vm.I32Val(-1)
	}
	return vm.I32Val(int32(n))
}

func (h *Host) doCloseFile(mem *vm.Memory, args []vm.Value) vm.Value {
	id := int(args[0].I32())
	if fh, ok := h.handles[id]; ok && fh != nil {
		fh.f.Close()
		delete(h.handles, id)
	}
	return vm.I32Val(0)
}

func (h *Host) doMemcmp(mem *vm.Memory, args []vm.Value) vm.Value {
	a, err1 := GuestBytes(mem, args[0].U32(), args[2].U32())
	b, err2 := GuestBytes(mem, args[1].U32(), args[2].U32())
	if err1 != nil || err2 != nil {
		return vm.I32Val(0)
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return vm.I32Val(-1)
			}
			return vm.I32Val(1)
		}
	}
	return vm.I32Val(0)
}
