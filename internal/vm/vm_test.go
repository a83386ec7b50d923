package vm

import (
	"errors"
	"testing"
)

// addModule is a hand-assembled WASM module exporting a single function
// "add(i32,i32) i32" that returns the sum of its two params:
//
//	(func (export "add") (param i32 i32) (result i32)
//	  local.get 0
//	  local.get 1
//	  i32.add)
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version

	0x01, 0x07, // type section, length 7
	0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // 1 type: (i32,i32)->i32

	0x03, 0x02, // function section, length 2
	0x01, 0x00, // 1 function, type 0

	0x05, 0x03, // memory section, length 3
	0x01, 0x00, 0x01, // 1 memory, no max, 1 page

	0x07, 0x07, // export section, length 7
	0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00, // "add" -> func 0

	0x0a, 0x09, // code section, length 9
	0x01,       // 1 function body
	0x07,       // body size 7
	0x00,       // 0 local decls
	0x20, 0x00, // local.get 0
	0x20, 0x01, // local.get 1
	0x6a,       // i32.add
	0x0b,       // end
}

// unreachableModule exports a zero-arg function whose body traps.
var unreachableModule = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,

	0x01, 0x04,
	0x01, 0x60, 0x00, 0x00, // 1 type: () -> ()

	0x03, 0x02,
	0x01, 0x00,

	0x05, 0x03,
	0x01, 0x00, 0x01,

	0x07, 0x08,
	0x01, 0x04, 'b', 'o', 'o', 'm', 0x00, 0x00,

	0x0a, 0x05,
	0x01,
	0x03,
	0x00,
	0x00, // unreachable
	0x0b,
}

// divZeroModule exports a zero-arg function computing 1 / 0.
var divZeroModule = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,

	0x01, 0x05,
	0x01, 0x60, 0x00, 0x01, 0x7f, // 1 type: () -> i32

	0x03, 0x02,
	0x01, 0x00,

	0x05, 0x03,
	0x01, 0x00, 0x01,

	0x07, 0x08,
	0x01, 0x04, 'b', 'o', 'o', 'm', 0x00, 0x00,

	0x0a, 0x09,
	0x01,
	0x07,
	0x00,
	0x41, 0x01, // i32.const 1
	0x41, 0x00, // i32.const 0
	0x6d,       // i32.div_s
	0x0b,
}

// hostAddModule imports "host_add" and forwards its two params to it,
// exporting the result as "run".
var hostAddModule = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,

	0x01, 0x07,
	0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,

	0x02, 0x10, // import section, length 16
	0x01,                                                     // 1 import
	0x03, 'e', 'n', 'v', // module name (unused)
	0x08, 'h', 'o', 's', 't', '_', 'a', 'd', 'd', // import name
	0x00, 0x00, // kind=func, type 0

	0x03, 0x02,
	0x01, 0x00,

	0x05, 0x03,
	0x01, 0x00, 0x01,

	0x07, 0x07,
	0x01, 0x03, 'r', 'u', 'n', 0x00, 0x01, // "run" -> func 1 (index 0 is the import)

	0x0a, 0x0a, // code section, length 10
	0x01,
	0x08, // body size 8
	0x00,
	0x20, 0x00, // local.get 0
	0x20, 0x01, // local.get 1
	0x10, 0x00, // call 0 (the import)
	0x0b,
}

func loadAndPrepare(t *testing.T, data []byte, imports []Import, specs []ExportSpec) *Module {
	t.Helper()
	m, err := Load(data, imports, specs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Prepare(data); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	m.Reset()
	return m
}

func TestCallAdd(t *testing.T) {
	m := loadAndPrepare(t, addModule, nil, []ExportSpec{{Name: "add", Mask: "i ii"}})

	args, err := m.Push(2)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	args[0] = I32Val(2)
	args[1] = I32Val(3)

	result, err := m.Call(0)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.I32() != 5 {
		t.Fatalf("add(2,3) = %d, want 5", result.I32())
	}
}

func TestCallUnreachableTraps(t *testing.T) {
	m := loadAndPrepare(t, unreachableModule, nil, []ExportSpec{{Name: "boom", Mask: ""}})

	_, err := m.Call(0)
	var trapErr *TrapError
	if !errors.As(err, &trapErr) {
		t.Fatalf("expected a TrapError, got %v", err)
	}
}

func TestCallDivByZeroTraps(t *testing.T) {
	m := loadAndPrepare(t, divZeroModule, nil, []ExportSpec{{Name: "boom", Mask: "i "}})

	_, err := m.Call(0)
	var trapErr *TrapError
	if !errors.As(err, &trapErr) {
		t.Fatalf("expected a TrapError, got %v", err)
	}
}

func TestCallHostThunk(t *testing.T) {
	hostAdd := Import{
		Name: "host_add",
		Mask: "i ii",
		Thunk: func(mem *Memory, args []Value) Value {
			return I32Val(args[0].I32() + args[1].I32())
		},
	}

	m := loadAndPrepare(t, hostAddModule, []Import{hostAdd}, []ExportSpec{{Name: "run", Mask: "i ii"}})

	args, err := m.Push(2)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	args[0] = I32Val(4)
	args[1] = I32Val(5)

	result, err := m.Call(0)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.I32() != 9 {
		t.Fatalf("run(4,5) = %d, want 9", result.I32())
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	bad := append([]byte(nil), addModule...)
	bad[0] = 0xff
	if _, err := Load(bad, nil, nil); err == nil {
		t.Fatal("expected an error for bad magic")
	}
}

func TestResetRestoresStackPointers(t *testing.T) {
	m := loadAndPrepare(t, addModule, nil, []ExportSpec{{Name: "add", Mask: "i ii"}})
	if m.SP != -1 || m.FP != -1 || m.CSP != -1 {
		t.Fatalf("Reset left SP=%d FP=%d CSP=%d, want all -1", m.SP, m.FP, m.CSP)
	}
}
