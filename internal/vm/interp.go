package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

// TrapError is returned by Interpret/Call when a guest module hits a
// condition that halts execution. Per spec §5, a trap is host-fatal:
// the caller must not attempt to resume or re-enter the module.
type TrapError struct {
	Msg string
}

func (e *TrapError) Error() string { return "vm trap: " + e.Msg }

func trap(format string, args ...any) error {
	return &TrapError{Msg: fmt.Sprintf(format, args...)}
}

func pushBlock(m *Module, block *Block, sp int, csp *int) error {
	if *csp >= CallStackSize-1 {
		return trap("call stack overflow")
	}
	*csp++
	m.CallStack[*csp] = Frame{Block: block, SP: sp}
	return nil
}

func popBlock(m *Module, pc *uint32, sp *int, csp *int) (*Block, error) {
	if *csp < 0 {
		return nil, trap("call stack underflow")
	}
	frame := m.CallStack[*csp]
	*csp--
	block := frame.Block
	typ := block.Type

	if len(typ.Results) == 1 {
		if frame.SP < *sp {
			m.Stack[frame.SP+1] = m.Stack[*sp]
			*sp = frame.SP + 1
		}
	} else if frame.SP < *sp {
		*sp = frame.SP
	}

	if block.Opcode == 0 { // function: restore frame pointer and return address
		m.FP = frame.FP
		*pc = frame.RA
	}

	return block, nil
}

// setupCall pushes params+locals on the stack and a call frame on the
// call stack, then moves pc to the function's start. Mirrors
// VM_SetupCall.
func (m *Module) setupCall(fidx int) error {
	fn := &m.Funcs[fidx]
	typ := fn.Type

	if m.CSP >= CallStackSize-1 {
		return trap("call stack overflow")
	}
	m.CSP++
	m.CallStack[m.CSP] = Frame{
		Block: fn,
		SP:    m.SP - len(typ.Params),
		FP:    m.FP,
		RA:    m.PC,
	}

	m.FP = m.SP - len(typ.Params) + 1
	if m.FP < 0 {
		return trap("stack underflow")
	}

	if m.SP >= StackSize-fn.NumLocals {
		return trap("stack overflow")
	}
	for i := 0; i < fn.NumLocals; i++ {
		m.Stack[m.SP+1+i] = Value{}
	}
	m.SP += fn.NumLocals

	m.PC = fn.StartAddr
	return nil
}

// thunkOut calls an imported host function, popping params and pushing
// the result in place (the result overwrites the first argument slot,
// matching the in-place-overwrite contract of spec §4.6). Mirrors
// VM_ThunkOut.
func (m *Module) thunkOut(fidx int) error {
	fn := &m.Funcs[fidx]
	typ := fn.Type

	fp := m.SP - len(typ.Params) + 1
	if fp < 0 {
		return trap("stack underflow")
	}
	args := m.Stack[fp : fp+len(typ.Params)]
	m.SP -= len(typ.Params)

	result := fn.Thunk(&m.Memory, args)

	if len(typ.Results) == 1 {
		m.Stack[fp] = result
		m.SP++
	}
	return nil
}

// Call invokes one of the module's requested exports (by its index into
// FuncExports), pushing args from the top of the guest-visible stack
// first via Push. Mirrors VM_Call.
func (m *Module) Call(e int) (Value, error) {
	if e < 0 || e >= len(m.FuncExports) {
		return Value{}, trap("bad function index")
	}
	fidx := m.FuncExports[e]
	fn := &m.Funcs[fidx]
	typ := fn.Type

	fp := m.SP - len(typ.Params) + 1
	if fp < 0 {
		return Value{}, trap("stack underflow")
	}
	for i, pt := range typ.Params {
		m.Stack[fp+i].Type = pt
	}

	if err := m.setupCall(fidx); err != nil {
		return Value{}, err
	}
	if err := m.Interpret(); err != nil {
		return Value{}, err
	}

	if len(typ.Results) == 1 {
		if m.SP < 0 {
			return Value{}, trap("stack underflow")
		}
		if m.Stack[m.SP].Type != typ.Results[0] {
			return Value{}, trap("call type mismatch")
		}
		return m.Stack[m.SP], nil
	}
	return Value{}, nil
}

// Push reserves n operand slots at the stack top and returns them for
// the caller to fill (e.g. before Call). Mirrors VM_Push.
func (m *Module) Push(n int) ([]Value, error) {
	if m.SP >= StackSize-n {
		return nil, trap("stack overflow")
	}
	m.SP += n
	return m.Stack[m.SP-n+1 : m.SP+1], nil
}

// Pop removes and returns the top operand slot. Mirrors VM_Pop.
func (m *Module) Pop() (Value, error) {
	if m.SP < 0 {
		return Value{}, trap("stack underflow")
	}
	v := m.Stack[m.SP]
	m.SP--
	return v, nil
}

// Reset clears the interpreter's stacks and restores global 0 (assumed
// to be the guest's LLVM/libc stack pointer) to its initial value, for
// reuse across ticks without reloading the module. Mirrors VM_Reset.
func (m *Module) Reset() {
	m.SP = -1
	m.FP = -1
	m.CSP = -1
	if len(m.Globals) > 0 {
		m.Globals[0] = m.llvmStackStart
	}
}

func getU16(code []byte, pc *uint32) uint16 {
	v := binary.LittleEndian.Uint16(code[*pc:])
	*pc += 2
	return v
}

func getU32(code []byte, pc *uint32) uint32 {
	v := binary.LittleEndian.Uint32(code[*pc:])
	*pc += 4
	return v
}

func getU64(code []byte, pc *uint32) uint64 {
	v := binary.LittleEndian.Uint64(code[*pc:])
	*pc += 8
	return v
}

func rotl32(n uint32, c uint) uint32 { c &= 31; return n<<c | n>>(32-c) }
func rotr32(n uint32, c uint) uint32 { c &= 31; return n>>c | n<<(32-c) }
func rotl64(n uint64, c uint) uint64 { c &= 63; return n<<c | n>>(64-c) }
func rotr64(n uint64, c uint) uint64 { c &= 63; return n>>c | n<<(64-c) }

// Interpret runs the module's translated bytecode starting at the
// current pc/sp/csp registers (set up by setupCall) until the call
// stack unwinds below the depth it was entered at. Mirrors VM_Interpret:
// one opcode decoded and executed per iteration, register state saved
// back to the module only across host-thunk calls (which may not
// re-enter Interpret, a fatal assertion upstream).
func (m *Module) Interpret() error {
	code := m.Code
	msize := uint64(m.Memory.Pages) * VMPageSize
	enterCSP := m.CSP

	if enterCSP < 0 {
		return trap("call stack underflow")
	}

	curPC := m.PC
	curSP := m.SP
	curCSP := m.CSP

	have := func(n int) error {
		if curSP < n-1 {
			return trap("stack underflow")
		}
		return nil
	}
	need := func(n int) error {
		if curSP >= StackSize-n {
			return trap("stack overflow")
		}
		return nil
	}

	for {
		if int(curPC) >= len(code) {
			return trap("program counter out of bounds")
		}
		opcode := Op(code[curPC])
		curPC++

		switch opcode {

		case Unreachable:
			return trap("unreachable instruction")

		case BlockOp:
			idx := getU16(code, &curPC)
			if err := pushBlock(m, &m.Blocks[idx], curSP, &curCSP); err != nil {
				return err
			}

		case If:
			idx := getU16(code, &curPC)
			block := &m.Blocks[idx]
			if err := pushBlock(m, block, curSP, &curCSP); err != nil {
				return err
			}
			if err := have(1); err != nil {
				return err
			}
			cond := m.Stack[curSP].U32()
			curSP--
			if cond == 0 {
				if block.StartAddr == 0 {
					curCSP--
					curPC = block.EndAddr + 1
				} else {
					curPC = block.StartAddr
				}
			}

		case Else:
			curPC = m.CallStack[curCSP].Block.EndAddr

		case End:
			block, err := popBlock(m, &curPC, &curSP, &curCSP)
			if err != nil {
				return err
			}
			if curCSP < enterCSP {
				if block.Opcode != 0 {
					return trap("not a function")
				}
				m.PC, m.SP, m.CSP = curPC, curSP, curCSP
				return nil
			}

		case Br:
			depth := int(getU16(code, &curPC))
			if curCSP < depth {
				return trap("call stack underflow")
			}
			curCSP -= depth
			curPC = m.CallStack[curCSP].Block.EndAddr

		case BrIf:
			depth := int(getU16(code, &curPC))
			if err := have(1); err != nil {
				return err
			}
			cond := m.Stack[curSP].U32()
			curSP--
			if cond != 0 {
				if curCSP < depth {
					return trap("call stack underflow")
				}
				curCSP -= depth
				curPC = m.CallStack[curCSP].Block.EndAddr
			}

		case BrTable:
			if curPC&1 != 0 {
				curPC++
			}
			count := int(getU16(code, &curPC))
			tableStart := curPC
			curPC += uint32(count) * 2
			depth := int(getU16(code, &curPC))

			if err := have(1); err != nil {
				return err
			}
			index := m.Stack[curSP].U32()
			curSP--
			if int(index) < count {
				off := tableStart + uint32(index)*2
				depth = int(binary.LittleEndian.Uint16(code[off:]))
			}

			if curCSP < depth {
				return trap("call stack underflow")
			}
			curCSP -= depth
			curPC = m.CallStack[curCSP].Block.EndAddr

		case Return:
			for curCSP >= 0 && m.CallStack[curCSP].Block.Opcode != 0 {
				curCSP--
			}
			if curCSP < 0 {
				return trap("call stack underflow")
			}
			curPC = m.CallStack[curCSP].Block.EndAddr

		case Call:
			fidx := int(getU16(code, &curPC))
			m.PC, m.SP, m.CSP = curPC, curSP, curCSP
			var err error
			if fidx < m.NumImports {
				err = m.thunkOut(fidx)
			} else if fidx < len(m.Funcs) {
				err = m.setupCall(fidx)
			} else {
				err = trap("bad function index")
			}
			if err != nil {
				return err
			}
			curPC, curSP, curCSP = m.PC, m.SP, m.CSP

		case CallIndirect:
			tidx := int(getU16(code, &curPC))
			if tidx >= len(m.Types) {
				return trap("bad type index")
			}
			if err := have(1); err != nil {
				return err
			}
			val := m.Stack[curSP].U32()
			curSP--
			if val >= m.Table.Maximum || int(val) >= len(m.Table.Entries) {
				return trap("undefined element in table")
			}
			fidx := int(m.Table.Entries[val])
			if fidx >= len(m.Funcs) {
				return trap("bad function index")
			}
			if m.Funcs[fidx].Type != &m.Types[tidx] {
				return trap("indirect call function type differ")
			}

			m.PC, m.SP, m.CSP = curPC, curSP, curCSP
			var err error
			if fidx < m.NumImports {
				err = m.thunkOut(fidx)
			} else {
				err = m.setupCall(fidx)
			}
			if err != nil {
				return err
			}
			curPC, curSP, curCSP = m.PC, m.SP, m.CSP

		case Drop:
			if err := have(1); err != nil {
				return err
			}
			curSP--

		case Select:
			if err := have(3); err != nil {
				return err
			}
			cond := m.Stack[curSP].U32()
			curSP--
			if cond == 0 {
				m.Stack[curSP-1] = m.Stack[curSP]
			}
			curSP--

		case LocalGet:
			arg := int(getU16(code, &curPC))
			if err := need(1); err != nil {
				return err
			}
			curSP++
			m.Stack[curSP] = m.Stack[m.FP+arg]

		case LocalSet:
			arg := int(getU16(code, &curPC))
			if err := have(1); err != nil {
				return err
			}
			m.Stack[m.FP+arg] = m.Stack[curSP]
			curSP--

		case LocalTee:
			arg := int(getU16(code, &curPC))
			if err := have(1); err != nil {
				return err
			}
			m.Stack[m.FP+arg] = m.Stack[curSP]

		case GlobalGet:
			arg := int(getU16(code, &curPC))
			if err := need(1); err != nil {
				return err
			}
			curSP++
			m.Stack[curSP] = m.Globals[arg]

		case GlobalSet:
			arg := int(getU16(code, &curPC))
			if err := have(1); err != nil {
				return err
			}
			m.Globals[arg] = m.Stack[curSP]
			curSP--

		case MemorySize:
			if err := need(1); err != nil {
				return err
			}
			curSP++
			m.Stack[curSP] = U32Val(m.Memory.Pages)

		case MemoryGrow:
			if err := have(1); err != nil {
				return err
			}
			prevPages := m.Memory.Pages
			delta := m.Stack[curSP].U32()
			if delta == 0 {
				m.Stack[curSP] = U32Val(prevPages)
			} else {
				m.Stack[curSP] = U32Val(0xffffffff) // resize not supported
			}

		case ExtMemoryCopy:
			if err := have(3); err != nil {
				return err
			}
			dst := uint64(m.Stack[curSP-2].U32())
			src := uint64(m.Stack[curSP-1].U32())
			n := uint64(m.Stack[curSP].U32())
			if dst+n > msize || src+n > msize {
				return trap("memory copy out of bounds")
			}
			copy(m.Memory.Bytes[dst:dst+n], m.Memory.Bytes[src:src+n])
			curSP -= 3

		case ExtMemoryFill:
			if err := have(3); err != nil {
				return err
			}
			dst := uint64(m.Stack[curSP-2].U32())
			val := byte(m.Stack[curSP-1].U32())
			n := uint64(m.Stack[curSP].U32())
			if dst+n > msize {
				return trap("memory fill out of bounds")
			}
			for i := uint64(0); i < n; i++ {
				m.Memory.Bytes[dst+i] = val
			}
			curSP -= 3

		case I32Load, I64Load, I32Load8S, I32Load8U, I32Load16S, I32Load16U,
			I64Load8S, I64Load8U, I64Load16S, I64Load16U, I64Load32S, I64Load32U:
			v, err := m.doLoad(opcode, code, &curPC, &curSP, msize)
			if err != nil {
				return err
			}
			m.Stack[curSP] = v

		case I32Store, I64Store, I32Store8, I32Store16, I64Store8, I64Store16, I64Store32:
			if err := m.doStore(opcode, code, &curPC, &curSP, msize); err != nil {
				return err
			}

		case I32Const:
			if err := need(1); err != nil {
				return err
			}
			curSP++
			m.Stack[curSP] = U32Val(getU32(code, &curPC))

		case I64Const:
			if err := need(1); err != nil {
				return err
			}
			curSP++
			m.Stack[curSP] = U64Val(getU64(code, &curPC))

		case I32Eqz:
			if err := have(1); err != nil {
				return err
			}
			m.Stack[curSP] = boolVal(m.Stack[curSP].U32() == 0)

		case I64Eqz:
			if err := have(1); err != nil {
				return err
			}
			m.Stack[curSP] = boolVal(m.Stack[curSP].U64() == 0)

		default:
			var err error
			curSP, err = m.doBinaryOrUnary(opcode, &curSP)
			if err != nil {
				return err
			}
		}
	}
}

func boolVal(b bool) Value {
	if b {
		return U32Val(1)
	}
	return U32Val(0)
}

func (m *Module) doLoad(op Op, code []byte, pc *uint32, sp *int, msize uint64) (Value, error) {
	offset := uint64(getU32(code, pc))
	if *sp < 0 {
		return Value{}, trap("stack underflow")
	}
	addr := uint64(m.Stack[*sp].U32())
	mem := m.Memory.Bytes

	read := func(size uint64) (uint64, error) {
		if addr+offset+size > msize {
			return 0, trap("memory load out of bounds")
		}
		base := addr + offset
		switch size {
		case 1:
			return uint64(mem[base]), nil
		case 2:
			return uint64(binary.LittleEndian.Uint16(mem[base:])), nil
		case 4:
			return uint64(binary.LittleEndian.Uint32(mem[base:])), nil
		case 8:
			return binary.LittleEndian.Uint64(mem[base:]), nil
		}
		panic("bad size")
	}

	switch op {
	case I32Load:
		v, err := read(4)
		return U32Val(uint32(v)), err
	case I64Load:
		v, err := read(8)
		return U64Val(v), err
	case I32Load8S:
		v, err := read(1)
		return I32Val(int32(int8(v))), err
	case I32Load8U:
		v, err := read(1)
		return U32Val(uint32(v)), err
	case I32Load16S:
		v, err := read(2)
		return I32Val(int32(int16(v))), err
	case I32Load16U:
		v, err := read(2)
		return U32Val(uint32(v)), err
	case I64Load8S:
		v, err := read(1)
		return I64Val(int64(int8(v))), err
	case I64Load8U:
		v, err := read(1)
		return U64Val(v), err
	case I64Load16S:
		v, err := read(2)
		return I64Val(int64(int16(v))), err
	case I64Load16U:
		v, err := read(2)
		return U64Val(v), err
	case I64Load32S:
		v, err := read(4)
		return I64Val(int64(int32(v))), err
	case I64Load32U:
		v, err := read(4)
		return U64Val(v), err
	}
	panic("unreachable")
}

func (m *Module) doStore(op Op, code []byte, pc *uint32, sp *int, msize uint64) error {
	offset := uint64(getU32(code, pc))
	if *sp < 1 {
		return trap("stack underflow")
	}
	sval := m.Stack[*sp]
	addr := uint64(m.Stack[*sp-1].U32())
	*sp -= 2
	mem := m.Memory.Bytes

	write := func(size uint64, v uint64) error {
		if addr+offset+size > msize {
			return trap("memory store out of bounds")
		}
		base := addr + offset
		switch size {
		case 1:
			mem[base] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(mem[base:], uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(mem[base:], uint32(v))
		case 8:
			binary.LittleEndian.PutUint64(mem[base:], v)
		}
		return nil
	}

	switch op {
	case I32Store:
		return write(4, uint64(sval.U32()))
	case I64Store:
		return write(8, sval.U64())
	case I32Store8:
		return write(1, uint64(sval.U32()))
	case I32Store16:
		return write(2, uint64(sval.U32()))
	case I64Store8:
		return write(1, sval.U64())
	case I64Store16:
		return write(2, sval.U64())
	case I64Store32:
		return write(4, sval.U64())
	}
	panic("unreachable")
}

// doBinaryOrUnary executes every comparison, numeric, conversion and
// sign-extension opcode that needs no immediate operand. Split out of
// Interpret's main switch to keep that loop's control-flow cases
// legible; mirrors the CMP_*/BOP_*/UN_OP/CNV_OP/SEX_OP macro families.
func (m *Module) doBinaryOrUnary(op Op, spp *int) (int, error) {
	sp := *spp
	s := m.Stack[:]

	un := func(n int) error {
		if sp < n-1 {
			return trap("stack underflow")
		}
		return nil
	}

	switch op {
	// unary i32/i64 bit ops
	case I32Clz:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = U32Val(uint32(bits.LeadingZeros32(s[sp].U32())))
	case I32Ctz:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = U32Val(uint32(bits.TrailingZeros32(s[sp].U32())))
	case I32Popcnt:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = U32Val(uint32(bits.OnesCount32(s[sp].U32())))
	case I64Clz:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = U64Val(uint64(bits.LeadingZeros64(s[sp].U64())))
	case I64Ctz:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = U64Val(uint64(bits.TrailingZeros64(s[sp].U64())))
	case I64Popcnt:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = U64Val(uint64(bits.OnesCount64(s[sp].U64())))

	// unary float ops
	case F32Abs:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F32Val(float32(math.Abs(float64(s[sp].F32()))))
	case F32Neg:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F32Val(-s[sp].F32())
	case F32Ceil:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F32Val(float32(math.Ceil(float64(s[sp].F32()))))
	case F32Floor:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F32Val(float32(math.Floor(float64(s[sp].F32()))))
	case F32Trunc:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F32Val(float32(math.Trunc(float64(s[sp].F32()))))
	case F32Nearest:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F32Val(float32(math.RoundToEven(float64(s[sp].F32()))))
	case F32Sqrt:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F32Val(float32(math.Sqrt(float64(s[sp].F32()))))
	case F64Abs:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F64Val(math.Abs(s[sp].F64()))
	case F64Neg:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F64Val(-s[sp].F64())
	case F64Ceil:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F64Val(math.Ceil(s[sp].F64()))
	case F64Floor:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F64Val(math.Floor(s[sp].F64()))
	case F64Trunc:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F64Val(math.Trunc(s[sp].F64()))
	case F64Nearest:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F64Val(math.RoundToEven(s[sp].F64()))
	case F64Sqrt:
		if err := un(1); err != nil {
			return sp, err
		}
		s[sp] = F64Val(math.Sqrt(s[sp].F64()))

	default:
		return m.doBinary(op, sp)
	}

	return sp, nil
}

func (m *Module) doBinary(op Op, sp int) (int, error) {
	s := m.Stack[:]
	if sp < 1 {
		return sp, trap("stack underflow")
	}
	a, b := s[sp-1], s[sp]

	switch op {
	// i32 comparisons
	case I32Eq:
		s[sp-1] = boolVal(a.U32() == b.U32())
	case I32Ne:
		s[sp-1] = boolVal(a.U32() != b.U32())
	case I32LtS:
		s[sp-1] = boolVal(a.I32() < b.I32())
	case I32LtU:
		s[sp-1] = boolVal(a.U32() < b.U32())
	case I32GtS:
		s[sp-1] = boolVal(a.I32() > b.I32())
	case I32GtU:
		s[sp-1] = boolVal(a.U32() > b.U32())
	case I32LeS:
		s[sp-1] = boolVal(a.I32() <= b.I32())
	case I32LeU:
		s[sp-1] = boolVal(a.U32() <= b.U32())
	case I32GeS:
		s[sp-1] = boolVal(a.I32() >= b.I32())
	case I32GeU:
		s[sp-1] = boolVal(a.U32() >= b.U32())

	// i64 comparisons
	case I64Eq:
		s[sp-1] = boolVal(a.U64() == b.U64())
	case I64Ne:
		s[sp-1] = boolVal(a.U64() != b.U64())
	case I64LtS:
		s[sp-1] = boolVal(a.I64() < b.I64())
	case I64LtU:
		s[sp-1] = boolVal(a.U64() < b.U64())
	case I64GtS:
		s[sp-1] = boolVal(a.I64() > b.I64())
	case I64GtU:
		s[sp-1] = boolVal(a.U64() > b.U64())
	case I64LeS:
		s[sp-1] = boolVal(a.I64() <= b.I64())
	case I64LeU:
		s[sp-1] = boolVal(a.U64() <= b.U64())
	case I64GeS:
		s[sp-1] = boolVal(a.I64() >= b.I64())
	case I64GeU:
		s[sp-1] = boolVal(a.U64() >= b.U64())

	// f32/f64 comparisons
	case F32Eq:
		s[sp-1] = boolVal(a.F32() == b.F32())
	case F32Ne:
		s[sp-1] = boolVal(a.F32() != b.F32())
	case F32Lt:
		s[sp-1] = boolVal(a.F32() < b.F32())
	case F32Gt:
		s[sp-1] = boolVal(a.F32() > b.F32())
	case F32Le:
		s[sp-1] = boolVal(a.F32() <= b.F32())
	case F32Ge:
		s[sp-1] = boolVal(a.F32() >= b.F32())
	case F64Eq:
		s[sp-1] = boolVal(a.F64() == b.F64())
	case F64Ne:
		s[sp-1] = boolVal(a.F64() != b.F64())
	case F64Lt:
		s[sp-1] = boolVal(a.F64() < b.F64())
	case F64Gt:
		s[sp-1] = boolVal(a.F64() > b.F64())
	case F64Le:
		s[sp-1] = boolVal(a.F64() <= b.F64())
	case F64Ge:
		s[sp-1] = boolVal(a.F64() >= b.F64())

	// i32 arithmetic
	case I32Add:
		s[sp-1] = U32Val(a.U32() + b.U32())
	case I32Sub:
		s[sp-1] = U32Val(a.U32() - b.U32())
	case I32Mul:
		s[sp-1] = U32Val(a.U32() * b.U32())
	case I32DivS:
		if b.I32() == 0 {
			return sp, trap("integer divide by zero")
		}
		if a.I32() == math.MinInt32 && b.I32() == -1 {
			return sp, trap("integer overflow")
		}
		s[sp-1] = I32Val(a.I32() / b.I32())
	case I32DivU:
		if b.U32() == 0 {
			return sp, trap("integer divide by zero")
		}
		s[sp-1] = U32Val(a.U32() / b.U32())
	case I32RemS:
		if b.I32() == 0 {
			return sp, trap("integer divide by zero")
		}
		if a.I32() == math.MinInt32 && b.I32() == -1 {
			s[sp-1] = I32Val(0)
		} else {
			s[sp-1] = I32Val(a.I32() % b.I32())
		}
	case I32RemU:
		if b.U32() == 0 {
			return sp, trap("integer divide by zero")
		}
		s[sp-1] = U32Val(a.U32() % b.U32())
	case I32And:
		s[sp-1] = U32Val(a.U32() & b.U32())
	case I32Or:
		s[sp-1] = U32Val(a.U32() | b.U32())
	case I32Xor:
		s[sp-1] = U32Val(a.U32() ^ b.U32())
	case I32Shl:
		s[sp-1] = U32Val(a.U32() << (b.U32() & 31))
	case I32ShrS:
		s[sp-1] = I32Val(a.I32() >> (b.U32() & 31))
	case I32ShrU:
		s[sp-1] = U32Val(a.U32() >> (b.U32() & 31))
	case I32Rotl:
		s[sp-1] = U32Val(rotl32(a.U32(), uint(b.U32())))
	case I32Rotr:
		s[sp-1] = U32Val(rotr32(a.U32(), uint(b.U32())))

	// i64 arithmetic
	case I64Add:
		s[sp-1] = U64Val(a.U64() + b.U64())
	case I64Sub:
		s[sp-1] = U64Val(a.U64() - b.U64())
	case I64Mul:
		s[sp-1] = U64Val(a.U64() * b.U64())
	case I64DivS:
		if b.I64() == 0 {
			return sp, trap("integer divide by zero")
		}
		if a.I64() == math.MinInt64 && b.I64() == -1 {
			return sp, trap("integer overflow")
		}
		s[sp-1] = I64Val(a.I64() / b.I64())
	case I64DivU:
		if b.U64() == 0 {
			return sp, trap("integer divide by zero")
		}
		s[sp-1] = U64Val(a.U64() / b.U64())
	case I64RemS:
		if b.I64() == 0 {
			return sp, trap("integer divide by zero")
		}
		if a.I64() == math.MinInt64 && b.I64() == -1 {
			s[sp-1] = I64Val(0)
		} else {
			s[sp-1] = I64Val(a.I64() % b.I64())
		}
	case I64RemU:
		if b.U64() == 0 {
			return sp, trap("integer divide by zero")
		}
		s[sp-1] = U64Val(a.U64() % b.U64())
	case I64And:
		s[sp-1] = U64Val(a.U64() & b.U64())
	case I64Or:
		s[sp-1] = U64Val(a.U64() | b.U64())
	case I64Xor:
		s[sp-1] = U64Val(a.U64() ^ b.U64())
	case I64Shl:
		s[sp-1] = U64Val(a.U64() << (b.U64() & 63))
	case I64ShrS:
		s[sp-1] = I64Val(a.I64() >> (b.U64() & 63))
	case I64ShrU:
		s[sp-1] = U64Val(a.U64() >> (b.U64() & 63))
	case I64Rotl:
		s[sp-1] = U64Val(rotl64(a.U64(), uint(b.U64())))
	case I64Rotr:
		s[sp-1] = U64Val(rotr64(a.U64(), uint(b.U64())))

	// f32/f64 arithmetic
	case F32Add:
		s[sp-1] = F32Val(a.F32() + b.F32())
	case F32Sub:
		s[sp-1] = F32Val(a.F32() - b.F32())
	case F32Mul:
		s[sp-1] = F32Val(a.F32() * b.F32())
	case F32Div:
		s[sp-1] = F32Val(a.F32() / b.F32())
	case F32Min:
		s[sp-1] = F32Val(float32(math.Min(float64(a.F32()), float64(b.F32()))))
	case F32Max:
		s[sp-1] = F32Val(float32(math.Max(float64(a.F32()), float64(b.F32()))))
	case F32Copysign:
		s[sp-1] = F32Val(float32(math.Copysign(float64(a.F32()), float64(b.F32()))))
	case F64Add:
		s[sp-1] = F64Val(a.F64() + b.F64())
	case F64Sub:
		s[sp-1] = F64Val(a.F64() - b.F64())
	case F64Mul:
		s[sp-1] = F64Val(a.F64() * b.F64())
	case F64Div:
		s[sp-1] = F64Val(a.F64() / b.F64())
	case F64Min:
		s[sp-1] = F64Val(math.Min(a.F64(), b.F64()))
	case F64Max:
		s[sp-1] = F64Val(math.Max(a.F64(), b.F64()))
	case F64Copysign:
		s[sp-1] = F64Val(math.Copysign(a.F64(), b.F64()))

	default:
		return m.doConvert(op, sp)
	}

	return sp - 1, nil
}

func (m *Module) doConvert(op Op, sp int) (int, error) {
	s := m.Stack[:]
	if sp < 0 {
		return sp, trap("stack underflow")
	}
	v := s[sp]

	switch op {
	case I32WrapI64:
		s[sp] = U32Val(uint32(v.U64()))
	case I32TruncF32S:
		s[sp] = I32Val(int32(v.F32()))
	case I32TruncF32U:
		s[sp] = U32Val(uint32(v.F32()))
	case I32TruncF64S:
		s[sp] = I32Val(int32(v.F64()))
	case I32TruncF64U:
		s[sp] = U32Val(uint32(v.F64()))
	case I64ExtendI32S:
		s[sp] = I64Val(int64(v.I32()))
	case I64ExtendI32U:
		s[sp] = U64Val(uint64(v.U32()))
	case I64TruncF32S:
		s[sp] = I64Val(int64(v.F32()))
	case I64TruncF32U:
		s[sp] = U64Val(uint64(v.F32()))
	case I64TruncF64S:
		s[sp] = I64Val(int64(v.F64()))
	case I64TruncF64U:
		s[sp] = U64Val(uint64(v.F64()))
	case F32ConvertI32S:
		s[sp] = F32Val(float32(v.I32()))
	case F32ConvertI32U:
		s[sp] = F32Val(float32(v.U32()))
	case F32ConvertI64S:
		s[sp] = F32Val(float32(v.I64()))
	case F32ConvertI64U:
		s[sp] = F32Val(float32(v.U64()))
	case F32DemoteF64:
		s[sp] = F32Val(float32(v.F64()))
	case F64ConvertI32S:
		s[sp] = F64Val(float64(v.I32()))
	case F64ConvertI32U:
		s[sp] = F64Val(float64(v.U32()))
	case F64ConvertI64S:
		s[sp] = F64Val(float64(v.I64()))
	case F64ConvertI64U:
		s[sp] = F64Val(float64(v.U64()))
	case F64PromoteF32:
		s[sp] = F64Val(float64(v.F32()))
	case I32Extend8S:
		s[sp] = I32Val(int32(int8(v.U32())))
	case I32Extend16S:
		s[sp] = I32Val(int32(int16(v.U32())))
	case I64Extend8S:
		s[sp] = I64Val(int64(int8(v.U64())))
	case I64Extend16S:
		s[sp] = I64Val(int64(int16(v.U64())))
	case I64Extend32S:
		s[sp] = I64Val(int64(int32(v.U64())))
	default:
		return sp, trap("unimplemented opcode %#x", byte(op))
	}

	return sp, nil
}
