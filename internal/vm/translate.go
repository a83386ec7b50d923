package vm

import (
	"encoding/binary"
	"fmt"
)

type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *byteWriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) align2() {
	if len(w.buf)&1 != 0 {
		w.buf = append(w.buf, 0)
	}
}

// remapExtendedOpcode maps an 0xFC-prefixed sub-opcode onto the internal
// bytecode opcode space. Saturating truncations degrade to their
// trapping counterparts (saturating conversions aren't supported);
// memory.copy/memory.fill are remapped onto unused byte values.
// Mirrors remap_extended_opcode.
func remapExtendedOpcode(sub uint32) (Op, error) {
	switch sub {
	case ExtI32TruncSatF32S:
		return I32TruncF32S, nil
	case ExtI32TruncSatF32U:
		return I32TruncF32U, nil
	case ExtI32TruncSatF64S:
		return I32TruncF64S, nil
	case ExtI32TruncSatF64U:
		return I32TruncF64U, nil
	case ExtI64TruncSatF32S:
		return I64TruncF32S, nil
	case ExtI64TruncSatF32U:
		return I64TruncF32U, nil
	case ExtI64TruncSatF64S:
		return I64TruncF64S, nil
	case ExtI64TruncSatF64U:
		return I64TruncF64U, nil
	case ExtMemoryCopyRaw:
		return ExtMemoryCopy, nil
	case ExtMemoryFillRaw:
		return ExtMemoryFill, nil
	}
	return 0, fmt.Errorf("unrecognized extended opcode %#x", sub)
}

// simplifyOpcode merges opcodes that the interpreter treats identically,
// so the dispatch loop needs only one handler for each pair. Mirrors
// simplify_opcode.
func simplifyOpcode(op Op) Op {
	switch op {
	case F32Load:
		return I32Load
	case F64Load:
		return I64Load
	case F32Store:
		return I32Store
	case F64Store:
		return I64Store
	case F32Const:
		return I32Const
	case F64Const:
		return I64Const
	case Loop:
		return BlockOp
	}
	return op
}

// Prepare translates every locally defined function's validated raw
// bytecode into the compact direct-dispatch form (16-bit-aligned
// immediates, relative block labels, a growable numbered block pool),
// then must be called exactly once before Interpret. Mirrors
// VM_PrepareInterpreter / VM_PrepareFunction.
func (m *Module) Prepare(rawData []byte) error {
	out := &byteWriter{buf: make([]byte, 0, len(rawData)*2)}

	for f := m.NumImports; f < len(m.Funcs); f++ {
		if err := m.prepareFunction(&m.Funcs[f], rawData, out); err != nil {
			return fmt.Errorf("function %d: %w", f, err)
		}
	}

	m.Code = out.buf
	return nil
}

type blockFrame struct {
	index  int
	opcode Op
}

func (m *Module) prepareFunction(fn *Block, rawData []byte, out *byteWriter) error {
	in := newReader(rawData)
	in.pos = int(fn.StartAddr)
	fn.StartAddr = uint32(len(out.buf))

	var stack []blockFrame
	var opcode Op

	for in.pos <= int(fn.EndAddr) {
		pos := in.pos
		b, err := in.byte()
		if err != nil {
			return err
		}
		opcode = Op(b)

		switch opcode {
		case Extended:
			sub, err := in.uleb()
			if err != nil {
				return err
			}
			opcode, err = remapExtendedOpcode(sub)
			if err != nil {
				return err
			}
		case Nop, I32ReinterpretF32, I64ReinterpretF64, F32ReinterpretI32, F64ReinterpretI64:
			continue
		case ExtMemoryCopy, ExtMemoryFill:
			return fmt.Errorf("unrecognized opcode %#x", opcode)
		}

		out.u8(byte(simplifyOpcode(opcode)))

		switch opcode {
		case BlockOp, Loop, If:
			if len(stack) >= BlockStackSize {
				return fmt.Errorf("blockstack overflow")
			}
			if len(m.Blocks) >= MaxBlocks {
				return fmt.Errorf("too many blocks")
			}
			vt, err := in.uleb()
			if err != nil {
				return err
			}
			bt, err := getBlockType(vt)
			if err != nil {
				return err
			}
			index := len(m.Blocks)
			m.Blocks = append(m.Blocks, Block{Opcode: opcode, Type: bt})
			stack = append(stack, blockFrame{index: index, opcode: opcode})
			out.u16(uint16(index))
			if opcode == Loop {
				m.Blocks[index].EndAddr = uint32(len(out.buf)) // loop label is right after start
			}

		case Else:
			if len(stack) == 0 {
				return fmt.Errorf("blockstack underflow")
			}
			top := stack[len(stack)-1]
			if top.opcode != If {
				return fmt.Errorf("else not matched with if")
			}
			m.Blocks[top.index].StartAddr = uint32(len(out.buf))

		case End:
			if pos == int(fn.EndAddr) {
				break
			}
			if len(stack) == 0 {
				return fmt.Errorf("blockstack underflow")
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.opcode != Loop {
				m.Blocks[top.index].EndAddr = uint32(len(out.buf) - 1)
			}

		case Br, BrIf:
			if len(stack) == 0 {
				return fmt.Errorf("blockstack underflow")
			}
			idx, err := in.uleb()
			if err != nil {
				return err
			}
			if int(idx) > len(stack)-1 {
				return fmt.Errorf("bad label")
			}
			out.u16(uint16(idx))

		case BrTable:
			if len(stack) == 0 {
				return fmt.Errorf("blockstack underflow")
			}
			count, err := in.uleb()
			if err != nil {
				return err
			}
			if count >= BrTableSize {
				return fmt.Errorf("BrTable size too big")
			}
			out.align2()
			out.u16(uint16(count))
			for i := uint32(0); i < count; i++ {
				idx, err := in.uleb()
				if err != nil {
					return err
				}
				if int(idx) > len(stack)-1 {
					return fmt.Errorf("bad label")
				}
				out.u16(uint16(idx))
			}
			idx, err := in.uleb()
			if err != nil {
				return err
			}
			if int(idx) > len(stack)-1 {
				return fmt.Errorf("bad label")
			}
			out.u16(uint16(idx))

		case LocalGet, LocalSet, LocalTee:
			idx, err := in.uleb()
			if err != nil {
				return err
			}
			if int(idx) >= len(fn.Type.Params)+fn.NumLocals {
				return fmt.Errorf("bad local index")
			}
			out.u16(uint16(idx))

		case GlobalGet, GlobalSet:
			idx, err := in.uleb()
			if err != nil {
				return err
			}
			if int(idx) >= len(m.Globals) {
				return fmt.Errorf("bad global index")
			}
			out.u16(uint16(idx))

		case MemorySize, MemoryGrow:
			in.pos++

		case I32Load, I64Load, I32Load8S, I32Load8U, I32Load16S, I32Load16U,
			I64Load8S, I64Load8U, I64Load16S, I64Load16U, I64Load32S, I64Load32U,
			I32Store, I64Store, I32Store8, I32Store16, I64Store8, I64Store16, I64Store32,
			F32Load, F64Load, F32Store, F64Store:
			if _, err := in.uleb(); err != nil { // align, discarded
				return err
			}
			offset, err := in.uleb()
			if err != nil {
				return err
			}
			out.u32(offset)

		case I32Const:
			v, err := in.sleb(32)
			if err != nil {
				return err
			}
			out.u32(uint32(int32(v)))

		case I64Const:
			v, err := in.sleb(64)
			if err != nil {
				return err
			}
			out.u64(uint64(v))

		case Call:
			idx, err := in.uleb()
			if err != nil {
				return err
			}
			if int(idx) >= len(m.Funcs) {
				return fmt.Errorf("bad function index")
			}
			out.u16(uint16(idx))

		case CallIndirect:
			idx, err := in.uleb()
			if err != nil {
				return err
			}
			if int(idx) >= len(m.Types) {
				return fmt.Errorf("bad type index")
			}
			out.u16(uint16(idx))
			tabIdx, err := in.uleb()
			if err != nil {
				return err
			}
			if tabIdx != 0 {
				return fmt.Errorf("only 1 default table supported")
			}

		case F32Const:
			v, err := in.u32le()
			if err != nil {
				return err
			}
			out.u32(v)

		case F64Const:
			v, err := in.u64le()
			if err != nil {
				return err
			}
			out.u64(v)

		case Unreachable, Return, Drop, Select:

		case ExtMemoryCopy:
			in.pos += 2

		case ExtMemoryFill:
			in.pos += 1

		default:
			if !isNoOperandOp(opcode) {
				return fmt.Errorf("unrecognized opcode %#x", opcode)
			}
		}
	}

	fn.EndAddr = uint32(len(out.buf) - 1)

	if len(stack) != 0 {
		return fmt.Errorf("function ended in middle of block")
	}
	if opcode != End {
		return fmt.Errorf("function block doesn't end with End opcode")
	}

	return nil
}
