// Package vm implements a loader, validator, translator and interpreter
// for the sandboxed WebAssembly subset used to host game/cgame/server
// modules. It never touches the network wire or the entity tree
// directly; all game-world access happens through the host-call bridge
// in the imports subpackage.
package vm

// Op is a single-byte WebAssembly (or internal, post-translation)
// opcode. Values match the standard WASM binary encoding so that
// Module.Load can validate raw section bytes directly; a handful of
// internal-only values (ExtMemoryCopy, ExtMemoryFill) occupy byte slots
// the standard never assigns, matching interp.c's "remap to unused
// opcodes" comment.
type Op byte

const (
	Unreachable Op = 0x00
	Nop         Op = 0x01
	BlockOp     Op = 0x02
	Loop        Op = 0x03
	If          Op = 0x04
	Else        Op = 0x05
	End         Op = 0x0B
	Br          Op = 0x0C
	BrIf        Op = 0x0D
	BrTable     Op = 0x0E
	Return      Op = 0x0F
	Call        Op = 0x10
	CallIndirect Op = 0x11

	Drop   Op = 0x1A
	Select Op = 0x1B

	LocalGet  Op = 0x20
	LocalSet  Op = 0x21
	LocalTee  Op = 0x22
	GlobalGet Op = 0x23
	GlobalSet Op = 0x24

	I32Load    Op = 0x28
	I64Load    Op = 0x29
	F32Load    Op = 0x2A
	F64Load    Op = 0x2B
	I32Load8S  Op = 0x2C
	I32Load8U  Op = 0x2D
	I32Load16S Op = 0x2E
	I32Load16U Op = 0x2F
	I64Load8S  Op = 0x30
	I64Load8U  Op = 0x31
	I64Load16S Op = 0x32
	I64Load16U Op = 0x33
	I64Load32S Op = 0x34
	I64Load32U Op = 0x35
	I32Store   Op = 0x36
	I64Store   Op = 0x37
	F32Store   Op = 0x38
	F64Store   Op = 0x39
	I32Store8  Op = 0x3A
	I32Store16 Op = 0x3B
	I64Store8  Op = 0x3C
	I64Store16 Op = 0x3D
	I64Store32 Op = 0x3E

	MemorySize Op = 0x3F
	MemoryGrow Op = 0x40

	I32Const Op = 0x41
	I64Const Op = 0x42
	F32Const Op = 0x43
	F64Const Op = 0x44

	I32Eqz Op = 0x45
	I32Eq  Op = 0x46
	I32Ne  Op = 0x47
	I32LtS Op = 0x48
	I32LtU Op = 0x49
	I32GtS Op = 0x4A
	I32GtU Op = 0x4B
	I32LeS Op = 0x4C
	I32LeU Op = 0x4D
	I32GeS Op = 0x4E
	I32GeU Op = 0x4F

	I64Eqz Op = 0x50
	I64Eq  Op = 0x51
	I64Ne  Op = 0x52
	I64LtS Op = 0x53
	I64LtU Op = 0x54
	I64GtS Op = 0x55
	I64GtU Op = 0x56
	I64LeS Op = 0x57
	I64LeU Op = 0x58
	I64GeS Op = 0x59
	I64GeU Op = 0x5A

	F32Eq Op = 0x5B
	F32Ne Op = 0x5C
	F32Lt Op = 0x5D
	F32Gt Op = 0x5E
	F32Le Op = 0x5F
	F32Ge Op = 0x60

	F64Eq Op = 0x61
	F64Ne Op = 0x62
	F64Lt Op = 0x63
	F64Gt Op = 0x64
	F64Le Op = 0x65
	F64Ge Op = 0x66

	I32Clz    Op = 0x67
	I32Ctz    Op = 0x68
	I32Popcnt Op = 0x69
	I32Add    Op = 0x6A
	I32Sub    Op = 0x6B
	I32Mul    Op = 0x6C
	I32DivS   Op = 0x6D
	I32DivU   Op = 0x6E
	I32RemS   Op = 0x6F
	I32RemU   Op = 0x70
	I32And    Op = 0x71
	I32Or     Op = 0x72
	I32Xor    Op = 0x73
	I32Shl    Op = 0x74
	I32ShrS   Op = 0x75
	I32ShrU   Op = 0x76
	I32Rotl   Op = 0x77
	I32Rotr   Op = 0x78

	I64Clz    Op = 0x79
	I64Ctz    Op = 0x7A
	I64Popcnt Op = 0x7B
	I64Add    Op = 0x7C
	I64Sub    Op = 0x7D
	I64Mul    Op = 0x7E
	I64DivS   Op = 0x7F
	I64DivU   Op = 0x80
	I64RemS   Op = 0x81
	I64RemU   Op = 0x82
	I64And    Op = 0x83
	I64Or     Op = 0x84
	I64Xor    Op = 0x85
	I64Shl    Op = 0x86
	I64ShrS   Op = 0x87
	I64ShrU   Op = 0x88
	I64Rotl   Op = 0x89
	I64Rotr   Op = 0x8A

	F32Abs      Op = 0x8B
	F32Neg      Op = 0x8C
	F32Ceil     Op = 0x8D
	F32Floor    Op = 0x8E
	F32Trunc    Op = 0x8F
	F32Nearest  Op = 0x90
	F32Sqrt     Op = 0x91
	F32Add      Op = 0x92
	F32Sub      Op = 0x93
	F32Mul      Op = 0x94
	F32Div      Op = 0x95
	F32Min      Op = 0x96
	F32Max      Op = 0x97
	F32Copysign Op = 0x98

	F64Abs      Op = 0x99
	F64Neg      Op = 0x9A
	F64Ceil     Op = 0x9B
	F64Floor    Op = 0x9C
	F64Trunc    Op = 0x9D
	F64Nearest  Op = 0x9E
	F64Sqrt     Op = 0x9F
	F64Add      Op = 0xA0
	F64Sub      Op = 0xA1
	F64Mul      Op = 0xA2
	F64Div      Op = 0xA3
	F64Min      Op = 0xA4
	F64Max      Op = 0xA5
	F64Copysign Op = 0xA6

	I32WrapI64    Op = 0xA7
	I32TruncF32S  Op = 0xA8
	I32TruncF32U  Op = 0xA9
	I32TruncF64S  Op = 0xAA
	I32TruncF64U  Op = 0xAB
	I64ExtendI32S Op = 0xAC
	I64ExtendI32U Op = 0xAD
	I64TruncF32S  Op = 0xAE
	I64TruncF32U  Op = 0xAF
	I64TruncF64S  Op = 0xB0
	I64TruncF64U  Op = 0xB1
	F32ConvertI32S Op = 0xB2
	F32ConvertI32U Op = 0xB3
	F32ConvertI64S Op = 0xB4
	F32ConvertI64U Op = 0xB5
	F32DemoteF64   Op = 0xB6
	F64ConvertI32S Op = 0xB7
	F64ConvertI32U Op = 0xB8
	F64ConvertI64S Op = 0xB9
	F64ConvertI64U Op = 0xBA
	F64PromoteF32  Op = 0xBB

	// Reinterpret opcodes are elided during translation: the interpreter
	// keeps no type tag distinction between i32/f32 or i64/f64 bit
	// patterns on the stack, so a reinterpret is a pure no-op.
	I32ReinterpretF32 Op = 0xBC
	I64ReinterpretF64 Op = 0xBD
	F32ReinterpretI32 Op = 0xBE
	F64ReinterpretI64 Op = 0xBF

	I32Extend8S  Op = 0xC0
	I32Extend16S Op = 0xC1
	I64Extend8S  Op = 0xC2
	I64Extend16S Op = 0xC3
	I64Extend32S Op = 0xC4

	// Internal-only opcodes, written by the translator in place of the
	// 0xFC-prefixed memory.copy/memory.fill extended opcodes. They occupy
	// byte values the standard never assigns.
	ExtMemoryCopy Op = 0xC5
	ExtMemoryFill Op = 0xC6

	Extended Op = 0xFC
)

// Sub-opcodes following the 0xFC extended-opcode prefix.
const (
	ExtI32TruncSatF32S uint32 = 0
	ExtI32TruncSatF32U uint32 = 1
	ExtI32TruncSatF64S uint32 = 2
	ExtI32TruncSatF64U uint32 = 3
	ExtI64TruncSatF32S uint32 = 4
	ExtI64TruncSatF32U uint32 = 5
	ExtI64TruncSatF64S uint32 = 6
	ExtI64TruncSatF64U uint32 = 7
	ExtMemoryInit      uint32 = 8
	ExtDataDrop        uint32 = 9
	ExtMemoryCopyRaw   uint32 = 10
	ExtMemoryFillRaw   uint32 = 11
)

// Value type tags, matching the WASM binary encoding's negative-LEB128
// byte values for number/reference types.
type ValueType byte

const (
	I32     ValueType = 0x7F
	I64     ValueType = 0x7E
	F32     ValueType = 0x7D
	F64     ValueType = 0x7C
	AnyFunc ValueType = 0x70
	FuncRef ValueType = 0x60
	Block0  ValueType = 0x40 // empty block type ("BLOCK" in vm.h)
)

// Section ids, in the canonical order a WASM module stores them.
const (
	SecType     = 1
	SecImport   = 2
	SecFunction = 3
	SecTable    = 4
	SecMemory   = 5
	SecGlobal   = 6
	SecExport   = 7
	SecStart    = 8
	SecElement  = 9
	SecCode     = 10
	SecData     = 11
	numSections = 12
)

// Import/export kinds.
const (
	KindFunction = 0
	KindTable    = 1
	KindMemory   = 2
	KindGlobal   = 3
)

const (
	wasmMagic   = 0x6d736100
	wasmVersion = 0x01

	// VMPageSize is the WASM linear-memory page size (64 KiB).
	VMPageSize = 0x10000

	StackSize      = 0x10000
	CallStackSize  = 0x1000
	BlockStackSize = 0x1000
	BrTableSize    = 0x10000
	MaxLocals      = 0x1000
	MaxResults     = 1
	MaxBlocks      = 1 << 20

	// MaxMemoryPages caps linear memory at 100 MB, matching load.c's
	// parse_memory clamp.
	MaxMemoryPages = 0x600
	// MaxTableSize caps the funcref table at 64K entries.
	MaxTableSize = 0x10000
)
