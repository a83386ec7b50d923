package vm

import (
	"fmt"
)

// blockTypes mirrors load.c's static block_types table: the five shapes
// a block's "type" immediate can name (no result, or exactly one of the
// four value types).
var blockTypes = [5]FuncType{
	{},
	{Results: []ValueType{I32}},
	{Results: []ValueType{I64}},
	{Results: []ValueType{F32}},
	{Results: []ValueType{F64}},
}

func getBlockType(valueType uint32) (*FuncType, error) {
	switch ValueType(valueType) {
	case Block0:
		return &blockTypes[0], nil
	case I32:
		return &blockTypes[1], nil
	case I64:
		return &blockTypes[2], nil
	case F32:
		return &blockTypes[3], nil
	case F64:
		return &blockTypes[4], nil
	}
	return nil, fmt.Errorf("invalid block value_type %#x", valueType)
}

// loadState carries the in-progress module plus the caller-supplied
// import table while Load walks sections. Keeping it distinct from
// Module avoids leaking the raw input reader into the long-lived
// runtime struct.
type loadState struct {
	m       *Module
	imports []Import

	fullData    []byte
	exportTable []rawExport
}

// Load parses and validates a WASM module's bytes, resolving imports
// from the given table and the requested named exports from exportSpecs.
// It performs section parsing plus the validate-only control-flow walk
// (mirroring find_blocks); Prepare must be called afterward to translate
// the module into direct-dispatch bytecode before it can be run.
func Load(data []byte, imports []Import, exportSpecs []ExportSpec) (*Module, error) {
	r := newReader(data)

	magic, err := r.u32le()
	if err != nil {
		return nil, err
	}
	if magic != wasmMagic {
		return nil, fmt.Errorf("bad magic")
	}
	version, err := r.u32le()
	if err != nil {
		return nil, err
	}
	if version != wasmVersion {
		return nil, fmt.Errorf("bad version")
	}

	m := &Module{StartFunc: -1}
	st := &loadState{m: m, imports: imports, fullData: data}

	if err := st.parseSections(r); err != nil {
		return nil, err
	}

	for f := m.NumImports; f < len(m.Funcs); f++ {
		if err := st.findBlocks(&m.Funcs[f], data); err != nil {
			return nil, fmt.Errorf("function %d: %w", f, err)
		}
	}

	if err := st.fillExports(exportSpecs); err != nil {
		return nil, err
	}

	if len(m.Globals) > 0 {
		m.llvmStackStart = m.Globals[0]
	}

	return m, nil
}

type rawExport struct {
	Kind  int
	Name  string
	Index uint32
}

func (st *loadState) parseSections(r *reader) error {
	type section struct {
		pos, length int
	}
	var sections [numSections]section

	for r.remaining() > 0 {
		id, err := r.byte()
		if err != nil {
			return err
		}
		length, err := r.uleb()
		if err != nil {
			return err
		}
		if int(id) >= numSections {
			return fmt.Errorf("unknown section %d", id)
		}
		if int(length) > r.remaining() {
			return fmt.Errorf("section %d out of bounds", id)
		}
		sections[id] = section{pos: r.pos, length: int(length)}
		r.pos += int(length)
	}

	var rawExports []rawExport

	order := []int{SecType, SecImport, SecFunction, SecTable, SecMemory, SecGlobal, SecExport, SecStart, SecElement, SecCode, SecData}
	for _, id := range order {
		sec := sections[id]
		if sec.length == 0 {
			continue
		}
		sr := newReader(r.data[sec.pos : sec.pos+sec.length])
		var err error
		switch id {
		case SecType:
			err = st.parseTypes(sr)
		case SecImport:
			err = st.parseImports(sr)
		case SecFunction:
			err = st.parseFunctions(sr)
		case SecTable:
			err = st.parseTables(sr)
		case SecMemory:
			err = st.parseMemory(sr)
		case SecGlobal:
			err = st.parseGlobals(sr)
		case SecExport:
			rawExports, err = st.parseExports(sr)
		case SecStart:
			err = st.parseStart(sr)
		case SecElement:
			err = st.parseElements(sr)
		case SecCode:
			err = st.parseCode(sr, sec.pos)
		case SecData:
			err = st.parseData(sr)
		}
		if err != nil {
			return fmt.Errorf("section %d: %w", id, err)
		}
	}

	st.exportTable = rawExports
	return nil
}

func (st *loadState) parseTypes(sz *reader) error {
	m := st.m
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	if int(count) > sz.remaining()/3 {
		return fmt.Errorf("too many types")
	}
	m.Types = make([]FuncType, count)
	for c := range m.Types {
		t := &m.Types[c]
		form, err := sz.uleb()
		if err != nil {
			return err
		}
		if ValueType(form) != FuncRef {
			return fmt.Errorf("must be function type")
		}
		numParams, err := sz.uleb()
		if err != nil {
			return err
		}
		if int(numParams) > sz.remaining() {
			return fmt.Errorf("too many parameters")
		}
		t.Params = make([]ValueType, numParams)
		for p := range t.Params {
			v, err := sz.uleb()
			if err != nil {
				return err
			}
			t.Params[p] = ValueType(v)
		}
		numResults, err := sz.uleb()
		if err != nil {
			return err
		}
		if numResults > MaxResults {
			return fmt.Errorf("too many results")
		}
		t.Results = make([]ValueType, numResults)
		for rr := range t.Results {
			v, err := sz.uleb()
			if err != nil {
				return err
			}
			t.Results[rr] = ValueType(v)
		}
		t.Mask = typeMask(t)
	}
	return nil
}

func readString(sz *reader) (string, error) {
	n, err := sz.uleb()
	if err != nil {
		return "", err
	}
	b, err := sz.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (st *loadState) importFunction(name string, typ *FuncType) error {
	m := st.m
	var found *Import
	for i := range st.imports {
		if st.imports[i].Name == name {
			found = &st.imports[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("import %s not found", name)
	}
	wantMask, err := calcTypeMaskString(found.Mask)
	if err != nil {
		return err
	}
	if wantMask != typ.Mask {
		return fmt.Errorf("import %s type mismatch", name)
	}

	m.NumImports++
	m.Funcs = append(m.Funcs, Block{Type: typ, Thunk: found.Thunk})
	return nil
}

func (st *loadState) parseImports(sz *reader) error {
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		if _, err := readString(sz); err != nil { // module name, unused
			return err
		}
		name, err := readString(sz)
		if err != nil {
			return err
		}
		kind, err := sz.byte()
		if err != nil {
			return err
		}
		switch int(kind) {
		case KindFunction:
			tidx, err := sz.uleb()
			if err != nil {
				return err
			}
			if int(tidx) >= len(st.m.Types) {
				return fmt.Errorf("bad type index")
			}
			if err := st.importFunction(name, &st.m.Types[tidx]); err != nil {
				return err
			}
		default:
			return fmt.Errorf("import of kind %d not supported", kind)
		}
	}
	return nil
}

func (st *loadState) parseFunctions(sz *reader) error {
	m := st.m
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	if int(count) > sz.remaining() {
		return fmt.Errorf("too many functions")
	}
	base := len(m.Funcs)
	m.Funcs = append(m.Funcs, make([]Block, count)...)
	for f := base; f < len(m.Funcs); f++ {
		tidx, err := sz.uleb()
		if err != nil {
			return err
		}
		if int(tidx) >= len(m.Types) {
			return fmt.Errorf("bad type index")
		}
		m.Funcs[f].Type = &m.Types[tidx]
	}
	return nil
}

func (st *loadState) parseTables(sz *reader) error {
	m := st.m
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("only 1 default table supported")
	}
	typ, err := sz.uleb()
	if err != nil {
		return err
	}
	if ValueType(typ) != AnyFunc {
		return fmt.Errorf("must be funcref")
	}
	flags, err := sz.byte()
	if err != nil {
		return err
	}
	size, err := sz.uleb()
	if err != nil {
		return err
	}
	m.Table.Initial = size
	m.Table.Size = size
	if flags&0x1 != 0 {
		max, err := sz.uleb()
		if err != nil {
			return err
		}
		if max < MaxTableSize {
			m.Table.Maximum = max
		} else {
			m.Table.Maximum = MaxTableSize
		}
	} else {
		m.Table.Maximum = MaxTableSize
	}
	if m.Table.Size > m.Table.Maximum {
		return fmt.Errorf("bad table size")
	}
	m.Table.Entries = make([]uint32, m.Table.Size)
	return nil
}

func (st *loadState) parseMemory(sz *reader) error {
	m := st.m
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("only 1 default memory supported")
	}
	flags, err := sz.byte()
	if err != nil {
		return err
	}
	pages, err := sz.uleb()
	if err != nil {
		return err
	}
	m.Memory.Initial = pages
	m.Memory.Pages = pages
	if flags&0x1 != 0 {
		max, err := sz.uleb()
		if err != nil {
			return err
		}
		if max < MaxMemoryPages {
			m.Memory.Maximum = max
		} else {
			m.Memory.Maximum = MaxMemoryPages
		}
	} else {
		m.Memory.Maximum = MaxMemoryPages
	}
	if flags&0x8 != 0 {
		if _, err := sz.uleb(); err != nil { // custom page size, unused
			return err
		}
	}
	if m.Memory.Pages > m.Memory.Maximum {
		return fmt.Errorf("bad memory size")
	}
	m.Memory.Bytes = make([]byte, uint64(m.Memory.Pages)*VMPageSize+1024)
	return nil
}

func runInitExpr(m *Module, want ValueType, sz *reader) (Value, error) {
	opcode, err := sz.byte()
	if err != nil {
		return Value{}, err
	}
	var val Value
	switch Op(opcode) {
	case GlobalGet:
		idx, err := sz.uleb()
		if err != nil {
			return Value{}, err
		}
		if int(idx) >= len(m.Globals) {
			return Value{}, fmt.Errorf("bad global index")
		}
		val = m.Globals[idx]
	case I32Const:
		v, err := sz.sleb(32)
		if err != nil {
			return Value{}, err
		}
		val = I32Val(int32(v))
	case I64Const:
		v, err := sz.sleb(64)
		if err != nil {
			return Value{}, err
		}
		val = I64Val(v)
	case F32Const:
		v, err := sz.f32le()
		if err != nil {
			return Value{}, err
		}
		val = F32Val(v)
	case F64Const:
		v, err := sz.f64le()
		if err != nil {
			return Value{}, err
		}
		val = F64Val(v)
	default:
		return Value{}, fmt.Errorf("init expression not constant (opcode = %#x)", opcode)
	}

	end, err := sz.byte()
	if err != nil {
		return Value{}, err
	}
	if Op(end) != End {
		return Value{}, fmt.Errorf("end opcode expected after init expression")
	}
	if val.Type != want {
		return Value{}, fmt.Errorf("init expression type mismatch")
	}
	return val, nil
}

func (st *loadState) parseGlobals(sz *reader) error {
	m := st.m
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	if int(count) > sz.remaining()/2 {
		return fmt.Errorf("too many globals")
	}
	m.Globals = make([]Value, count)
	for g := range m.Globals {
		typ, err := sz.uleb()
		if err != nil {
			return err
		}
		if _, err := sz.byte(); err != nil { // mutability, unused
			return err
		}
		val, err := runInitExpr(m, ValueType(typ), sz)
		if err != nil {
			return err
		}
		m.Globals[g] = val
	}
	return nil
}

func (st *loadState) parseExports(sz *reader) ([]rawExport, error) {
	count, err := sz.uleb()
	if err != nil {
		return nil, err
	}
	if int(count) > sz.remaining()/3 {
		return nil, fmt.Errorf("too many exports")
	}
	exports := make([]rawExport, count)
	for e := range exports {
		name, err := readString(sz)
		if err != nil {
			return nil, err
		}
		kind, err := sz.byte()
		if err != nil {
			return nil, err
		}
		idx, err := sz.uleb()
		if err != nil {
			return nil, err
		}
		exports[e] = rawExport{Kind: int(kind), Name: name, Index: idx}
	}
	return exports, nil
}

func (st *loadState) parseStart(sz *reader) error {
	m := st.m
	idx, err := sz.uleb()
	if err != nil {
		return err
	}
	if int(idx) >= len(m.Funcs)-m.NumImports {
		return fmt.Errorf("bad start function index")
	}
	fidx := int(idx) + m.NumImports
	typ := m.Funcs[fidx].Type
	if len(typ.Params) != 0 || len(typ.Results) != 0 {
		return fmt.Errorf("bad start function type")
	}
	m.StartFunc = int32(fidx)
	return nil
}

func (st *loadState) parseElements(sz *reader) error {
	m := st.m
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	for c := uint32(0); c < count; c++ {
		flags, err := sz.uleb()
		if err != nil {
			return err
		}
		if flags != 0 {
			return fmt.Errorf("flags must be 0")
		}
		init, err := runInitExpr(m, I32, sz)
		if err != nil {
			return err
		}
		offset := init.U32()
		numElem, err := sz.uleb()
		if err != nil {
			return err
		}
		if uint64(offset)+uint64(numElem) > uint64(m.Table.Size) {
			return fmt.Errorf("table init out of bounds")
		}
		for n := uint32(0); n < numElem; n++ {
			v, err := sz.uleb()
			if err != nil {
				return err
			}
			m.Table.Entries[offset+n] = v
		}
	}
	return nil
}

func (st *loadState) parseData(sz *reader) error {
	m := st.m
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	for s := uint32(0); s < count; s++ {
		flags, err := sz.uleb()
		if err != nil {
			return err
		}
		if flags != 0 {
			return fmt.Errorf("flags must be 0")
		}
		init, err := runInitExpr(m, I32, sz)
		if err != nil {
			return err
		}
		offset := init.U32()
		size, err := sz.uleb()
		if err != nil {
			return err
		}
		if uint64(offset)+uint64(size) > uint64(m.Memory.Pages)*VMPageSize {
			return fmt.Errorf("memory init out of bounds")
		}
		data, err := sz.bytes(int(size))
		if err != nil {
			return err
		}
		copy(m.Memory.Bytes[offset:], data)
	}
	return nil
}

func (st *loadState) parseCode(sz *reader, sectionStart int) error {
	m := st.m
	count, err := sz.uleb()
	if err != nil {
		return err
	}
	if int(count) > len(m.Funcs)-m.NumImports {
		return fmt.Errorf("too many functions")
	}

	for b := uint32(0); b < count; b++ {
		fn := &m.Funcs[int(m.NumImports)+int(b)]
		bodySize, err := sz.uleb()
		if err != nil {
			return err
		}
		if int(bodySize) > sz.remaining() {
			return fmt.Errorf("function out of bounds")
		}
		payloadStart := sz.pos

		numLocalGroups, err := sz.uleb()
		if err != nil {
			return err
		}

		savePos := sz.pos
		fn.NumLocals = 0
		for l := uint32(0); l < numLocalGroups; l++ {
			lecount, err := sz.uleb()
			if err != nil {
				return err
			}
			if int(lecount) > MaxLocals-fn.NumLocals {
				return fmt.Errorf("too many locals")
			}
			fn.NumLocals += int(lecount)
			if _, err := sz.uleb(); err != nil { // type index, re-read below
				return err
			}
		}
		fn.Locals = make([]ValueType, fn.NumLocals)

		sz.pos = savePos
		lidx := 0
		for l := uint32(0); l < numLocalGroups; l++ {
			lecount, err := sz.uleb()
			if err != nil {
				return err
			}
			tidx, err := sz.uleb()
			if err != nil {
				return err
			}
			for i := uint32(0); i < lecount; i++ {
				fn.Locals[lidx] = ValueType(tidx)
				lidx++
			}
		}

		fn.StartAddr = uint32(sectionStart + sz.pos)
		fn.EndAddr = uint32(sectionStart+payloadStart) + bodySize - 1
		if int(fn.EndAddr) >= len(st.fullBytes()) || st.fullBytes()[fn.EndAddr] != byte(End) {
			return fmt.Errorf("function block doesn't end with End opcode")
		}
		sz.pos = payloadStart + int(bodySize)
	}

	return nil
}

// fullBytes returns the complete module byte slice so parseCode can
// validate a function's terminating opcode against an absolute offset;
// set once by Load before sections are walked.
func (st *loadState) fullBytes() []byte {
	return st.fullData
}

func (st *loadState) fillExports(specs []ExportSpec) error {
	m := st.m
	m.FuncExports = make([]int, len(specs))
	for i, spec := range specs {
		wantMask, err := calcTypeMaskString(spec.Mask)
		if err != nil {
			return err
		}
		found := -1
		for _, exp := range st.exportTable {
			if exp.Kind != KindFunction || exp.Name != spec.Name {
				continue
			}
			if int(exp.Index) >= len(m.Funcs) {
				return fmt.Errorf("export %s: bad function index", spec.Name)
			}
			fn := &m.Funcs[exp.Index]
			if fn.Type.Mask != wantMask {
				return fmt.Errorf("export %s type mismatch", spec.Name)
			}
			found = int(exp.Index)
			break
		}
		if found < 0 {
			return fmt.Errorf("export %s not found", spec.Name)
		}
		m.FuncExports[i] = found
	}
	return nil
}
