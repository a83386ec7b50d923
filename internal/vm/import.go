package vm

import "fmt"

// ImportThunk is a host function bound to an imported module function.
// It receives the guest linear memory and a slice over the operand-slot
// frame laid out per the signature (params in order, result slot 0
// reused for the return value on the way back out). Mirrors the thunk
// signature in vm.h's vm_import_t and the host-call bridge in spec §4.6.
type ImportThunk func(mem *Memory, args []Value) Value

// Import is one entry in the host import table passed to Load. Mask is
// a signature string in the loader's compact notation: an optional
// "X " result prefix (one of i/I/f/F for i32/i64/f32/f64, absent for no
// result) followed by one letter per parameter, e.g. "i ii" (i32
// result, two i32 params) or "ii" (no result, two i32 params).
type Import struct {
	Name  string
	Mask  string
	Thunk ImportThunk
}

func valueTypeFromLetter(c byte) (ValueType, error) {
	switch c {
	case 'i':
		return I32, nil
	case 'I':
		return I64, nil
	case 'f':
		return F32, nil
	case 'F':
		return F64, nil
	}
	return 0, fmt.Errorf("bad type letter %q in import mask", c)
}

// calcTypeMaskString computes the same packed-nibble mask as typeMask,
// but from the compact mask-string notation imports/exports are
// specified in by callers. Mirrors calc_type_mask in load.c.
func calcTypeMaskString(s string) (uint64, error) {
	mask := uint64(0x80)

	if len(s) >= 2 && s[1] == ' ' {
		rt, err := valueTypeFromLetter(s[0])
		if err != nil {
			return 0, err
		}
		mask |= 0x80 - uint64(rt)
		s = s[2:]
	}
	mask <<= 4

	for i := 0; i < len(s); i++ {
		pt, err := valueTypeFromLetter(s[i])
		if err != nil {
			return 0, err
		}
		mask <<= 4
		mask |= 0x80 - uint64(pt)
	}

	return mask, nil
}
