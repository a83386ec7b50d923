// Package imports implements the host side of the WASM host-call bridge:
// the concrete import table (Print, Error, Trace, Cvar_Register,
// SetConfigstring, LinkEntity/UnlinkEntity, FS_OpenFile/ReadFile/CloseFile,
// math helpers, memcmp) bound to a running server/game Host, plus the
// guest-memory argument validation every thunk needs before touching a
// guest pointer. Grounded on spec §4.6 and original_source/src/common/vm's
// load.c (import signature matching).
package imports

import (
	"fmt"

	"github.com/sauerbraten-ng/q2pro-ng/internal/vm"
)

// GuestString reads a NUL-terminated string out of guest memory starting
// at ptr, validating the terminator lies within bounds. Mirrors the
// string-argument contract in spec §4.6.
func GuestString(mem *vm.Memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", fmt.Errorf("null string pointer")
	}
	if int(ptr) >= len(mem.Bytes) {
		return "", fmt.Errorf("string pointer out of bounds")
	}
	end := ptr
	for {
		if int(end) >= len(mem.Bytes) {
			return "", fmt.Errorf("unterminated guest string")
		}
		if mem.Bytes[end] == 0 {
			break
		}
		end++
	}
	return string(mem.Bytes[ptr:end]), nil
}

// GuestBytes validates and returns a count-byte array starting at ptr,
// with no alignment requirement (byte arrays only). Mirrors the
// array-argument contract in spec §4.6.
func GuestBytes(mem *vm.Memory, ptr, count uint32) ([]byte, error) {
	if count == 0 {
		return nil, nil
	}
	if ptr == 0 {
		return nil, fmt.Errorf("null array pointer")
	}
	end := uint64(ptr) + uint64(count)
	if end > uint64(len(mem.Bytes)) {
		return nil, fmt.Errorf("array pointer out of bounds")
	}
	return mem.Bytes[ptr:end], nil
}

// putGuestString writes s NUL-terminated into the size-byte guest buffer
// at ptr, truncating if necessary, and returns the untruncated length
// the way Cvar_VariableString/GetConfigstring report it back to the
// guest regardless of how much actually fit.
func putGuestString(mem *vm.Memory, ptr, size uint32, s string) (int, error) {
	if size == 0 {
		return len(s), nil
	}
	buf, err := GuestBytes(mem, ptr, size)
	if err != nil {
		return 0, err
	}
	n := copy(buf[:size-1], s)
	buf[n] = 0
	return len(s), nil
}

// GuestPtr validates a pointer to a size-byte, align-byte-aligned value
// and returns its byte offset. A zero pointer is rejected unless
// nullable is set, matching the "NULL-allowed variant" spec carves out.
func GuestPtr(mem *vm.Memory, ptr uint32, size, align uint32, nullable bool) (uint32, error) {
	if ptr == 0 {
		if nullable {
			return 0, nil
		}
		return 0, fmt.Errorf("null pointer")
	}
	if ptr%align != 0 {
		return 0, fmt.Errorf("misaligned pointer %#x (align %d)", ptr, align)
	}
	if uint64(ptr)+uint64(size) > uint64(len(mem.Bytes)) {
		return 0, fmt.Errorf("pointer out of bounds")
	}
	return ptr, nil
}
