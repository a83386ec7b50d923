package assets

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// MD3 model layout, used for player/weapon/item models that reference
// their own shaders independently of the map surface that spawns them.
const (
	modelFileMagic     = "IDP3"
	modelFileVersion   = 15
	modelHeaderSize    = 108
	modelShaderRefSize = 68 // 64-byte name + int32 shader index
)

// ScanModelShaderRefs reads an MD3 model's per-surface shader table and
// returns the deduplicated set of shader names it references, so the
// download manifest can resolve them to textures the same way it resolves
// a map surface's shaders (resolveShaderTextures in mappak.go).
func ScanModelShaderRefs(r io.ReaderAt, size int64) ([]string, error) {
	if size < modelHeaderSize {
		return nil, fmt.Errorf("model file too small: %d bytes", size)
	}

	header := make([]byte, modelHeaderSize)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("read model header: %w", err)
	}
	if string(header[0:4]) != modelFileMagic {
		return nil, fmt.Errorf("invalid model file magic: %q", header[0:4])
	}
	if version := int32(binary.LittleEndian.Uint32(header[4:8])); version != modelFileVersion {
		return nil, fmt.Errorf("unsupported model file version: %d", version)
	}

	numSurfaces := int32(binary.LittleEndian.Uint32(header[76:80]))
	surfaceOfs := int64(binary.LittleEndian.Uint32(header[96:100]))

	var refs []string
	seen := make(map[string]bool)

	for i := int32(0); i < numSurfaces; i++ {
		hdr, ofsShaders, ofsEnd, err := readSurfaceHeader(r, surfaceOfs, size)
		if err != nil {
			return nil, fmt.Errorf("model surface %d: %w", i, err)
		}

		numShaders := int32(binary.LittleEndian.Uint32(hdr[72:76]))
		for j := int32(0); j < numShaders; j++ {
			shaderOfs := surfaceOfs + ofsShaders + int64(j)*modelShaderRefSize
			if shaderOfs+modelShaderRefSize > size {
				break
			}
			shaderData := make([]byte, modelShaderRefSize)
			if _, err := r.ReadAt(shaderData, shaderOfs); err != nil {
				break
			}
			name := strings.ReplaceAll(cStringField(shaderData[:64]), "\\", "/")
			if name != "" && !seen[name] {
				seen[name] = true
				refs = append(refs, name)
			}
		}

		surfaceOfs += ofsEnd
	}

	return refs, nil
}

// readSurfaceHeader reads one MD3 surface header, far enough to get its
// shader-table offset (ofsShaders) and its total size (ofsEnd, relative
// to the surface's own start), verifying the surface's own magic along
// the way — each surface restates it independently of the model header.
func readSurfaceHeader(r io.ReaderAt, surfaceOfs, size int64) (hdr []byte, ofsShaders, ofsEnd int64, err error) {
	const surfaceHeaderSize = 12*4 + 64 + 4
	if surfaceOfs+surfaceHeaderSize > size {
		return nil, 0, 0, fmt.Errorf("surface header past end of file")
	}

	hdr = make([]byte, surfaceHeaderSize)
	if _, err := r.ReadAt(hdr, surfaceOfs); err != nil {
		return nil, 0, 0, fmt.Errorf("read surface header: %w", err)
	}
	if string(hdr[0:4]) != modelFileMagic {
		return nil, 0, 0, fmt.Errorf("invalid surface magic at offset %d", surfaceOfs)
	}

	ofsShaders = int64(binary.LittleEndian.Uint32(hdr[88:92]))
	ofsEnd = int64(binary.LittleEndian.Uint32(hdr[104:108]))
	return hdr, ofsShaders, ofsEnd, nil
}
