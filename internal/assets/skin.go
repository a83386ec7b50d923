package assets

import (
	"bufio"
	"io"
	"strings"
)

// ScanSkinTextureRefs parses a .skin file (comma-separated
// "surface,texture_path" lines) and returns the non-empty texture paths
// it names. Player and item models ship a sibling .skin file alongside
// their .md3 geometry, naming per-surface texture overrides the model's
// own shader table doesn't capture — resolveModel (mappak.go) reads one
// when present so a download manifest doesn't miss a player model's
// actual skin texture.
func ScanSkinTextureRefs(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var textures []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		_, texturePath, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		if texturePath = strings.TrimSpace(texturePath); texturePath != "" {
			textures = append(textures, texturePath)
		}
	}

	return textures, scanner.Err()
}
