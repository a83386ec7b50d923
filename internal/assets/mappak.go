package assets

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
)

// BuildMapPak builds a per-map pk3 containing all map-specific assets not in the baseline.
func BuildMapPak(mapName, game string, manifest *Manifest, installDir, outputPath string) error {
	gm, ok := manifest.Games[game]
	if !ok {
		return fmt.Errorf("game %q not found in manifest", game)
	}

	needed := make(map[string]bool)

	// 1. BSP file
	bspPath := "maps/" + mapName + ".bsp"
	lowerBSP := strings.ToLower(bspPath)
	if _, ok := gm.FileIndex[lowerBSP]; !ok {
		return fmt.Errorf("BSP not found: %s", bspPath)
	}
	needed[lowerBSP] = true

	// 2. Parse BSP
	bspData, err := readFileFromIndex(lowerBSP, gm.FileIndex)
	if err != nil {
		return fmt.Errorf("read BSP: %w", err)
	}
	mapRefs, err := ScanMapAssets(bytes.NewReader(bspData), int64(len(bspData)))
	if err != nil {
		return fmt.Errorf("scan map assets: %w", err)
	}

	log.Printf("  %s: map has %d shaders, %d models, %d sounds, %d music",
		mapName, len(mapRefs.ShaderRefs), len(mapRefs.EntityModels), len(mapRefs.Sounds), len(mapRefs.Music))

	// 3. Resolve BSP surface shaders
	for _, shaderName := range mapRefs.ShaderRefs {
		resolveShaderTextures(shaderName, gm, needed)
	}

	// 4. Resolve entity models (model2)
	for _, modelPath := range mapRefs.EntityModels {
		resolveModel(modelPath, gm, needed)
	}

	// 5. Resolve entity sounds
	for _, soundPath := range mapRefs.Sounds {
		lower := strings.ToLower(soundPath)
		if _, ok := gm.FileIndex[lower]; ok {
			needed[lower] = true
		}
	}

	// 6. Resolve music
	for _, musicPath := range mapRefs.Music {
		lower := strings.ToLower(musicPath)
		if _, ok := gm.FileIndex[lower]; ok {
			needed[lower] = true
		}
	}

	// 9. Include levelshot
	for _, ext := range []string{".jpg", ".tga"} {
		ls := "levelshots/" + mapName + ext
		if _, ok := gm.FileIndex[ls]; ok {
			needed[ls] = true
			break
		}
	}

	// 10. Include arena file
	arenaPath := "scripts/" + mapName + ".arena"
	if _, ok := gm.FileIndex[arenaPath]; ok {
		needed[arenaPath] = true
	}

	// 11. Exclude baseline files
	for path := range needed {
		if gm.BaselineFiles[path] {
			delete(needed, path)
		}
	}

	if len(needed) == 0 {
		log.Printf("  %s: no non-baseline files needed", mapName)
		return nil
	}

	// Extract and write
	paths := make([]string, 0, len(needed))
	for p := range needed {
		paths = append(paths, p)
	}

	files, err := ExtractFilesFromPk3s(paths, gm.FileIndex)
	if err != nil {
		return fmt.Errorf("extract files: %w", err)
	}

	if err := WritePk3(outputPath, files); err != nil {
		return fmt.Errorf("write map pk3: %w", err)
	}

	log.Printf("  %s: %d files", mapName, len(files))
	return nil
}

// resolveShaderTextures resolves a shader name to its texture dependencies and adds them to needed.
func resolveShaderTextures(shaderName string, gm *GameManifest, needed map[string]bool) {
	lower := strings.ToLower(shaderName)

	// Look up shader definition
	if textures, ok := gm.Shaders[lower]; ok {
		for _, tex := range textures {
			if resolved, ok := ResolveTexture(tex, gm.FileIndex); ok {
				needed[resolved] = true
			}
		}
		// If shader def has no texture refs (e.g. only surfaceparms),
		// the engine uses the shader name as an implicit texture
		if len(textures) == 0 {
			if resolved, ok := ResolveTexture(lower, gm.FileIndex); ok {
				needed[resolved] = true
			}
		}
		// Include the .shader script file so the engine can find the definition
		if scriptPath, ok := gm.ShaderFiles[lower]; ok {
			needed[scriptPath] = true
		}
	} else {
		// No shader def — treat as direct texture path
		if resolved, ok := ResolveTexture(lower, gm.FileIndex); ok {
			needed[resolved] = true
		}
	}
}

// resolveModel resolves an MD3 model and all its shader/texture
// dependencies, including any sibling .skin file's surface overrides —
// player and item models usually paint through a .skin rather than
// their own shader table, so skipping it would leave a joining client
// unable to render the model it was just told to spawn.
func resolveModel(modelPath string, gm *GameManifest, needed map[string]bool) {
	lower := strings.ToLower(modelPath)
	if _, ok := gm.FileIndex[lower]; !ok {
		return
	}
	needed[lower] = true

	data, err := readFileFromIndex(lower, gm.FileIndex)
	if err != nil {
		return
	}
	shaderRefs, err := ScanModelShaderRefs(bytes.NewReader(data), int64(len(data)))
	if err == nil {
		for _, ref := range shaderRefs {
			resolveShaderTextures(ref, gm, needed)
		}
	}

	resolveModelSkin(lower, gm, needed)
}

// resolveModelSkin looks for a .skin file sharing the model's base name
// and, if present, resolves every texture reference it names.
func resolveModelSkin(modelPath string, gm *GameManifest, needed map[string]bool) {
	base := strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
	skinPath := base + ".skin"
	if _, ok := gm.FileIndex[skinPath]; !ok {
		return
	}
	needed[skinPath] = true

	data, err := readFileFromIndex(skinPath, gm.FileIndex)
	if err != nil {
		return
	}
	textures, err := ScanSkinTextureRefs(bytes.NewReader(data))
	if err != nil {
		return
	}
	for _, tex := range textures {
		if resolved, ok := ResolveTexture(tex, gm.FileIndex); ok {
			needed[resolved] = true
		}
	}
}

// MapPakFileSet returns the set of files in a map pk3 by reading it.
func MapPakFileSet(mapPk3Path string) (map[string]bool, error) {
	fileSet := make(map[string]bool)
	err := IteratePk3(mapPk3Path, func(name string, open func() (io.ReadCloser, error)) error {
		fileSet[strings.ToLower(name)] = true
		return nil
	})
	return fileSet, err
}
