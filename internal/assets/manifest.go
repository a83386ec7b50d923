package assets

import (
	"encoding/json"
	"fmt"
	"os"
)

// Manifest caches file index, baseline file set, and shader definitions
// to avoid re-scanning pk3s for map and demo pk3 builders.
type Manifest struct {
	Games map[string]*GameManifest `json:"games"`
}

// GameManifest holds per-game manifest data.
type GameManifest struct {
	FileIndex     map[string]string   `json:"fileIndex"`     // lowered path → source pk3
	BaselineFiles map[string]bool     `json:"baselineFiles"` // paths in baseline + override pk3s
	Shaders       map[string][]string `json:"shaders"`       // shader name → texture deps
	ShaderFiles   map[string]string   `json:"shaderFiles"`   // shader name → source .shader script path
}

// LoadManifest loads a manifest from a JSON file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Save writes the manifest to a JSON file.
func (m *Manifest) Save(path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// OverlayOnto returns a GameManifest holding base's data with mp's entries
// taking precedence on any key collision — the manifest-level counterpart
// of the file-load-order overlay CollectGamePk3s applies within a single
// game directory, extended across the base-game/mission-pack boundary.
func (mp *GameManifest) OverlayOnto(base *GameManifest) *GameManifest {
	merged := &GameManifest{
		FileIndex:     make(map[string]string, len(base.FileIndex)+len(mp.FileIndex)),
		BaselineFiles: make(map[string]bool, len(base.BaselineFiles)+len(mp.BaselineFiles)),
		Shaders:       make(map[string][]string, len(base.Shaders)+len(mp.Shaders)),
		ShaderFiles:   make(map[string]string, len(base.ShaderFiles)+len(mp.ShaderFiles)),
	}
	for k, v := range base.FileIndex {
		merged.FileIndex[k] = v
	}
	for k, v := range mp.FileIndex {
		merged.FileIndex[k] = v
	}
	for k := range base.BaselineFiles {
		merged.BaselineFiles[k] = true
	}
	for k := range mp.BaselineFiles {
		merged.BaselineFiles[k] = true
	}
	for k, v := range base.Shaders {
		merged.Shaders[k] = v
	}
	for k, v := range mp.Shaders {
		merged.Shaders[k] = v
	}
	for k, v := range base.ShaderFiles {
		merged.ShaderFiles[k] = v
	}
	for k, v := range mp.ShaderFiles {
		merged.ShaderFiles[k] = v
	}
	return merged
}
