// Package config loads the server's static YAML settings, persists and
// restores the cvar archive, and applies CLI overrides on top of both.
// Mirrors the teacher's load/save-struct idiom (assets.Manifest) and
// spec §6.5's "environment access is CLI-driven" requirement.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the static settings read once at startup: listen
// address, tick rate, which WASM modules to load, and the rate-limiter
// defaults new clients inherit before any per-client override lands via
// userinfo. Everything else (cvars, per-client state) lives elsewhere.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	FrameRateHz int    `yaml:"frame_rate_hz"`
	GameModule  string `yaml:"game_module"`
	CGameModule string `yaml:"cgame_module"`

	RateDefault  uint32 `yaml:"rate_default"`
	SVTimeoutSec int    `yaml:"sv_timeout_sec"`

	AdminListen string `yaml:"admin_listen"` // JWT-authenticated websocket admin channel (internal/oob)

	ConfigDir string `yaml:"config_dir"` // where per-user *.cfg archives live

	InstallDir string `yaml:"install_dir"` // game content root (internal/assets); empty disables FS_OpenFile and baseline building
	DemoDir    string `yaml:"demo_dir"`    // where recorded demos are written
}

// Default returns the settings a fresh install ships with, matching the
// constants spec §5 and §6.5 name (1 s retransmit window aside, which is
// a protocol constant, not a config knob).
func Default() ServerConfig {
	return ServerConfig{
		Listen:       ":27910",
		FrameRateHz:  10,
		GameModule:   "game.wasm",
		CGameModule:  "cgame.wasm",
		RateDefault:  15000,
		SVTimeoutSec: 90,
		AdminListen:  ":27911",
		ConfigDir:    "cfg",
		InstallDir:   "",
		DemoDir:      "demos",
	}
}

// Load reads and parses a YAML server config file.
func Load(path string) (ServerConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read server config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse server config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg back out as YAML, for admin tooling that edits
// settings at runtime and wants them to survive a restart.
func (cfg ServerConfig) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal server config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write server config: %w", err)
	}
	return nil
}
