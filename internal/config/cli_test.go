package config

import "testing"

func TestParseArgsAppliesSetOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register("sv_cheats", "0", 0)

	args := []string{"--config", "custom.yaml", "+set", "sv_cheats", "1", "+set", "hostname", "my server"}
	opts, err := ParseArgs(r, args)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}

	if opts.ConfigPath != "custom.yaml" {
		t.Fatalf("got config path %q, want custom.yaml", opts.ConfigPath)
	}
	if got := r.VariableString("sv_cheats"); got != "1" {
		t.Fatalf("got sv_cheats=%q, want 1", got)
	}
	if got := r.VariableString("hostname"); got != "my server" {
		t.Fatalf("+set takes the following argument whole as the value, got %q", got)
	}
}

func TestParseArgsDefaultsWithNoOverrides(t *testing.T) {
	r := NewRegistry()
	opts, err := ParseArgs(r, nil)
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if opts.ConfigPath != "server.yaml" {
		t.Fatalf("got %q, want the default config path", opts.ConfigPath)
	}
	if opts.ArchivePath != "cfg/server.cfg" {
		t.Fatalf("got %q, want the default archive path", opts.ArchivePath)
	}
}
