package config

import (
	"github.com/spf13/pflag"
)

// CLIOptions are the flag-parsed command-line switches, separate from
// both the YAML ServerConfig and the cvar Registry: where to find the
// YAML file and the cvar archive, matching spec §6.5's "environment
// access is CLI-driven" stance (no process-environment-variable path).
type CLIOptions struct {
	ConfigPath  string
	ArchivePath string
}

// ParseArgs extracts `+set <name> <value>` tokens (applied directly to
// reg, matching the original's command-line cvar-override convention)
// from args, then parses whatever remains with pflag for the flag-style
// switches. Returns the parsed CLIOptions; args itself is left
// untouched.
func ParseArgs(reg *Registry, args []string) (CLIOptions, error) {
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "+set" && i+2 < len(args) {
			reg.Set(args[i+1], args[i+2])
			i += 2
			continue
		}
		rest = append(rest, args[i])
	}

	fs := pflag.NewFlagSet("q2pro-ngd", pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", "server.yaml", "path to the static YAML server config")
	archivePath := fs.StringP("archive", "a", "cfg/server.cfg", "path to the persisted cvar archive")
	if err := fs.Parse(rest); err != nil {
		return CLIOptions{}, err
	}

	return CLIOptions{ConfigPath: *configPath, ArchivePath: *archivePath}, nil
}
