// Command q2pro-ngd is the server process: it loads the static YAML
// config and persisted cvar archive, bootstraps the admin channel's
// JWT credential, opens the sqlite store, indexes install_dir's pk3s
// to serve the game WASM module's FS_OpenFile/FS_ReadFile imports, and
// runs the cooperative per-tick loop spec §5 describes, driving the
// "game" WASM module's RunFrame export once per tick and optionally
// appending a demo tick to an active admin-triggered recording
// (assets.go). It does not yet own a UDP listener or a connect
// handshake — those belong to a netchan.Channel per connected client,
// which this loop has nowhere to source from until clc_* parsing
// exists on this side of the wire, so for now the loop drives the
// simulation side of the protocol only, and svc_download/svc_zdownload
// content is reachable through the admin channel's "buildbaseline"
// command rather than a live per-client download responder.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/sauerbraten-ng/q2pro-ng/internal/authtoken"
	"github.com/sauerbraten-ng/q2pro-ng/internal/config"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netfield"
	"github.com/sauerbraten-ng/q2pro-ng/internal/oob"
	"github.com/sauerbraten-ng/q2pro-ng/internal/store"
	"github.com/sauerbraten-ng/q2pro-ng/internal/vm"
	"github.com/sauerbraten-ng/q2pro-ng/internal/vm/imports"
	"github.com/sauerbraten-ng/q2pro-ng/internal/world"
)

// gameExports is the subset of spec §6.4's ABI this loop drives
// directly: Init once at startup, RunFrame once per tick, Shutdown on
// exit. ClientBegin/ClientThink/ClientCommand take a client index and
// stay the module's entry points for a future per-connection session
// layer to call.
var gameExports = []vm.ExportSpec{
	{Name: "Init", Mask: ""},
	{Name: "RunFrame", Mask: "i"},
	{Name: "Shutdown", Mask: ""},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "q2pro-ngd:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	reg := config.NewRegistry()
	registerDefaultCvars(reg)

	opts, err := config.ParseArgs(reg, args)
	if err != nil {
		return fmt.Errorf("parse args: %w", err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = config.Default()
	}

	if err := os.MkdirAll(cfg.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := reg.LoadArchive(opts.ArchivePath); err != nil {
		return fmt.Errorf("load cvar archive: %w", err)
	}
	if v := reg.VariableString("admin_listen"); v != "" {
		cfg.AdminListen = v
	}

	netLog := config.NewLogger("net", nil)
	gameLog := config.NewLogger("game", nil)
	adminLog := config.NewLogger("admin", nil)

	db, err := store.Open(filepath.Join(cfg.ConfigDir, "state.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	issuer, err := bootstrapAdmin(reg, adminLog)
	if err != nil {
		return fmt.Errorf("bootstrap admin credentials: %w", err)
	}

	w := world.NewWorld(netfield.EntitynumWorld)
	host := imports.NewHost("game", w, netfield.MaxConfigstrings)

	srv := &server{
		cfg:      cfg,
		reg:      reg,
		store:    db,
		world:    w,
		host:     host,
		log:      gameLog,
		hostname: reg.VariableString("hostname"),
		started:  time.Now(),
	}

	if dir := reg.VariableString("install_dir"); dir != "" {
		content, err := loadPk3Content(dir)
		if err != nil {
			gameLog.Printf("install_dir %s not indexed: %v", dir, err)
		} else {
			host.OpenFile = content.Open
			srv.content = content
			gameLog.Printf("serving game content from %s", dir)
		}
	}

	if cfg.GameModule != "" {
		if err := srv.loadGameModule(cfg.GameModule); err != nil {
			gameLog.Printf("game module %s not loaded: %v", cfg.GameModule, err)
		}
	}

	admin := oob.NewServer(issuer, srv, adminLog)
	mux := http.NewServeMux()
	mux.Handle("/admin", admin)
	adminHTTP := &http.Server{Addr: cfg.AdminListen, Handler: mux}

	go func() {
		if err := adminHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			adminLog.Printf("admin listener stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	netLog.Printf("%s: frame rate %d Hz, admin channel on %s", cfg.Listen, cfg.FrameRateHz, cfg.AdminListen)
	srv.runLoop(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := adminHTTP.Shutdown(shutdownCtx); err != nil {
		adminLog.Printf("admin shutdown: %v", err)
	}

	srv.shutdownGameModule()

	if err := reg.SaveArchive(opts.ArchivePath); err != nil {
		gameLog.Printf("save cvar archive: %v", err)
	}
	return nil
}

// registerDefaultCvars sets up the handful of cvars a fresh install
// needs before any archive or WASM module has had a chance to register
// its own. Matches the well-known name/flag pairing for hostname,
// maxclients, and rate (Cvar_Get calls original_source's sv_main.c
// makes at startup); admin_password_hash and admin_jwt_secret have no
// original-source counterpart, since the admin channel replaces a
// plaintext rcon_password with authtoken's bcrypt hash plus a signed
// bearer token.
func registerDefaultCvars(reg *config.Registry) {
	def := config.Default()

	reg.Register("hostname", "q2pro-ng server", config.Archive|config.ServerInfo)
	reg.Register("maxclients", "8", config.Archive|config.Latch|config.ServerInfo)
	reg.Register("rate", fmt.Sprintf("%d", def.RateDefault), config.Archive)
	reg.Register("sv_timeout", fmt.Sprintf("%d", def.SVTimeoutSec), config.Archive)
	reg.Register("admin_listen", def.AdminListen, config.Archive)
	reg.Register("admin_password_hash", "", config.Archive)
	reg.Register("admin_jwt_secret", "", config.Archive)
	reg.Register("install_dir", def.InstallDir, config.Archive)
	reg.Register("demo_dir", def.DemoDir, config.Archive)
	reg.Register("gamedir", "basenac", config.Archive|config.ServerInfo)
}

// bootstrapAdmin ensures admin_password_hash and admin_jwt_secret are
// populated, prompting at the controlling TTY the first time a server
// starts with neither set. A non-interactive start (stdin not a
// terminal, e.g. under a service manager) with no password configured
// leaves the admin channel reachable only by whoever already holds its
// secret in the archive — there is nowhere safe to read a password
// from in that case.
func bootstrapAdmin(reg *config.Registry, log *config.Logger) (*authtoken.Issuer, error) {
	if reg.VariableString("admin_jwt_secret") == "" {
		var raw [32]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return nil, fmt.Errorf("generate admin jwt secret: %w", err)
		}
		reg.Set("admin_jwt_secret", hex.EncodeToString(raw[:]))
		log.Printf("generated a new admin JWT signing secret")
	}

	if reg.VariableString("admin_password_hash") == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			log.Printf("no admin_password_hash set and stdin is not a terminal; admin channel has no bootstrap credential")
		} else {
			fmt.Fprint(os.Stderr, "set an admin password for the remote console: ")
			password, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return nil, fmt.Errorf("read admin password: %w", err)
			}
			hash, err := authtoken.HashPassword(strings.TrimSpace(string(password)))
			if err != nil {
				return nil, err
			}
			reg.Set("admin_password_hash", hash)
		}
	}

	secret, err := hex.DecodeString(reg.VariableString("admin_jwt_secret"))
	if err != nil {
		return nil, fmt.Errorf("decode admin jwt secret: %w", err)
	}
	return authtoken.NewIssuer(secret, time.Hour), nil
}

// server wires the cvar registry, persistent store, and the game WASM
// module's host bindings together, and implements oob.CommandHandler
// so the admin websocket channel can query and drive it.
type server struct {
	cfg   config.ServerConfig
	reg   *config.Registry
	store *store.Store
	world *world.World
	host  *imports.Host
	log   *config.Logger

	hostname string
	started  time.Time

	game     *vm.Module
	frameNum uint32

	content *pk3Content   // nil unless install_dir indexed successfully
	demo    *demoRecorder // nil unless a "record" admin command is active
}

func (s *server) loadGameModule(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	m, err := vm.Load(data, s.host.Imports(), gameExports)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := m.Prepare(data); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	m.Reset()

	for i, spec := range gameExports {
		if spec.Name != "Init" {
			continue
		}
		if _, err := m.Call(i); err != nil {
			return fmt.Errorf("call Init: %w", err)
		}
	}

	s.game = m
	s.log.Printf("loaded game module %s", path)
	return nil
}

func (s *server) shutdownGameModule() {
	if s.game == nil {
		return
	}
	for i, spec := range gameExports {
		if spec.Name != "Shutdown" {
			continue
		}
		if _, err := s.game.Call(i); err != nil {
			s.log.Printf("game module Shutdown: %v", err)
		}
	}
}

// runLoop drives one RunFrame call per tick at cfg.FrameRateHz until
// ctx is cancelled, matching spec §5's single-threaded cooperative
// model: nothing else touches s.world or s.reg while a tick is in
// flight.
func (s *server) runLoop(ctx context.Context) {
	hz := s.cfg.FrameRateHz
	if hz <= 0 {
		hz = 10
	}
	period := time.Second / time.Duration(hz)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Printf("shutting down after %d frames", s.frameNum)
			return
		case <-ticker.C:
			s.runFrame()
		}
	}
}

func (s *server) runFrame() {
	s.frameNum++
	s.reg.ApplyLatches()

	if s.game != nil {
		for i, spec := range gameExports {
			if spec.Name != "RunFrame" {
				continue
			}
			if args, err := s.game.Push(1); err == nil {
				args[0] = vm.I32Val(int32(s.frameNum))
			}
			if _, err := s.game.Call(i); err != nil {
				s.log.Printf("RunFrame (frame %d): %v", s.frameNum, err)
			}
		}
	}

	s.recordTick()
}

// Status implements oob.CommandHandler, mirroring the original's
// "status" rcon command.
func (s *server) Status() oob.StatusReport {
	return oob.StatusReport{
		Hostname: s.hostname,
		Map:      s.reg.VariableString("mapname"),
		Framenum: s.frameNum,
	}
}

// Execute implements oob.CommandHandler. The admin channel's command
// surface is small: reading, setting and listing cvars, listing or
// clearing bans, rebuilding the content baseline, and starting,
// stopping, listing and inspecting demo recordings. Status and
// map-change commands are left to the WASM game module itself.
func (s *server) Execute(command string) (string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "cvarlist":
		return s.execCvarList(), nil

	case "get":
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: get <cvar>")
		}
		c, ok := s.reg.Get(fields[1])
		if !ok {
			return "", fmt.Errorf("unknown cvar %q", fields[1])
		}
		return fmt.Sprintf("%s = %q", c.Name, c.Value), nil

	case "set":
		if len(fields) < 3 {
			return "", fmt.Errorf("usage: set <cvar> <value>")
		}
		value := strings.Join(fields[2:], " ")
		c := s.reg.Set(fields[1], value)
		if err := s.store.RecordCvarChange(c.Name, c.Value); err != nil {
			s.log.Printf("record cvar change: %v", err)
		}
		return fmt.Sprintf("%s = %q", c.Name, c.Value), nil

	case "banlist":
		bans, err := s.store.ListBans()
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, ban := range bans {
			fmt.Fprintf(&b, "%s  %s  %s\n", ban.ID, ban.Address, ban.Reason)
		}
		return b.String(), nil

	case "unban":
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: unban <id>")
		}
		return "", s.store.RemoveBan(fields[1])

	case "buildbaseline":
		if len(fields) != 3 {
			return "", fmt.Errorf("usage: buildbaseline <installDir> <outputDir>")
		}
		return buildBaseline(fields[1], fields[2])

	case "record":
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: record <path>")
		}
		if err := s.startDemoRecording(fields[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("recording to %s", fields[1]), nil

	case "stoprecord":
		rec, err := s.stopDemoRecording()
		if err != nil {
			return "", err
		}
		return rec.Describe(), nil

	case "demolist":
		demos, err := s.store.ListDemos()
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, rec := range demos {
			fmt.Fprintf(&b, "%s  %s\n", rec.ID, rec.Describe())
		}
		return b.String(), nil

	case "demoinfo":
		if len(fields) != 2 {
			return "", fmt.Errorf("usage: demoinfo <path>")
		}
		return demoInfo(fields[1])

	default:
		return "", fmt.Errorf("unknown command %q", fields[0])
	}
}

func (s *server) execCvarList() string {
	names := make([]string, 0)
	for _, name := range []string{"hostname", "maxclients", "rate", "sv_timeout"} {
		if _, ok := s.reg.Get(name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		c, _ := s.reg.Get(name)
		fmt.Fprintf(&b, "%s = %q\n", c.Name, c.Value)
	}
	return b.String()
}
