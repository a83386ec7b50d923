package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/sauerbraten-ng/q2pro-ng/internal/config"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netfield"
	"github.com/sauerbraten-ng/q2pro-ng/internal/store"
	"github.com/sauerbraten-ng/q2pro-ng/internal/vm/imports"
	"github.com/sauerbraten-ng/q2pro-ng/internal/world"
)

func newTestServer(t *testing.T) *server {
	t.Helper()

	reg := config.NewRegistry()
	registerDefaultCvars(reg)

	db, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	w := world.NewWorld(netfield.EntitynumWorld)
	host := imports.NewHost("game", w, netfield.MaxConfigstrings)

	return &server{
		cfg:      config.Default(),
		reg:      reg,
		store:    db,
		world:    w,
		host:     host,
		log:      config.NewLogger("test", nil),
		hostname: reg.VariableString("hostname"),
	}
}

func TestRegisterDefaultCvarsSeedsExpectedNames(t *testing.T) {
	reg := config.NewRegistry()
	registerDefaultCvars(reg)

	for _, name := range []string{"hostname", "maxclients", "rate", "sv_timeout", "admin_listen"} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("expected %s to be registered", name)
		}
	}
}

func TestExecuteGetSet(t *testing.T) {
	s := newTestServer(t)

	out, err := s.Execute("set hostname Arena One")
	if err != nil {
		t.Fatalf("Execute set: %v", err)
	}
	if !strings.Contains(out, "Arena One") {
		t.Fatalf("unexpected set output: %q", out)
	}

	out, err = s.Execute("get hostname")
	if err != nil {
		t.Fatalf("Execute get: %v", err)
	}
	if !strings.Contains(out, "Arena One") {
		t.Fatalf("unexpected get output: %q", out)
	}
}

func TestExecuteGetUnknownCvar(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.Execute("get does_not_exist"); err == nil {
		t.Fatal("expected an error for an unregistered cvar")
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.Execute("map_restart"); err == nil {
		t.Fatal("expected an error for an unsupported command")
	}
}

func TestExecuteBanLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec, err := s.store.AddBan("203.0.113.9", "cheating", 0)
	if err != nil {
		t.Fatalf("AddBan: %v", err)
	}

	out, err := s.Execute("banlist")
	if err != nil {
		t.Fatalf("Execute banlist: %v", err)
	}
	if !strings.Contains(out, rec.Address) {
		t.Fatalf("banlist missing address: %q", out)
	}

	if _, err := s.Execute("unban " + rec.ID); err != nil {
		t.Fatalf("Execute unban: %v", err)
	}

	out, err = s.Execute("banlist")
	if err != nil {
		t.Fatalf("Execute banlist after unban: %v", err)
	}
	if strings.Contains(out, rec.Address) {
		t.Fatalf("ban still listed after unban: %q", out)
	}
}

func TestStatusReportsHostnameAndFrame(t *testing.T) {
	s := newTestServer(t)
	s.frameNum = 42

	st := s.Status()
	if st.Hostname != s.hostname {
		t.Errorf("Hostname = %q, want %q", st.Hostname, s.hostname)
	}
	if st.Framenum != 42 {
		t.Errorf("Framenum = %d, want 42", st.Framenum)
	}
}

func TestRunFrameAdvancesFrameNumWithoutGameModule(t *testing.T) {
	s := newTestServer(t)
	s.runFrame()
	s.runFrame()

	if s.frameNum != 2 {
		t.Fatalf("frameNum = %d, want 2", s.frameNum)
	}
}
