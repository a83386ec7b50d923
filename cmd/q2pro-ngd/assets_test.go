package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sauerbraten-ng/q2pro-ng/internal/assets"
)

func writeTestPk3(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	if err := assets.WritePk3(path, files); err != nil {
		t.Fatalf("WritePk3: %v", err)
	}
}

func TestLoadPk3ContentIndexesGameDirs(t *testing.T) {
	dir := t.TempDir()
	gameDir := filepath.Join(dir, "basenac")
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestPk3(t, filepath.Join(gameDir, "pak0.pk3"), map[string][]byte{
		"vm/game.wasm": []byte("fake wasm bytes"),
	})

	content, err := loadPk3Content(dir)
	if err != nil {
		t.Fatalf("loadPk3Content: %v", err)
	}

	f, size, err := content.Open("vm/game.wasm")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if size != int64(len("fake wasm bytes")) {
		t.Fatalf("size = %d, want %d", size, len("fake wasm bytes"))
	}

	buf := make([]byte, size)
	if _, err := f.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "fake wasm bytes" {
		t.Fatalf("got %q", buf)
	}
}

func TestLoadPk3ContentNoGameDirs(t *testing.T) {
	if _, err := loadPk3Content(t.TempDir()); err == nil {
		t.Fatal("expected an error when no game directories are present")
	}
}

func TestPk3ContentOpenMissingFile(t *testing.T) {
	dir := t.TempDir()
	gameDir := filepath.Join(dir, "basenac")
	os.MkdirAll(gameDir, 0o755)
	writeTestPk3(t, filepath.Join(gameDir, "pak0.pk3"), map[string][]byte{"present.txt": []byte("x")})

	content, err := loadPk3Content(dir)
	if err != nil {
		t.Fatalf("loadPk3Content: %v", err)
	}
	if _, _, err := content.Open("absent.txt"); err == nil {
		t.Fatal("expected an error opening a file not in any pk3")
	}
}

func TestDemoRecordingLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.reg.Set("mapname", "q2dm1")

	path := filepath.Join(t.TempDir(), "match.ngd")
	if err := s.startDemoRecording(path); err != nil {
		t.Fatalf("startDemoRecording: %v", err)
	}
	if err := s.startDemoRecording(path); err == nil {
		t.Fatal("expected a second startDemoRecording to fail while one is active")
	}

	s.recordTick()
	s.host.Configstrings[5] = "changed"
	s.recordTick()
	s.recordTick()

	rec, err := s.stopDemoRecording()
	if err != nil {
		t.Fatalf("stopDemoRecording: %v", err)
	}
	if rec.Map != "q2dm1" {
		t.Fatalf("Map = %q, want q2dm1", rec.Map)
	}

	demos, err := s.store.ListDemos()
	if err != nil {
		t.Fatalf("ListDemos: %v", err)
	}
	if len(demos) != 1 || demos[0].ID != rec.ID {
		t.Fatalf("unexpected demo catalogue: %+v", demos)
	}

	info, err := assets.ParseDemo(path)
	if err != nil {
		t.Fatalf("ParseDemo: %v", err)
	}
	if info.MapName != "q2dm1" {
		t.Fatalf("ParseDemo MapName = %q, want q2dm1", info.MapName)
	}
}

func TestStopDemoRecordingWithoutStartErrors(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.stopDemoRecording(); err == nil {
		t.Fatal("expected an error stopping a recording that was never started")
	}
}

func TestRecordTickNoopWithoutActiveRecording(t *testing.T) {
	s := newTestServer(t)
	s.recordTick() // must not panic
}

func TestExecuteRecordAndDemoCommands(t *testing.T) {
	s := newTestServer(t)
	s.reg.Set("mapname", "q2dm1")

	path := filepath.Join(t.TempDir(), "cmd.ngd")
	if _, err := s.Execute("record " + path); err != nil {
		t.Fatalf("Execute record: %v", err)
	}
	s.runFrame()

	if _, err := s.Execute("stoprecord"); err != nil {
		t.Fatalf("Execute stoprecord: %v", err)
	}

	out, err := s.Execute("demolist")
	if err != nil {
		t.Fatalf("Execute demolist: %v", err)
	}
	if out == "" {
		t.Fatal("expected demolist to report the recorded demo")
	}

	out, err = s.Execute("demoinfo " + path)
	if err != nil {
		t.Fatalf("Execute demoinfo: %v", err)
	}
	if !strings.Contains(out, "q2dm1") {
		t.Fatalf("demoinfo output missing map name: %q", out)
	}
}
