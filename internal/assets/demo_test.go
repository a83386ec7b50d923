package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netchan"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netfield"
)

// buildTick assembles one tick's byte-aligned command stream: a
// svc_configstring update followed by a minimal (empty) svc_frame, the
// same shape DemoSink.WriteTick expects.
func buildTick(csIndex int, csValue string) []byte {
	w := bitio.NewWriter(4096)

	w.WriteByte(int(netchan.SvcConfigstring))
	w.WriteShort(csIndex)
	w.WriteString(csValue)

	w.WriteByte(int(netchan.SvcFrame))
	w.WriteBits(1, netfield.FramenumBits)
	w.WriteBits(netfield.NonDeltaFrame, netfield.DeltaframeBits)
	w.WriteBits(1000, 32)
	w.WriteBits(0, netfield.FrameflagsBits)
	w.WriteBits(0, 6) // areabytes
	netfield.WriteDeltaPlayerstate(w, nil, &netfield.PlayerState{})
	w.WriteBits(netfield.EntitynumNone, netfield.EntitynumBits)
	w.FlushBits()

	return w.Bytes()
}

func TestDemoSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "match.ngd")

	hdr := Header{
		ProtocolMajor: 36,
		ProtocolMinor: 2000,
		FrameRateHz:   40,
		MaxClients:    8,
		Gamedir:       "basenac",
		Levelname:     "q2dm1",
		Configstrings: map[int]string{
			netfield.CSModels: "models/weapons/v_rock/tris.md2",
		},
	}

	sink, err := NewDemoSink(path, hdr)
	if err != nil {
		t.Fatalf("NewDemoSink: %v", err)
	}

	if err := sink.WriteTick(buildTick(netfield.CSPlayerSkins, `Player\male/grunt`)); err != nil {
		t.Fatalf("WriteTick: %v", err)
	}
	if sink.Ticks() != 1 {
		t.Fatalf("got %d ticks, want 1", sink.Ticks())
	}

	if _, err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	info, err := ParseDemo(path)
	if err != nil {
		t.Fatalf("ParseDemo: %v", err)
	}

	if info.MapName != "q2dm1" {
		t.Errorf("MapName = %q, want q2dm1", info.MapName)
	}
	if info.Gamedir != "basenac" {
		t.Errorf("Gamedir = %q, want basenac", info.Gamedir)
	}
	if len(info.Models) != 1 || info.Models[0] != "models/weapons/v_rock/tris.md2" {
		t.Errorf("unexpected models: %+v", info.Models)
	}
	if len(info.Players) != 1 {
		t.Fatalf("got %d players, want 1", len(info.Players))
	}
	if p := info.Players[0]; p.Name != "Player" || p.Model != "male" || p.Skin != "grunt" {
		t.Errorf("unexpected player info: %+v", p)
	}
}

func TestParseDemoRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ngd")
	if err := os.WriteFile(path, []byte("not a demo at all"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := ParseDemo(path); err == nil {
		t.Fatal("expected an error for a file missing the NGD1 magic")
	}
}

func TestParsePlayerSkin(t *testing.T) {
	p := parsePlayerSkin(`Razor\female/athena`)
	if p.Name != "Razor" || p.Model != "female" || p.Skin != "athena" {
		t.Errorf("unexpected parse: %+v", p)
	}
}
