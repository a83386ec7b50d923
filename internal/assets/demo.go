package assets

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netchan"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netfield"
)

// demoMagic identifies a demo file recorded by this fork's spectator sink.
// There is no original demo format to match byte-for-byte: this fork's
// network protocol (svc_serverdata's gamedir/levelname fields, the
// bit-packed svc_frame body) replaces the backslash-KV serverinfo string
// a Q3-derived format would have carried, so the header below is its own
// design rather than a port.
const demoMagic = "NGD1"

// Header holds the variable-length preamble of a demo file: everything the
// recording client learned from the svc_serverdata handshake (spec §6.2),
// plus the configstring table as of the start of recording.
type Header struct {
	ProtocolMajor int32
	ProtocolMinor uint16
	FrameRateHz   int32
	MaxClients    int32
	Gamedir       string
	Levelname     string
	Configstrings map[int]string
}

// DemoInfo holds extracted asset references from a demo file, used to
// preload a client's cache before playback without running the VM.
type DemoInfo struct {
	MapName  string
	Gamedir  string
	Models   []string
	Sounds   []string
	Images   []string
	Players  []PlayerInfo
}

// PlayerInfo holds one client's skin selection from a demo's
// CS_PLAYERSKINS configstring, "name\model/skin".
type PlayerInfo struct {
	Name  string
	Model string
	Skin  string
}

// ParseDemo parses a demo file and extracts asset references plus the
// final configstring table (seeded by the header, then updated by any
// svc_configstring commands recorded mid-match as players join or the
// map state changes).
//
// File layout:
//   - 4 bytes: "NGD1" magic
//   - i32 protocol_major, u16 protocol_minor, i32 frame_rate_hz, i32 maxclients
//   - NUL-terminated gamedir, NUL-terminated levelname
//   - configstrings: repeated [index:u16][length:u16][data], terminated by index 0xFFFF
//   - the remainder is a zstd-compressed stream of per-tick records, each
//     [size:u32][bytes], where bytes is the byte-aligned command stream
//     captured for that tick (zero or more svc_configstring commands
//     followed by one svc_frame command).
func ParseDemo(path string) (*DemoInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read demo: %w", err)
	}

	hdr, body, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if len(body) > 0 {
		parseTickStream(body, hdr.Configstrings)
	}

	return buildDemoInfo(hdr), nil
}

func parseHeader(data []byte) (*Header, []byte, error) {
	if len(data) < len(demoMagic)+14 || string(data[0:len(demoMagic)]) != demoMagic {
		return nil, nil, fmt.Errorf("not a demo file")
	}

	hdr := &Header{Configstrings: make(map[int]string)}

	offset := len(demoMagic)
	hdr.ProtocolMajor = int32(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	hdr.ProtocolMinor = binary.LittleEndian.Uint16(data[offset:])
	offset += 2
	hdr.FrameRateHz = int32(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	hdr.MaxClients = int32(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4

	var ok bool
	hdr.Gamedir, offset, ok = readCString(data, offset)
	if !ok {
		return nil, nil, fmt.Errorf("demo: truncated gamedir")
	}
	hdr.Levelname, offset, ok = readCString(data, offset)
	if !ok {
		return nil, nil, fmt.Errorf("demo: truncated levelname")
	}

	for offset+4 <= len(data) {
		index := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
		if index == 0xFFFF {
			break
		}

		length := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2
		if offset+length > len(data) {
			return nil, nil, fmt.Errorf("demo: truncated configstring %d", index)
		}

		value := string(data[offset : offset+length])
		offset += length
		if value != "" {
			hdr.Configstrings[index] = value
		}
	}

	return hdr, data[offset:], nil
}

func readCString(data []byte, offset int) (string, int, bool) {
	end := offset
	for end < len(data) && data[end] != 0 {
		end++
	}
	if end >= len(data) {
		return "", offset, false
	}
	return string(data[offset:end]), end + 1, true
}

// parseTickStream decompresses the zstd record stream and folds every
// svc_configstring command it contains into configstrings, so the final
// table reflects the whole match rather than just its opening state.
func parseTickStream(compressed []byte, configstrings map[int]string) {
	decoder, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		log.Printf("demo: zstd decoder init error: %v", err)
		return
	}
	defer decoder.Close()

	decompressed, err := io.ReadAll(decoder)
	if errors.Is(err, zstd.ErrMagicMismatch) {
		err = nil // trailing non-zstd bytes (file footer) are expected
	}
	if err != nil && len(decompressed) == 0 {
		log.Printf("demo: zstd decompress error: %v", err)
		return
	}

	pos, ticks, updates := 0, 0, 0
	for pos+4 <= len(decompressed) {
		size := int(binary.LittleEndian.Uint32(decompressed[pos:]))
		pos += 4
		if size <= 0 || pos+size > len(decompressed) {
			break
		}

		record := decompressed[pos : pos+size]
		pos += size
		ticks++
		updates += parseRecord(record, configstrings)
	}

	if updates > 0 {
		log.Printf("demo: replayed %d ticks, %d configstring updates", ticks, updates)
	}
}

// parseRecord walks one tick's byte-aligned command stream, applying any
// svc_configstring commands and consuming (without decoding) the trailing
// svc_frame command so the cursor lands correctly on a truncated-record
// boundary. Any other opcode ends parsing of this record early: the sink
// never emits one, so encountering one means the remainder is unreadable
// as a typed command rather than a format error worth surfacing.
func parseRecord(data []byte, configstrings map[int]string) int {
	r := bitio.NewReader(data)
	updates := 0

	for r.Remaining() > 0 {
		op := netchan.ServerOp(r.ReadByte())
		switch op {
		case netchan.SvcConfigstring:
			index := r.ReadShort()
			value := r.ReadString()
			configstrings[index] = value
			updates++
		case netchan.SvcFrame:
			skipFrameBody(r)
			return updates
		default:
			return updates
		}
	}
	return updates
}

// skipFrameBody consumes exactly the bits frame.WriteFrameToClient writes
// after the opcode byte: header, area bits, delta playerstate, delta
// entities. Player and entity deltas are decoded into throwaway scratch
// values purely to advance the bit cursor by the correct amount; neither
// decoder's bit cost depends on the reference state supplied, only on the
// changed-field counts encoded in the stream itself.
func skipFrameBody(r *bitio.Reader) {
	r.ReadBits(netfield.FramenumBits)
	r.ReadBits(netfield.DeltaframeBits)
	r.ReadBits(32)
	r.ReadBits(netfield.FrameflagsBits)

	areaBytes := int(r.ReadBits(6))
	r.ReadData(areaBytes)

	var ps netfield.PlayerState
	netfield.ReadDeltaPlayerstate(r, &ps)

	var scratch netfield.EntityState
	for {
		entnum := r.ReadBits(netfield.EntitynumBits)
		if entnum == netfield.EntitynumNone {
			return
		}
		if r.ReadBit() { // removed
			continue
		}
		if !r.ReadBit() { // unchanged, forced onto the wire
			continue
		}
		netfield.ReadDeltaEntity(r, &scratch, &scratch)
	}
}

func buildDemoInfo(hdr *Header) *DemoInfo {
	info := &DemoInfo{
		MapName: hdr.Levelname,
		Gamedir: hdr.Gamedir,
	}

	seen := make(map[string]bool)
	for i := netfield.CSModels; i < netfield.CSModels+netfield.MaxModels; i++ {
		if v, ok := hdr.Configstrings[i]; ok && v != "" && !strings.HasPrefix(v, "*") && !seen[v] {
			seen[v] = true
			info.Models = append(info.Models, v)
		}
	}

	seen = make(map[string]bool)
	for i := netfield.CSSounds; i < netfield.CSSounds+netfield.MaxSounds; i++ {
		if v, ok := hdr.Configstrings[i]; ok && v != "" && !seen[v] {
			seen[v] = true
			info.Sounds = append(info.Sounds, v)
		}
	}

	seen = make(map[string]bool)
	for i := netfield.CSImages; i < netfield.CSImages+netfield.MaxImages; i++ {
		if v, ok := hdr.Configstrings[i]; ok && v != "" && !seen[v] {
			seen[v] = true
			info.Images = append(info.Images, v)
		}
	}

	for i := netfield.CSPlayerSkins; i < netfield.CSPlayerSkins+netfield.MaxClients; i++ {
		v, ok := hdr.Configstrings[i]
		if !ok || v == "" {
			continue
		}
		info.Players = append(info.Players, parsePlayerSkin(v))
	}

	return info
}

// parsePlayerSkin parses a CS_PLAYERSKINS entry, "name\model/skin".
func parsePlayerSkin(s string) PlayerInfo {
	name, modelSkin, _ := strings.Cut(s, "\\")
	model, skin, _ := strings.Cut(modelSkin, "/")
	return PlayerInfo{Name: name, Model: model, Skin: skin}
}
