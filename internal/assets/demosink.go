package assets

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DemoSink records a spectator's outbound byte stream to disk in the
// format ParseDemo reads back: a fixed header followed by a zstd-compressed
// stream of length-prefixed per-tick records. Recovered from
// original_source/src/server/send.c's SV_FlushRedirect RD_PACKET path,
// which redirected a client's outbound stream to an external sink; this
// fork persists that redirected stream to disk instead.
type DemoSink struct {
	f       *os.File
	enc     *zstd.Encoder
	ticks   int
	started time.Time
}

// NewDemoSink creates path and writes the fixed header: protocol info,
// gamedir/levelname (taken verbatim from the svc_serverdata handshake),
// and the configstring table as of the start of recording.
func NewDemoSink(path string, hdr Header) (*DemoSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("demo sink: create %s: %w", path, err)
	}

	if err := writeHeader(f, hdr); err != nil {
		f.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("demo sink: zstd writer: %w", err)
	}

	return &DemoSink{f: f, enc: enc, started: time.Now()}, nil
}

func writeHeader(f *os.File, hdr Header) error {
	var buf []byte
	buf = append(buf, demoMagic...)
	buf = le32(buf, uint32(hdr.ProtocolMajor))
	buf = le16(buf, hdr.ProtocolMinor)
	buf = le32(buf, uint32(hdr.FrameRateHz))
	buf = le32(buf, uint32(hdr.MaxClients))
	buf = append(buf, hdr.Gamedir...)
	buf = append(buf, 0)
	buf = append(buf, hdr.Levelname...)
	buf = append(buf, 0)

	for index, value := range hdr.Configstrings {
		if value == "" {
			continue
		}
		buf = le16(buf, uint16(index))
		buf = le16(buf, uint16(len(value)))
		buf = append(buf, value...)
	}
	buf = le16(buf, 0xFFFF)

	_, err := f.Write(buf)
	return err
}

func le16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func le32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// WriteTick appends one tick's byte-aligned command stream (zero or more
// svc_configstring commands followed by one svc_frame command) as a
// length-prefixed record.
func (s *DemoSink) WriteTick(data []byte) error {
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(data)))
	if _, err := s.enc.Write(size[:]); err != nil {
		return fmt.Errorf("demo sink: write tick size: %w", err)
	}
	if _, err := s.enc.Write(data); err != nil {
		return fmt.Errorf("demo sink: write tick: %w", err)
	}
	s.ticks++
	return nil
}

// Close flushes the zstd stream and closes the file, returning the
// recording's wall-clock duration for the demo catalogue (internal/store).
func (s *DemoSink) Close() (time.Duration, error) {
	if err := s.enc.Close(); err != nil {
		s.f.Close()
		return 0, fmt.Errorf("demo sink: close encoder: %w", err)
	}
	if err := s.f.Close(); err != nil {
		return 0, fmt.Errorf("demo sink: close file: %w", err)
	}
	return time.Since(s.started), nil
}

// Ticks reports how many tick records have been written so far.
func (s *DemoSink) Ticks() int {
	return s.ticks
}
