package netchan

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"

	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
)

// zpacketHeader is ZPACKET_HEADER in the original: opcode byte plus the
// two 16-bit lengths spec §6.1 names for svc_zpacket.
const zpacketHeader = 5

// minCompressSize is the "compress only sufficiently large messages"
// threshold can_auto_compress applies, scaled down from the original's
// half-maxpacketlen test to a fixed floor since this port has no
// per-client negotiated maxpacketlen yet.
const minCompressSize = 256

// CompressMessage deflates msg into a full svc_zpacket record: opcode,
// then `{u16 in_len, u16 out_len}` (in_len = deflated length, out_len =
// original length) per spec §6.1, followed by the deflated bytes.
// Mirrors compress_message/can_auto_compress in send.c, swapping zlib
// for the standard library's DEFLATE.
func CompressMessage(msg []byte) ([]byte, bool) {
	if len(msg) < minCompressSize {
		return nil, false
	}

	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, false
	}
	if _, err := zw.Write(msg); err != nil {
		return nil, false
	}
	if err := zw.Close(); err != nil {
		return nil, false
	}

	deflated := buf.Bytes()
	if len(deflated)+zpacketHeader >= len(msg) {
		return nil, false // compression didn't help; caller sends msg verbatim
	}

	out := bitio.NewWriter(len(deflated) + zpacketHeader)
	out.WriteByte(int(SvcZpacket))
	out.WriteShort(len(deflated))
	out.WriteShort(len(msg))
	out.WriteData(deflated)
	return out.Bytes(), true
}

// DecompressMessage inflates the body of an already-parsed svc_zpacket
// record (the bytes after the opcode byte) back into the original
// uncompressed command stream. Mirrors the inflate side spec §6.1
// describes: "the inflated content is parsed recursively, with
// msg_read swapped out and restored" — the swap/restore is the caller's
// responsibility (parse into a fresh bitio.Reader), this only inflates.
func DecompressMessage(r *bitio.Reader) ([]byte, error) {
	inLen := r.ReadShort()
	outLen := r.ReadShort()
	if inLen < 0 || outLen < 0 {
		return nil, fmt.Errorf("netchan: truncated zpacket header")
	}
	deflated := r.ReadData(inLen)

	zr := flate.NewReader(bytes.NewReader(deflated))
	defer zr.Close()

	out := make([]byte, outLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("netchan: inflate svc_zpacket: %w", err)
	}
	return out, nil
}
