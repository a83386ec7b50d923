package netchan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	msg := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 20)

	z, ok := CompressMessage(msg)
	if !ok {
		t.Fatal("expected compression to apply for a large, repetitive message")
	}
	if z[0] != byte(SvcZpacket) {
		t.Fatalf("expected svc_zpacket opcode, got %d", z[0])
	}

	r := bitio.NewReader(z[1:])
	out, err := DecompressMessage(r)
	if err != nil {
		t.Fatalf("DecompressMessage: %v", err)
	}
	if !bytes.Equal(out, msg) {
		t.Fatalf("round-trip mismatch: got %d bytes, want %d", len(out), len(msg))
	}
}

func TestCompressMessageSkipsSmallPayloads(t *testing.T) {
	if _, ok := CompressMessage([]byte("short")); ok {
		t.Fatal("expected a short message not to be compressed")
	}
}

func TestCompressMessageSkipsIncompressiblePayload(t *testing.T) {
	// Already-random-looking data that won't shrink past the header cost.
	noise := make([]byte, minCompressSize+16)
	for i := range noise {
		noise[i] = byte(i*2654435761 >> 24)
	}
	if _, ok := CompressMessage(noise); ok {
		t.Skip("incompressible test payload happened to compress; not a contract violation")
	}
}

func TestChannelReliableUnreliableSplit(t *testing.T) {
	ch := NewChannel()

	if err := ch.AddMessage([]byte("reliable-one"), Reliable); err != nil {
		t.Fatalf("AddMessage reliable: %v", err)
	}
	if err := ch.AddMessage([]byte("datagram-one"), 0); err != nil {
		t.Fatalf("AddMessage unreliable: %v", err)
	}

	if !bytes.Contains(ch.reliable, []byte("reliable-one")) {
		t.Fatal("reliable message not queued on the reliable buffer")
	}
	if !bytes.Contains(ch.datagram, []byte("datagram-one")) {
		t.Fatal("unreliable message not queued on the datagram buffer")
	}
}

func TestChannelTransmitCarriesBothBuffers(t *testing.T) {
	ch := NewChannel()
	ch.AddMessage([]byte("hello-reliable"), Reliable)
	ch.AddMessage([]byte("hello-datagram"), 0)

	pkt := ch.Transmit()
	if len(pkt) == 0 {
		t.Fatal("expected a non-empty packet")
	}
	if ch.FragmentPending() {
		t.Fatal("small reliable message should not need fragmentation")
	}
	if !strings.Contains(string(pkt), "hello-reliable") {
		t.Fatal("transmitted packet missing reliable payload")
	}
	if !strings.Contains(string(pkt), "hello-datagram") {
		t.Fatal("transmitted packet missing datagram payload")
	}
}

func TestChannelFragmentsOversizeReliableMessage(t *testing.T) {
	ch := NewChannel()
	big := bytes.Repeat([]byte{0xAB}, FragmentSize*2+100)
	ch.AddMessage(big, Reliable)

	first := ch.Transmit()
	if !ch.FragmentPending() {
		t.Fatal("expected more fragments to be pending after the first packet")
	}
	if len(first) == 0 {
		t.Fatal("expected a non-empty first fragment packet")
	}

	var reassembled []byte
	reassembled = append(reassembled, extractFragmentPayload(t, first)...)

	for ch.FragmentPending() {
		next := ch.TransmitNextFragment()
		reassembled = append(reassembled, extractFragmentPayload(t, next)...)
	}

	if !bytes.Equal(reassembled, big) {
		t.Fatalf("reassembled %d bytes, want %d", len(reassembled), len(big))
	}
}

func extractFragmentPayload(t *testing.T, pkt []byte) []byte {
	t.Helper()
	r := bitio.NewReader(pkt)
	r.ReadLong()
	isFrag := r.ReadByte()
	if isFrag != 1 {
		t.Fatalf("expected a fragment marker, got %d", isFrag)
	}
	r.ReadShort() // offset
	n := r.ReadShort()
	return r.ReadData(n)
}

func TestChannelMaxReliableSizeRejected(t *testing.T) {
	ch := NewChannel()
	huge := make([]byte, MaxReliableSize+1)
	if err := ch.AddMessage(huge, Reliable); err == nil {
		t.Fatal("expected an error for an oversize reliable message")
	}
}

func TestChannelProcessRejectsOutOfOrder(t *testing.T) {
	sender := NewChannel()
	sender.AddMessage([]byte("ping"), 0)
	pkt1 := sender.Transmit()

	receiver := NewChannel()
	if _, err := receiver.Process(pkt1); err != nil {
		t.Fatalf("Process first packet: %v", err)
	}
	if _, err := receiver.Process(pkt1); err == nil {
		t.Fatal("expected a replayed packet to be rejected")
	}
}

func TestChannelProcessReturnsUnreliablePayload(t *testing.T) {
	sender := NewChannel()
	sender.AddMessage([]byte("status-update"), 0)
	pkt := sender.Transmit()

	receiver := NewChannel()
	payload, err := receiver.Process(pkt)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if string(payload) != "status-update" {
		t.Fatalf("got %q, want %q", payload, "status-update")
	}
}
