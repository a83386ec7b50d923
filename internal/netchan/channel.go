package netchan

import (
	"fmt"

	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
)

// FragmentSize is the largest payload chunk transmitted in one UDP
// datagram before the rest of an oversize reliable message is queued as
// further fragments. Chosen comfortably under typical path MTU, the
// same role MAX_PACKETLEN_WRITABLE plays in the original.
const FragmentSize = 1300

// MaxReliableSize bounds how large a single reliable message (already
// byte-aligned, pre-fragmentation) is allowed to grow before the
// channel refuses to queue more — a connection-fatal condition per
// spec §7's "Network I/O error: connection-fatal errors drop the
// client."
const MaxReliableSize = 1 << 16

// AddFlags select which of a Channel's two outgoing buffers a message
// joins, mirroring SV_ClientAddMessage's MSG_RELIABLE/MSG_COMPRESS_AUTO
// flag pair.
type AddFlags int

const (
	Reliable AddFlags = 1 << iota
	CompressAuto
)

// Channel is the reliable/unreliable message channel bound to one
// client connection: a growing reliable-message buffer (fragmented
// across packets if it outgrows FragmentSize) and a per-tick unreliable
// datagram buffer, rebuilt from scratch every frame. Mirrors the
// netchan_t / client_t->datagram split send.c drives through
// SV_ClientAddMessage.
type Channel struct {
	outgoingSeq uint32
	incomingSeq uint32

	reliable  []byte // queued, not yet (fully) transmitted
	datagram  []byte // this tick's unreliable payload, cleared after send

	fragment       []byte // remaining bytes of the reliable message mid-fragmentation
	fragmentOffset int

	lastReliableSent []byte // retained for the 1s-retransmit path (spec §5)
}

// NewChannel returns a Channel with empty buffers, sequence numbers
// starting at zero the way Netchan_Setup does for a fresh connection.
func NewChannel() *Channel {
	return &Channel{}
}

// AddMessage appends msg to the reliable or unreliable buffer per
// flags, optionally auto-compressing into an svc_zpacket record first.
// Mirrors SV_ClientAddMessage.
func (c *Channel) AddMessage(msg []byte, flags AddFlags) error {
	if len(msg) == 0 {
		return nil
	}

	payload := msg
	if flags&CompressAuto != 0 {
		if z, ok := CompressMessage(msg); ok {
			payload = z
		}
	}

	if flags&Reliable != 0 {
		if len(c.reliable)+len(payload) > MaxReliableSize {
			return fmt.Errorf("netchan: reliable buffer overflow (%d + %d > %d)",
				len(c.reliable), len(payload), MaxReliableSize)
		}
		c.reliable = append(c.reliable, payload...)
		return nil
	}

	c.datagram = append(c.datagram, payload...)
	return nil
}

// FragmentPending reports whether a prior Transmit left reliable bytes
// still queued for TransmitNextFragment, mirroring
// netchan->fragment_pending.
func (c *Channel) FragmentPending() bool {
	return c.fragmentOffset < len(c.fragment)
}

// Transmit assembles one outgoing packet: a sequence-number header,
// optionally carrying the start of a (possibly oversize) reliable
// message as the first fragment, followed by the unreliable datagram
// when the reliable message is small enough to fit alongside it in one
// packet. Mirrors Netchan_Transmit's call-site contract in send.c (one
// packet per tick, fragment_pending gates whether more packets follow
// before the next tick's frame is built).
func (c *Channel) Transmit() []byte {
	c.outgoingSeq++

	if len(c.reliable) > 0 {
		c.fragment = c.reliable
		c.fragmentOffset = 0
		c.reliable = nil
	}

	out := bitio.NewWriter(FragmentSize + headerSize)
	c.writeHeader(out)

	if c.FragmentPending() {
		c.writeFragment(out)
	}
	if !c.FragmentPending() && len(c.datagram) > 0 {
		out.WriteData(c.datagram)
		c.datagram = nil
	}

	pkt := out.Bytes()
	if !c.FragmentPending() {
		c.lastReliableSent = pkt
	}
	return pkt
}

// TransmitNextFragment sends the next chunk of a reliable message that
// didn't fit in one packet, appending the unreliable datagram once the
// final fragment goes out. Mirrors Netchan_TransmitNextFragment.
func (c *Channel) TransmitNextFragment() []byte {
	c.outgoingSeq++

	out := bitio.NewWriter(FragmentSize + headerSize)
	c.writeHeader(out)
	c.writeFragment(out)

	if !c.FragmentPending() && len(c.datagram) > 0 {
		out.WriteData(c.datagram)
		c.datagram = nil
	}

	pkt := out.Bytes()
	if !c.FragmentPending() {
		c.lastReliableSent = pkt
	}
	return pkt
}

// Retransmit re-sends the last fully-assembled packet verbatim, for the
// "last_sent exceeds 1s" retransmission path spec §5 names.
func (c *Channel) Retransmit() []byte {
	return c.lastReliableSent
}

const headerSize = 4 + 1 + 2 + 2 // sequence, fragment flag, offset, length

// writeHeader writes the 4-byte outgoing sequence number followed by a
// fragment marker byte; writeFragment fills in the offset/length pair
// only when the marker is set, so the header is 5 bytes without a
// fragment and 9 bytes with one; Process reads the marker to know which.
func (c *Channel) writeHeader(w *bitio.Writer) {
	w.WriteLong(int32(c.outgoingSeq))
	if c.FragmentPending() {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}

func (c *Channel) writeFragment(w *bitio.Writer) {
	remaining := c.fragment[c.fragmentOffset:]
	n := len(remaining)
	if n > FragmentSize {
		n = FragmentSize
	}
	w.WriteShort(c.fragmentOffset)
	w.WriteShort(n)
	w.WriteData(remaining[:n])
	c.fragmentOffset += n
}

// Process parses an incoming packet's header, validates sequencing, and
// returns the application payload (the reassembled reliable fragment
// plus any trailing unreliable bytes in the same packet are the
// caller's concern once out-of-order/duplicate packets are rejected).
// Mirrors Netchan_Process's sequence-number bookkeeping.
func (c *Channel) Process(pkt []byte) ([]byte, error) {
	r := bitio.NewReader(pkt)
	seq := uint32(r.ReadLong())
	isFragment := r.ReadByte()
	if isFragment < 0 {
		return nil, fmt.Errorf("netchan: short packet header")
	}

	if seq <= c.incomingSeq {
		return nil, fmt.Errorf("netchan: out-of-order or duplicate packet (seq %d <= %d)", seq, c.incomingSeq)
	}
	c.incomingSeq = seq

	if isFragment != 0 {
		offset := r.ReadShort()
		length := r.ReadShort()
		if offset < 0 || length < 0 {
			return nil, fmt.Errorf("netchan: short fragment header")
		}
		return r.ReadData(length), nil
	}

	return r.ReadData(r.Remaining()), nil
}
