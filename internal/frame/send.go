package frame

import (
	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netchan"
)

// SendClientMessage assembles this tick's svc_frame for c, appends it to
// ch's unreliable datagram (or drops it under FFSuppressed when the
// rate limiter trips), transmits the packet, and records the send for
// the rate window. Mirrors the per-client body of SV_SendClientMessages
// (spec §4.4 step 6): "append unreliable datagram, then Netchan_Transmit
// with reliable queue; record bytes in rate window; advance next_entity."
//
// realtime is the server's current millisecond clock, used for the rate
// limiter's send-time bookkeeping; spawned reports whether c has left
// the connecting state (only spawned clients' message sizes count
// toward the rate window, matching SV_CalcSendTime).
func SendClientMessage(ch *netchan.Channel, c *Client, realtime int64, spawned bool) []byte {
	if RateDrop(c) {
		c.Framenum++
		return nil
	}

	w := bitio.NewWriter(netfieldMaxFrameBytes)
	WriteFrameToClient(w, c)
	w.FlushBits()

	msg := w.Bytes()
	if err := ch.AddMessage(msg, netchan.CompressAuto); err != nil {
		c.FrameFlags |= FFClientDrop
		return nil
	}

	pkt := ch.Transmit()

	CalcSendTime(c, realtime, uint32(len(msg)), spawned)
	c.FramesSent++
	c.Framenum++
	return pkt
}

// SendAsyncPackets drains any reliable fragments still queued for c from
// a prior tick, used by not-yet-spawned clients between gameplay ticks.
// Mirrors SV_SendAsyncPackets' per-client body: "packets are sent
// whenever now - send_time >= send_delta AND (message pending OR
// retransmit window of 1s elapsed AND reliable segment outstanding)"
// (spec §4.4). The time-gating itself is the caller's responsibility
// (it owns the tick clock); this only drains what's ready to go out.
func SendAsyncPackets(ch *netchan.Channel, realtime, lastSent int64) []byte {
	const retransmitWindow = 1000 // ms, per spec §5

	if ch.FragmentPending() {
		return ch.TransmitNextFragment()
	}
	if realtime-lastSent >= retransmitWindow {
		return ch.Retransmit()
	}
	return nil
}

// netfieldMaxFrameBytes sizes the writer for one assembled svc_frame
// message: 32 bytes of header, the area bits, 128 bytes for the player
// state and 48 bytes per packet entity. It is a fixed budget, not a
// worst-case bound like MsgMaxEntityBytes (a fully changed entity or
// player state can need more), so a frame that exceeds it overflows the
// writer.
const netfieldMaxFrameBytes = 32 + AreaBitsBytes + 128 + MaxPacketEntities*48
