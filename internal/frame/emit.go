package frame

import (
	"log"

	"github.com/sauerbraten-ng/q2pro-ng/internal/bitio"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netchan"
	"github.com/sauerbraten-ng/q2pro-ng/internal/netfield"
)

// GetLastFrame resolves the frame the client is asking to delta from,
// returning nil when a full (non-delta) frame must be sent: no prior ack,
// the ack is too old for the backup ring, or its entities have already
// been overwritten. Mirrors get_last_frame.
func GetLastFrame(c *Client) *ClientFrame {
	if c.LastFrame <= 0 {
		c.FramesNodelta++
		return nil
	}
	c.FramesNodelta = 0

	if c.Framenum-uint32(c.LastFrame) >= UpdateBackup {
		log.Printf("%s: delta request from out-of-date packet", c.Name)
		return nil
	}

	fr := &c.Frames[uint32(c.LastFrame)&UpdateMask]
	if fr.Number != uint32(c.LastFrame) {
		log.Printf("%s: delta request from dropped frame", c.Name)
		return nil
	}

	if c.NextEntity-fr.FirstEntity > uint64(len(c.Entities)) {
		log.Printf("%s: delta request from out-of-date entities", c.Name)
		return nil
	}

	return fr
}

// EmitPacketEntities writes the packetentities portion of a frame: a
// merge-walk of the old and new entity lists by ascending entity number,
// writing a delta-from-old for matches, a delta-from-baseline for new
// arrivals, and a removal for departures, terminated by ENTITYNUM_NONE.
// Mirrors SV_EmitPacketEntities.
func EmitPacketEntities(w *bitio.Writer, c *Client, from, to *ClientFrame) {
	fromNumEntities := 0
	if from != nil {
		fromNumEntities = from.NumEntities
	}

	newIndex, oldIndex := 0, 0
	var oldent, newent netfield.EntityState

	for newIndex < to.NumEntities || oldIndex < fromNumEntities {
		var newnum, oldnum int32 = EntitynumWorld, EntitynumWorld

		if newIndex < to.NumEntities {
			i := c.entityRingIndex(to.FirstEntity + uint64(newIndex))
			newent = c.Entities[i]
			newnum = newent.Number
		} else {
			newnum = EntitynumWorld
		}

		if oldIndex < fromNumEntities {
			i := c.entityRingIndex(from.FirstEntity + uint64(oldIndex))
			oldent = c.Entities[i]
			oldnum = oldent.Number
		} else {
			oldnum = EntitynumWorld
		}

		switch {
		case newnum == oldnum:
			netfield.WriteDeltaEntity(w, &oldent, &newent, false)
			oldIndex++
			newIndex++
		case newnum < oldnum:
			baseline := c.Baselines.Get(newnum)
			netfield.WriteDeltaEntity(w, &baseline, &newent, true)
			newIndex++
		default: // newnum > oldnum
			netfield.WriteDeltaEntity(w, &oldent, nil, true)
			oldIndex++
		}
	}

	w.WriteBits(EntitynumNone, netfield.EntitynumBits)
}

// WriteFrameToClient assembles and writes one svc_frame message: header,
// area bits, delta playerstate, delta entities. Mirrors
// SV_WriteFrameToClient. Caller is responsible for calling w.FlushBits()
// immediately before any subsequent byte-aligned command, per spec §6.3.
func WriteFrameToClient(w *bitio.Writer, c *Client) {
	fr := &c.Frames[c.Framenum&UpdateMask]

	oldfr := GetLastFrame(c)
	delta := uint32(NonDeltaFrame)
	if oldfr != nil {
		delta = c.Framenum - uint32(c.LastFrame)
	}

	w.WriteByte(int(netchan.SvcFrame))
	w.WriteBits(int32(c.Framenum), netfield.FramenumBits)
	w.WriteBits(int32(delta), netfield.DeltaframeBits)
	w.WriteBits(int32(fr.ServerTime), 32)
	w.WriteBits(int32(netfield.NormalizeFlags(c.FrameFlags)), netfield.FrameflagsBits)

	w.WriteBits(int32(fr.AreaBytes), 6)
	for i := 0; i < fr.AreaBytes; i++ {
		w.WriteBits(int32(fr.AreaBits[i]), 8)
	}

	var oldps *netfield.PlayerState
	if oldfr != nil {
		oldps = &oldfr.PS
	}
	netfield.WriteDeltaPlayerstate(w, oldps, &fr.PS)

	c.SuppressCount = 0
	c.FrameFlags = 0

	EmitPacketEntities(w, c, oldfr, fr)
}
