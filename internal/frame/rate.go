package frame

import "log"

// RateDrop reports whether client has exceeded its configured bandwidth
// over the last RateMessages frames and should have this frame
// suppressed. Mirrors SV_RateDrop. A zero Rate means unlimited (loopback
// client), matching "never drop over the loopback".
func RateDrop(c *Client) bool {
	if c.Rate == 0 {
		return false
	}

	var total uint64
	for _, sz := range c.MessageSize {
		total += uint64(sz)
	}

	if total > uint64(c.Rate) {
		log.Printf("frame %d suppressed for %s (total = %d)", c.Framenum, c.Name, total)
		c.FrameFlags |= FFSuppressed
		c.SuppressCount++
		c.MessageSize[c.Framenum%RateMessages] = 0
		return true
	}

	return false
}

// CalcSendTime records size for rate estimation and schedules send_delta,
// the minimum gap (in the same time unit as realtime) before
// SV_SendAsyncPackets may send this client another packet. Mirrors
// SV_CalcSendTime. spawned reports whether the client has reached the
// "spawned" connection state (message_size is only updated for spawned
// clients, matching the original's cs_spawned gate).
func CalcSendTime(c *Client, realtime int64, size uint32, spawned bool) {
	if c.Rate == 0 {
		c.SendTime = realtime
		c.SendDelta = 0
		return
	}

	if spawned {
		c.MessageSize[c.Framenum%RateMessages] = size
	}

	c.SendTime = realtime
	c.SendDelta = int64(size) * 1000 / int64(c.Rate)
}
