// Package frame implements the per-client frame pipeline: visibility
// determination (PVS/PHS/area), the frame backup ring, rate limiting,
// and frame assembly/emission (spec §3.3, §4.4, §4.7).
package frame

import (
	"github.com/sauerbraten-ng/q2pro-ng/internal/netfield"
	"github.com/sauerbraten-ng/q2pro-ng/internal/world"
)

// Re-exported wire-layout constants, kept in one place (netfield) so the
// frame ring and the codec agree on sizing.
const (
	UpdateBackup      = netfield.UpdateBackup
	UpdateMask        = UpdateBackup - 1
	RateMessages      = netfield.RateMessages
	MaxPacketEntities = netfield.MaxPacketEntities
	EntitynumNone     = netfield.EntitynumNone
	EntitynumWorld    = netfield.EntitynumWorld
	NonDeltaFrame     = netfield.NonDeltaFrame
	AreaBitsBytes     = 32 // 6-bit length prefix caps this at 63; 32 covers any real map
)

// Frame-flags bit, mirrored from netfield for readability at call sites.
const (
	FFSuppressed = netfield.FFSuppressed
	FFClientDrop = netfield.FFClientDrop
	FFClientPred = netfield.FFClientPred
)

// ClientFrame is one entry of a client's frame backup ring (spec §3.3
// bullet 2): "{frame_number, server_time, playerstate, first_entity_index,
// num_entities, areabits[], sent_wall_time, latency}".
type ClientFrame struct {
	Number      uint32
	ServerTime  uint32
	PS          netfield.PlayerState
	FirstEntity uint64
	NumEntities int
	AreaBits    [AreaBitsBytes]byte
	AreaBytes   int
	SentTime    int64
	Latency     int32
}

// Client holds everything the frame pipeline needs for one connected
// player: the frame ring, the per-client entity-state ring, and the rate
// limiter's rolling window. It intentionally does not own the network
// channel itself (internal/netchan) or the game-rules view of the
// entity (that lives behind EntitySource).
type Client struct {
	Name string

	Framenum      uint32
	LastFrame     int32 // client-claimed delta base; <=0 means "no delta"
	FrameFlags    uint32
	SuppressCount int
	FramesSent    int
	FramesNodelta int

	Frames [UpdateBackup]ClientFrame

	// Entities is the circular per-client entity-state buffer; length
	// must be a power of two (enforced by NewClient).
	Entities   []netfield.EntityState
	NextEntity uint64

	Baselines *BaselineStore

	Rate        uint32 // bytes/sec; 0 == unlimited (loopback)
	MessageSize [RateMessages]uint32
	SendTime    int64
	SendDelta   int64

	// ClientNum is this client's own entity number, used to hide the POV
	// entity from its own renderer (spec §4.4 step 4).
	ClientNum int32
}

// NewClient allocates a Client whose entity ring holds numEntities
// states; numEntities must be a power of two.
func NewClient(name string, numEntities int, baselines *BaselineStore) *Client {
	if numEntities&(numEntities-1) != 0 {
		panic("frame: numEntities must be a power of two")
	}
	return &Client{
		Name:      name,
		Entities:  make([]netfield.EntityState, numEntities),
		Baselines: baselines,
		LastFrame: -1,
	}
}

func (c *Client) entityRingIndex(i uint64) uint64 {
	return i & uint64(len(c.Entities)-1)
}

// Vec3 aliases world.Vec3 so callers don't need to juggle two identical
// vector types across package boundaries.
type Vec3 = world.Vec3
