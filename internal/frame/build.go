package frame

import (
	"math"

	"github.com/sauerbraten-ng/q2pro-ng/internal/netfield"
	"github.com/sauerbraten-ng/q2pro-ng/internal/world"
)

// Entity svflags bits this package inspects. The full set lives with the
// game layer; these are the only two SV_BuildClientFrame reads.
const (
	SVFNoClient uint32 = 1 << iota
	SVFNoCull
)

// EntityView is the read-only slice of one world entity's state that the
// frame assembler needs. The game/world layer owns the real entity;
// this is a borrowed snapshot, not a handle.
type EntityView struct {
	InUse bool

	State   netfield.EntityState
	Origin  world.Vec3
	SVFlags uint32

	HasEffects bool

	AreaNum     int
	AreaNum2    int
	NumClusters int // -1 == use headnode escape
	Clusters    []int

	OwnerNum int32

	// LoopDistMult is the precomputed looping-sound attenuation
	// multiplier (Com_GetEntityLoopDistMult); 1.0 if the entity has no
	// looping sound.
	LoopDistMult float32
}

// EntitySource is the world/game-layer collaborator BuildClientFrame
// walks. Entities are addressed 0..NumEdicts()-1, matching sv.entities.
type EntitySource interface {
	NumEdicts() int
	Entity(i int) EntityView
}

// BuildClientFrame decides which entities are visible to client, copying
// off the player state and area bits, and appending the selected entity
// states onto client's circular entity ring. Mirrors SV_BuildClientFrame.
//
// viewOrg/clientArea/clientCluster describe the client's view point,
// already resolved by the caller via model.PointLeaf (frame.go keeps the
// collision model itself out of this function's required inputs beyond
// what FatPVS/visibility need, since the caller typically resolves the
// view leaf once per frame for other purposes too).
func BuildClientFrame(
	c *Client,
	src EntitySource,
	model world.CollisionModel,
	ps netfield.PlayerState,
	viewOrg world.Vec3,
	clientArea, numAreas int,
	noVis bool,
	serverTime uint32,
	sentTime int64,
) {
	fr := &c.Frames[c.Framenum&UpdateMask]
	fr.Number = c.Framenum
	fr.ServerTime = serverTime
	fr.SentTime = sentTime
	fr.Latency = -1

	c.FramesSent++

	clientPVS := FatPVS(model, viewOrg)
	clientLeaf := model.PointLeaf(viewOrg)
	clientPHS := model.ClusterVis(clientLeaf.Cluster, world.VisPHS)

	fr.AreaBits, fr.AreaBytes = WriteAreaBits(model, clientArea, numAreas)

	fr.PS = ps

	fr.NumEntities = 0
	fr.FirstEntity = c.NextEntity

	for e := 0; e < src.NumEdicts(); e++ {
		ent := src.Entity(e)

		if !ent.InUse {
			continue
		}
		if ent.SVFlags&SVFNoClient != 0 {
			continue
		}
		if !ent.HasEffects {
			continue
		}

		if e != int(c.ClientNum) && !noVis && ent.SVFlags&SVFNoCull == 0 {
			if !model.AreasConnected(clientArea, ent.AreaNum) &&
				!model.AreasConnected(clientArea, ent.AreaNum2) {
				continue // blocked by a closed door
			}

			if ent.State.Sound != 0 {
				if !EntityVisible(ent.Clusters, ent.NumClusters, clientPHS) {
					continue
				}
				if EntityAttenuatedAway(dist(viewOrg, ent.Origin), ent.LoopDistMult) {
					if ent.State.ModelIndex == 0 {
						continue
					}
					if !EntityVisible(ent.Clusters, ent.NumClusters, clientPVS) {
						continue
					}
				}
			} else if !EntityVisible(ent.Clusters, ent.NumClusters, clientPVS) {
				continue
			}
		}

		idx := c.entityRingIndex(c.NextEntity)
		state := ent.State
		if e == int(c.ClientNum) {
			state.ModelIndex = 0
		}
		if ent.OwnerNum == c.ClientNum {
			state.Solid = 0
		}
		c.Entities[idx] = state

		fr.NumEntities++
		c.NextEntity++

		if fr.NumEntities == MaxPacketEntities {
			break
		}
	}
}

func dist(a, b world.Vec3) float32 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}
