// Package netfield implements the field-table-driven delta codec for
// EntityState and PlayerState: parallel descriptor arrays pairing a byte
// offset (expressed here as a typed accessor, not a raw C offset) with a
// width descriptor, and the write/read contracts that walk them.
package netfield

// Wire-layout constants. spec.md leaves these symbolic; values below match
// q2pro-ng's known on-wire layout (see SPEC_FULL.md §4).
const (
	EntitynumBits   = 10 // MAX_EDICTS = 1024
	EntitynumWorld  = 1<<EntitynumBits - 1
	EntitynumNone   = EntitynumWorld
	ModelindexBits  = 12
	MaxStats        = 32
	FramenumBits    = 32
	DeltaframeBits  = 5 // sentinel 31 == non-delta
	NonDeltaFrame   = 31
	FrameflagsBits  = 8
	UpdateBackup    = 32 // must be power of two
	RateMessages    = 10
	BaselinesPerChunk = 64
	MaxPacketEntities = 128
	MaxEntClusters    = 16
)

// Frame flags, written in FrameflagsBits. FF_CLIENTPRED masks out
// FF_CLIENTDROP per spec §9 Open Question 2 — replicated verbatim rather
// than re-derived.
const (
	FFSuppressed uint32 = 1 << iota
	FFClientDrop
	FFClientPred
	FFOldFrame
	FFOldEntity
	FFBadFrame
)

// NormalizeFlags applies the FF_CLIENTPRED/FF_CLIENTDROP masking rule.
func NormalizeFlags(flags uint32) uint32 {
	if flags&FFClientPred != 0 {
		flags &^= FFClientDrop
	}
	return flags
}

// Vec3 is a 3-component float32 vector (origin, angles, velocity, ...).
type Vec3 [3]float32

// Fog mirrors the player-state volumetric fog sub-aggregate.
type Fog struct {
	Color     [3]float32 // 0..1, transmitted as Color8
	Density   float32
	SkyFactor float32
}

// HeightFogSide is one edge (start or end) of the height-fog sub-aggregate.
type HeightFogSide struct {
	Color [3]float32
	Dist  float32
}

// HeightFog mirrors the player-state height-fog sub-aggregate.
type HeightFog struct {
	Start    HeightFogSide
	End      HeightFogSide
	Density  float32
	Falloff  float32
}

// EntityState is the flat, transmissible per-entity state aggregate.
type EntityState struct {
	Number int32

	Angles    Vec3
	Origin    Vec3
	OldOrigin Vec3

	ModelIndex  int32
	ModelIndex2 int32
	ModelIndex3 int32
	ModelIndex4 int32

	SkinNum  int32
	Effects  int32
	RenderFx int32
	Solid    int32
	MoreFx   int32
	Frame    int32
	Sound    int32

	Event      [4]int32
	EventParam [4]int32

	Alpha float32
	Scale float32

	OtherNum int32
}

// PlayerState is the flat, transmissible per-client player state aggregate.
type PlayerState struct {
	PMType int32

	Origin   Vec3
	Velocity Vec3

	PMFlags     int32
	PMTime      int32
	Gravity     int32
	DeltaAngles [3]int32 // short angle-delta units, a plain-bits field (not NETF_ANGLE)

	ClientNum   int32
	ViewAngles  Vec3
	ViewHeight  int32
	BobTime     int32

	GunIndex int32
	GunSkin  int32
	GunFrame int32
	GunRate  int32

	ScreenBlend [4]float32
	DamageBlend [4]float32

	Fov     int32
	RDFlags int32

	Fog       Fog
	HeightFog HeightFog

	Stats [MaxStats]int32
}
