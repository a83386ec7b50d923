package netfield

import "github.com/sauerbraten-ng/q2pro-ng/internal/bitio"

// NullPlayerState is the all-zero reference used when a client has no
// prior frame to delta from.
var NullPlayerState PlayerState

// PlayerStateFields enumerates, in stable wire order, every transmissible
// player-state field. Grounded on original_source/src/common/msg.c's
// player_state_fields[] table.
var PlayerStateFields = []Field[PlayerState]{
	plainI32("pm_type", func(p *PlayerState) *int32 { return &p.PMType }, 8),
	floatF32("origin[0]", func(p *PlayerState) *float32 { return &p.Origin[0] }),
	floatF32("origin[1]", func(p *PlayerState) *float32 { return &p.Origin[1] }),
	floatF32("origin[2]", func(p *PlayerState) *float32 { return &p.Origin[2] }),
	floatF32("velocity[0]", func(p *PlayerState) *float32 { return &p.Velocity[0] }),
	floatF32("velocity[1]", func(p *PlayerState) *float32 { return &p.Velocity[1] }),
	floatF32("velocity[2]", func(p *PlayerState) *float32 { return &p.Velocity[2] }),
	plainI32("pm_flags", func(p *PlayerState) *int32 { return &p.PMFlags }, 16),
	plainI32("pm_time", func(p *PlayerState) *int32 { return &p.PMTime }, 16),
	plainI32("gravity", func(p *PlayerState) *int32 { return &p.Gravity }, -16),
	plainI32("delta_angles[0]", func(p *PlayerState) *int32 { return &p.DeltaAngles[0] }, -16),
	plainI32("delta_angles[1]", func(p *PlayerState) *int32 { return &p.DeltaAngles[1] }, -16),
	plainI32("delta_angles[2]", func(p *PlayerState) *int32 { return &p.DeltaAngles[2] }, -16),

	plainI32("clientnum", func(p *PlayerState) *int32 { return &p.ClientNum }, EntitynumBits),
	angleF32("viewangles[0]", func(p *PlayerState) *float32 { return &p.ViewAngles[0] }),
	angleF32("viewangles[1]", func(p *PlayerState) *float32 { return &p.ViewAngles[1] }),
	angleF32("viewangles[2]", func(p *PlayerState) *float32 { return &p.ViewAngles[2] }),
	plainI32("viewheight", func(p *PlayerState) *int32 { return &p.ViewHeight }, -8),
	plainI32("bobtime", func(p *PlayerState) *int32 { return &p.BobTime }, 8),
	plainI32("gunindex", func(p *PlayerState) *int32 { return &p.GunIndex }, ModelindexBits),
	plainI32("gunskin", func(p *PlayerState) *int32 { return &p.GunSkin }, 8),
	plainI32("gunframe", func(p *PlayerState) *int32 { return &p.GunFrame }, 8),
	plainI32("gunrate", func(p *PlayerState) *int32 { return &p.GunRate }, 2),
	colorF32("screen_blend[0]", func(p *PlayerState) *float32 { return &p.ScreenBlend[0] }),
	colorF32("screen_blend[1]", func(p *PlayerState) *float32 { return &p.ScreenBlend[1] }),
	colorF32("screen_blend[2]", func(p *PlayerState) *float32 { return &p.ScreenBlend[2] }),
	colorF32("screen_blend[3]", func(p *PlayerState) *float32 { return &p.ScreenBlend[3] }),
	colorF32("damage_blend[0]", func(p *PlayerState) *float32 { return &p.DamageBlend[0] }),
	colorF32("damage_blend[1]", func(p *PlayerState) *float32 { return &p.DamageBlend[1] }),
	colorF32("damage_blend[2]", func(p *PlayerState) *float32 { return &p.DamageBlend[2] }),
	colorF32("damage_blend[3]", func(p *PlayerState) *float32 { return &p.DamageBlend[3] }),
	plainI32("fov", func(p *PlayerState) *int32 { return &p.Fov }, 8),
	lebI32("rdflags", func(p *PlayerState) *int32 { return &p.RDFlags }),

	colorF32("fog.color[0]", func(p *PlayerState) *float32 { return &p.Fog.Color[0] }),
	colorF32("fog.color[1]", func(p *PlayerState) *float32 { return &p.Fog.Color[1] }),
	colorF32("fog.color[2]", func(p *PlayerState) *float32 { return &p.Fog.Color[2] }),
	floatF32("fog.density", func(p *PlayerState) *float32 { return &p.Fog.Density }),
	floatF32("fog.sky_factor", func(p *PlayerState) *float32 { return &p.Fog.SkyFactor }),

	colorF32("heightfog.start.color[0]", func(p *PlayerState) *float32 { return &p.HeightFog.Start.Color[0] }),
	colorF32("heightfog.start.color[1]", func(p *PlayerState) *float32 { return &p.HeightFog.Start.Color[1] }),
	colorF32("heightfog.start.color[2]", func(p *PlayerState) *float32 { return &p.HeightFog.Start.Color[2] }),
	floatF32("heightfog.start.dist", func(p *PlayerState) *float32 { return &p.HeightFog.Start.Dist }),

	colorF32("heightfog.end.color[0]", func(p *PlayerState) *float32 { return &p.HeightFog.End.Color[0] }),
	colorF32("heightfog.end.color[1]", func(p *PlayerState) *float32 { return &p.HeightFog.End.Color[1] }),
	colorF32("heightfog.end.color[2]", func(p *PlayerState) *float32 { return &p.HeightFog.End.Color[2] }),
	floatF32("heightfog.end.dist", func(p *PlayerState) *float32 { return &p.HeightFog.End.Dist }),

	floatF32("heightfog.density", func(p *PlayerState) *float32 { return &p.HeightFog.Density }),
	floatF32("heightfog.falloff", func(p *PlayerState) *float32 { return &p.HeightFog.Falloff }),
}

var playerStateNCBits = NCBits(PlayerStateFields)

// WriteDeltaPlayerstate writes a full delta record: field deltas plus the
// trailing stats bitmap (spec §4.3 "PlayerState uses the same scheme
// plus a trailing stats bitmap").
func WriteDeltaPlayerstate(w *bitio.Writer, from, to *PlayerState) {
	if from == nil {
		from = &NullPlayerState
	}

	var statbits uint64
	for i := 0; i < MaxStats; i++ {
		if to.Stats[i] != from.Stats[i] {
			statbits |= 1 << uint(i)
		}
	}

	nc := countDeltaFields(PlayerStateFields, len(PlayerStateFields), from, to)
	if nc == 0 && statbits == 0 {
		w.WriteBit(false)
		return
	}

	w.WriteBit(true)
	w.WriteBits(int32(nc), playerStateNCBits)
	writeDeltaFields(w, PlayerStateFields, nc, from, to)

	w.WriteLeb64(statbits)
	if statbits != 0 {
		for i := 0; i < MaxStats; i++ {
			if statbits&(1<<uint(i)) != 0 {
				w.WriteSignedLeb32(to.Stats[i])
			}
		}
	}
}

// ReadDeltaPlayerstate is the symmetric counterpart of
// WriteDeltaPlayerstate; `to` must already hold the prior frame's values
// for fields not retransmitted (the field table's "leave unchanged"
// contract).
func ReadDeltaPlayerstate(r *bitio.Reader, to *PlayerState) {
	if !r.ReadBit() {
		return
	}

	nc := int(r.ReadBits(playerStateNCBits))
	if nc > len(PlayerStateFields) {
		nc = len(PlayerStateFields)
	}
	readDeltaFields(r, PlayerStateFields, nc, to)

	statbits := r.ReadLeb64()
	if statbits != 0 {
		for i := 0; i < MaxStats; i++ {
			if statbits&(1<<uint(i)) != 0 {
				to.Stats[i] = r.ReadSignedLeb32()
			}
		}
	}
}
