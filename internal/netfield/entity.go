package netfield

import "github.com/sauerbraten-ng/q2pro-ng/internal/bitio"

// NullEntityState is the all-zero baseline used when a client has never
// seen an entity before (spec §4.3 step 2).
var NullEntityState EntityState

func plainI32[T any](name string, ptr func(*T) *int32, bits int) Field[T] {
	g, s := intField(ptr)
	return Field[T]{Name: name, Kind: KindPlain, Bits: bits, Get: g, Set: s}
}

func lebI32[T any](name string, ptr func(*T) *int32) Field[T] {
	g, s := intField(ptr)
	return Field[T]{Name: name, Kind: KindLEB, Get: g, Set: s}
}

func floatF32[T any](name string, ptr func(*T) *float32) Field[T] {
	g, s := floatField(ptr)
	return Field[T]{Name: name, Kind: KindFloat, Get: g, Set: s}
}

func angleF32[T any](name string, ptr func(*T) *float32) Field[T] {
	g, s := floatField(ptr)
	return Field[T]{Name: name, Kind: KindAngle, Get: g, Set: s}
}

func colorF32[T any](name string, ptr func(*T) *float32) Field[T] {
	g, s := floatField(ptr)
	return Field[T]{Name: name, Kind: KindColor, Get: g, Set: s}
}

// EntityStateFields enumerates, in stable wire order, every transmissible
// entity field. Grounded on original_source/src/common/msg.c's
// entity_state_fields[] table.
var EntityStateFields = []Field[EntityState]{
	angleF32("angles[0]", func(e *EntityState) *float32 { return &e.Angles[0] }),
	angleF32("angles[1]", func(e *EntityState) *float32 { return &e.Angles[1] }),
	angleF32("angles[2]", func(e *EntityState) *float32 { return &e.Angles[2] }),
	floatF32("origin[0]", func(e *EntityState) *float32 { return &e.Origin[0] }),
	floatF32("origin[1]", func(e *EntityState) *float32 { return &e.Origin[1] }),
	floatF32("origin[2]", func(e *EntityState) *float32 { return &e.Origin[2] }),
	plainI32("modelindex", func(e *EntityState) *int32 { return &e.ModelIndex }, ModelindexBits),
	plainI32("modelindex2", func(e *EntityState) *int32 { return &e.ModelIndex2 }, ModelindexBits),
	plainI32("modelindex3", func(e *EntityState) *int32 { return &e.ModelIndex3 }, ModelindexBits),
	plainI32("modelindex4", func(e *EntityState) *int32 { return &e.ModelIndex4 }, ModelindexBits),
	lebI32("skinnum", func(e *EntityState) *int32 { return &e.SkinNum }),
	lebI32("effects", func(e *EntityState) *int32 { return &e.Effects }),
	lebI32("renderfx", func(e *EntityState) *int32 { return &e.RenderFx }),
	lebI32("solid", func(e *EntityState) *int32 { return &e.Solid }),
	lebI32("morefx", func(e *EntityState) *int32 { return &e.MoreFx }),
	lebI32("frame", func(e *EntityState) *int32 { return &e.Frame }),
	lebI32("sound", func(e *EntityState) *int32 { return &e.Sound }),
	plainI32("event[0]", func(e *EntityState) *int32 { return &e.Event[0] }, 8),
	plainI32("event[1]", func(e *EntityState) *int32 { return &e.Event[1] }, 8),
	plainI32("event[2]", func(e *EntityState) *int32 { return &e.Event[2] }, 8),
	plainI32("event[3]", func(e *EntityState) *int32 { return &e.Event[3] }, 8),
	lebI32("event_param[0]", func(e *EntityState) *int32 { return &e.EventParam[0] }),
	lebI32("event_param[1]", func(e *EntityState) *int32 { return &e.EventParam[1] }),
	lebI32("event_param[2]", func(e *EntityState) *int32 { return &e.EventParam[2] }),
	lebI32("event_param[3]", func(e *EntityState) *int32 { return &e.EventParam[3] }),
	floatF32("alpha", func(e *EntityState) *float32 { return &e.Alpha }),
	floatF32("scale", func(e *EntityState) *float32 { return &e.Scale }),
	plainI32("othernum", func(e *EntityState) *int32 { return &e.OtherNum }, EntitynumBits),
}

// EntityStateFields2 is the secondary table used only when the oldorg
// selector is 3 (old_origin transmitted explicitly).
var EntityStateFields2 = []Field[EntityState]{
	floatF32("old_origin[0]", func(e *EntityState) *float32 { return &e.OldOrigin[0] }),
	floatF32("old_origin[1]", func(e *EntityState) *float32 { return &e.OldOrigin[1] }),
	floatF32("old_origin[2]", func(e *EntityState) *float32 { return &e.OldOrigin[2] }),
}

var entityStateNCBits = NCBits(EntityStateFields)

// MsgMaxEntityBytes is the worst-case byte size of one WriteDeltaEntity
// call, derived from the field table at init per spec §3.2's invariant
// that NumChangedFields*MAX_FIELD_BITS fits in this budget.
var MsgMaxEntityBytes = func() int {
	bitsTotal := EntitynumBits + 2 + entityStateNCBits + 2
	bitsTotal += CountDeltaMaxBits(EntityStateFields)
	bitsTotal += CountDeltaMaxBits(EntityStateFields2)
	return (bitsTotal + 7) / 8
}()

// WriteDeltaEntity writes a delta update from `from` to `to`. If to is
// nil, from must be non-nil and a removal is emitted (spec §4.3 step 1).
// If from is nil, the null baseline is used (the "baseline" case, step 2).
// force controls whether a fully-unchanged state still emits an empty
// changed-record (used to force an entity into the stream, e.g. on map
// load).
func WriteDeltaEntity(w *bitio.Writer, from, to *EntityState, force bool) {
	if to == nil {
		w.WriteBits(from.Number, EntitynumBits)
		w.WriteBit(true) // removed
		return
	}

	baseline := false
	if from == nil {
		from = &NullEntityState
		baseline = true
	}

	var oldorg int32
	switch {
	case to.OldOrigin == from.OldOrigin:
		oldorg = 0
	case to.OldOrigin == from.Origin:
		oldorg = 1
	case to.OldOrigin == to.Origin:
		oldorg = 2
	default:
		oldorg = 3
	}

	nc := countDeltaFields(EntityStateFields, len(EntityStateFields), from, to)
	if nc == 0 && oldorg == 0 {
		if !force {
			return
		}
		w.WriteBits(to.Number, EntitynumBits)
		w.WriteBit(false) // not removed
		w.WriteBit(false) // not changed
		return
	}

	w.WriteBits(to.Number, EntitynumBits)
	if !baseline {
		w.WriteBit(false) // not removed
		w.WriteBit(true)  // changed
	}
	w.WriteBits(int32(nc), entityStateNCBits)
	writeDeltaFields(w, EntityStateFields, nc, from, to)

	w.WriteBits(oldorg, 2)
	if oldorg == 3 {
		writeDeltaFields(w, EntityStateFields2, 3, from, to)
	}
}

// ReadDeltaEntity is the symmetric counterpart of WriteDeltaEntity's
// non-removal path: the caller has already read the entity number and (for
// non-baseline deltas) the removed/changed bit pair, and supplies the
// reference state `from` (NullEntityState for a baseline delta) so oldorg
// selectors 0 and 1 can be resolved.
func ReadDeltaEntity(r *bitio.Reader, from, to *EntityState) {
	nc := int(r.ReadBits(entityStateNCBits))
	if nc > len(EntityStateFields) {
		nc = len(EntityStateFields)
	}
	readDeltaFields(r, EntityStateFields, nc, to)

	switch r.ReadBits(2) {
	case 0:
		to.OldOrigin = from.OldOrigin
	case 1:
		to.OldOrigin = from.Origin
	case 2:
		to.OldOrigin = to.Origin
	case 3:
		readDeltaFields(r, EntityStateFields2, 3, to)
	}
}
