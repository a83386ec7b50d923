package frame

import "github.com/sauerbraten-ng/q2pro-ng/internal/netfield"

// BaselinesPerChunk groups baseline EntityStates into lazily-allocated
// chunks instead of one slice sized MAX_EDICTS, mirroring the teacher's
// chunked-allocation idiom carried over from entities.c's
// client->baselines[newnum >> SV_BASELINES_SHIFT] sparse array.
const BaselinesPerChunk = netfield.BaselinesPerChunk

// BaselineStore is a sparse, chunk-allocated table of per-entity baseline
// states shared by all clients (spawned once per map, one chunk at a
// time as spawnbaseline messages touch higher entity numbers).
type BaselineStore struct {
	chunks map[int][]netfield.EntityState
}

// NewBaselineStore returns an empty store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{chunks: make(map[int][]netfield.EntityState)}
}

// Set records the baseline state for entity number num.
func (b *BaselineStore) Set(num int32, state netfield.EntityState) {
	chunk, slot := int(num)/BaselinesPerChunk, int(num)%BaselinesPerChunk
	c, ok := b.chunks[chunk]
	if !ok {
		c = make([]netfield.EntityState, BaselinesPerChunk)
		b.chunks[chunk] = c
	}
	c[slot] = state
}

// Get returns the baseline for entity number num, or the all-zero
// NullEntityState if no chunk has ever been allocated for it (mirrors
// the `oldent = &nullEntityState` fallback in SV_EmitPacketEntities).
func (b *BaselineStore) Get(num int32) netfield.EntityState {
	chunk, slot := int(num)/BaselinesPerChunk, int(num)%BaselinesPerChunk
	c, ok := b.chunks[chunk]
	if !ok {
		return netfield.NullEntityState
	}
	return c[slot]
}

// Reset discards every baseline, for a fresh map load.
func (b *BaselineStore) Reset() {
	b.chunks = make(map[int][]netfield.EntityState)
}
