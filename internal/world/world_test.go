package world

import "testing"

type fakeModel struct{}

func (fakeModel) PointLeaf(p Vec3) Leaf { return Leaf{} }
func (fakeModel) BoxLeafs(mins, maxs Vec3) ([]int, int, int, bool) {
	return []int{2}, 1, 0, false
}
func (fakeModel) ClusterVis(cluster int, mode VisMode) []byte { return nil }
func (fakeModel) AreasConnected(a, b int) bool                { return true }
func (fakeModel) BoxTrace(start, end, mins, maxs Vec3) TraceResult {
	return TraceResult{Fraction: 1, Entity: -1}
}

func newTestWorld() *World {
	w := NewWorld(16)
	w.Reset(fakeModel{}, Vec3{-1024, -1024, -1024}, Vec3{1024, 1024, 1024})
	return w
}

func TestAreaEdictsFindsOverlapping(t *testing.T) {
	w := newTestWorld()
	w.LinkEdict(0, SolidBBox, Vec3{0, 0, 0}, Vec3{-16, -16, -16}, Vec3{16, 16, 16}, Vec3{}, Vec3{}, false)
	w.LinkEdict(1, SolidBBox, Vec3{500, 500, 500}, Vec3{-16, -16, -16}, Vec3{16, 16, 16}, Vec3{}, Vec3{}, false)

	out := make([]int, 4)
	n := w.AreaEdicts(Vec3{-32, -32, -32}, Vec3{32, 32, 32}, out, AreaSolid)
	if n != 1 || out[0] != 0 {
		t.Fatalf("expected only entity 0, got n=%d out=%v", n, out[:n])
	}
}

func TestAreaEdictsSkipsTriggerListForSolidQuery(t *testing.T) {
	w := newTestWorld()
	w.LinkEdict(0, SolidTrigger, Vec3{0, 0, 0}, Vec3{-16, -16, -16}, Vec3{16, 16, 16}, Vec3{}, Vec3{}, false)

	out := make([]int, 4)
	n := w.AreaEdicts(Vec3{-32, -32, -32}, Vec3{32, 32, 32}, out, AreaSolid)
	if n != 0 {
		t.Fatalf("expected 0 solid matches for a trigger-only entity, got %d", n)
	}

	n = w.AreaEdicts(Vec3{-32, -32, -32}, Vec3{32, 32, 32}, out, AreaTriggers)
	if n != 1 {
		t.Fatalf("expected 1 trigger match, got %d", n)
	}
}

func TestUnlinkEdictRemovesFromQuery(t *testing.T) {
	w := newTestWorld()
	w.LinkEdict(0, SolidBBox, Vec3{0, 0, 0}, Vec3{-16, -16, -16}, Vec3{16, 16, 16}, Vec3{}, Vec3{}, false)
	w.UnlinkEdict(0)

	out := make([]int, 4)
	n := w.AreaEdicts(Vec3{-32, -32, -32}, Vec3{32, 32, 32}, out, AreaSolid)
	if n != 0 {
		t.Fatalf("expected 0 matches after unlink, got %d", n)
	}
}

func TestAreaEdictsTruncates(t *testing.T) {
	w := newTestWorld()
	for i := 0; i < 4; i++ {
		w.LinkEdict(i, SolidBBox, Vec3{0, 0, 0}, Vec3{-16, -16, -16}, Vec3{16, 16, 16}, Vec3{}, Vec3{}, false)
	}
	out := make([]int, 2)
	n := w.AreaEdicts(Vec3{-32, -32, -32}, Vec3{32, 32, 32}, out, AreaSolid)
	if n != 2 {
		t.Fatalf("expected truncation to len(out)=2, got %d", n)
	}
}

func TestLinkEdictAssignsClusters(t *testing.T) {
	w := newTestWorld()
	w.LinkEdict(0, SolidBBox, Vec3{0, 0, 0}, Vec3{-16, -16, -16}, Vec3{16, 16, 16}, Vec3{}, Vec3{}, false)
	l := w.Link(0)
	if l.NumClusters != 1 {
		t.Fatalf("expected 1 cluster from fakeModel, got %d", l.NumClusters)
	}
	if l.AreaNum != 1 {
		t.Fatalf("expected area 1, got %d", l.AreaNum)
	}
}

func TestLinkEdictSolidNotSkipsTreeInsertion(t *testing.T) {
	w := newTestWorld()
	w.LinkEdict(0, SolidNot, Vec3{0, 0, 0}, Vec3{-16, -16, -16}, Vec3{16, 16, 16}, Vec3{}, Vec3{}, false)
	out := make([]int, 4)
	n := w.AreaEdicts(Vec3{-32, -32, -32}, Vec3{32, 32, 32}, out, AreaSolid)
	if n != 0 {
		t.Fatalf("SOLID_NOT entity should never be inserted into the tree, got %d matches", n)
	}
}
