package world

// VisMode selects PVS or PHS when asking the collision model for a
// cluster's visibility row (spec §3.2 step 2, §9 glossary).
type VisMode int

const (
	VisPVS VisMode = iota
	VisPHS
)

// Leaf is the result of a point-to-leaf query.
type Leaf struct {
	Cluster int
	Area    int
}

// TraceResult is the result of a swept-box trace.
type TraceResult struct {
	Fraction float32
	EndPos   Vec3
	Normal   Vec3
	Contents int
	Entity   int // entity number hit, or -1
}

// CollisionModel is the external collaborator boundary: the
// collision/BSP loader itself is out of scope (spec.md's Non-goals list
// it among "external collaborators, specified only at their interface").
// World never does anything with a BSP file except ask one of these five
// questions.
type CollisionModel interface {
	PointLeaf(p Vec3) Leaf
	BoxLeafs(mins, maxs Vec3) (clusters []int, area int, headnode int, truncated bool)
	ClusterVis(cluster int, mode VisMode) []byte
	AreasConnected(area1, area2 int) bool
	BoxTrace(start, end, mins, maxs Vec3) TraceResult
}
