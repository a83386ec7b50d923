package world

import "log"

// AreaEdicts fills out with entity numbers whose bounding box intersects
// [mins,maxs] and whose solid type matches areaType, recursing into the
// area tree only where the query box straddles a split plane. Mirrors
// SV_AreaEdicts_r/SV_AreaEdicts. The result is truncated (and a warning
// logged, matching the original's Com_WPrintf) if more than len(out)
// entities match.
func (w *World) AreaEdicts(mins, maxs Vec3, out []int, areaType AreaType) int {
	if len(w.nodes) == 0 {
		return 0
	}
	count := 0
	w.areaEdictsRecurse(0, mins, maxs, out, &count, areaType)
	return count
}

func (w *World) areaEdictsRecurse(nodeIdx int32, mins, maxs Vec3, out []int, count *int, areaType AreaType) {
	node := &w.nodes[nodeIdx]

	list := &node.solid
	if areaType == AreaTriggers {
		list = &node.trigger
	}

	for e := list.Front(); e != nil; e = e.Next() {
		entnum := e.Value.(int)
		l := &w.links[entnum]
		if l.Solid == SolidNot {
			continue
		}
		if l.AbsMin[0] > maxs[0] || l.AbsMin[1] > maxs[1] || l.AbsMin[2] > maxs[2] ||
			l.AbsMax[0] < mins[0] || l.AbsMax[1] < mins[1] || l.AbsMax[2] < mins[2] {
			continue
		}
		if *count == len(out) {
			log.Printf("world: AreaEdicts: maxcount %d reached", len(out))
			return
		}
		out[*count] = entnum
		*count++
	}

	if node.axis == -1 {
		return
	}

	if maxs[node.axis] > node.dist {
		w.areaEdictsRecurse(node.children[0], mins, maxs, out, count, areaType)
	}
	if mins[node.axis] < node.dist {
		w.areaEdictsRecurse(node.children[1], mins, maxs, out, count, areaType)
	}
}
