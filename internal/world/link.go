package world

// UnlinkEdict removes entnum from whatever area-tree node it currently
// occupies. Safe to call on an already-unlinked entity. Mirrors
// PF_UnlinkEdict.
func (w *World) UnlinkEdict(entnum int) {
	l := &w.links[entnum]
	if l.elem != nil {
		l.curList.Remove(l.elem)
		l.elem = nil
		l.curList = nil
	}
	l.linked = false
	l.node = -1
}

// LinkEdict computes entnum's absolute bounding box, area/cluster
// membership, and area-tree placement, mirroring PF_LinkEdict +
// SV_LinkEdict. origin/mins/maxs/angles are the entity's current
// placement; oldOrigin only matters for the SOLID_NOT+beam case, where
// the box must bound both the current and previous position. World does
// not own entity_state or link-count bookkeeping — that stays with the
// caller (the game/entity layer), since this package is only the spatial
// index.
func (w *World) LinkEdict(entnum int, solid SolidType, origin, mins, maxs, angles, oldOrigin Vec3, beam bool) {
	w.UnlinkEdict(entnum)

	l := &w.links[entnum]
	l.Solid = solid

	switch {
	case solid == SolidBSP && angles != (Vec3{}):
		max := float32(0)
		for i := 0; i < 3; i++ {
			if v := absf(mins[i]); v > max {
				max = v
			}
			if v := absf(maxs[i]); v > max {
				max = v
			}
		}
		for i := 0; i < 3; i++ {
			l.AbsMin[i] = origin[i] - max
			l.AbsMax[i] = origin[i] + max
		}
	case solid == SolidNot && beam:
		l.AbsMin = clampMin(origin, oldOrigin)
		l.AbsMax = clampMax(origin, oldOrigin)
	default:
		l.AbsMin = Vec3{origin[0] + mins[0], origin[1] + mins[1], origin[2] + mins[2]}
		l.AbsMax = Vec3{origin[0] + maxs[0], origin[1] + maxs[1], origin[2] + maxs[2]}
	}

	// movement is clipped an epsilon away from an actual edge (spec §4.7),
	// so boxes that don't quite touch must still be checked
	for i := 0; i < 3; i++ {
		l.AbsMin[i] -= 1
		l.AbsMax[i] += 1
	}

	l.AreaNum, l.AreaNum2 = 0, 0
	l.NumClusters = 0
	l.Headnode = 0

	if w.model != nil {
		clusters, area, headnode, truncated := w.model.BoxLeafs(l.AbsMin, l.AbsMax)
		if area != 0 {
			l.AreaNum = area
		}
		if truncated {
			l.NumClusters = -1
			l.Headnode = headnode
		} else {
			l.NumClusters = 0
			for _, c := range clusters {
				if c == -1 {
					continue
				}
				if containsInt(l.Clusters[:l.NumClusters], c) {
					continue
				}
				if l.NumClusters == MaxEntClusters {
					l.NumClusters = -1
					l.Headnode = headnode
					break
				}
				l.Clusters[l.NumClusters] = c
				l.NumClusters++
			}
		}
	}

	l.linked = true

	if solid == SolidNot {
		return
	}

	nodeIdx := int32(0)
	for {
		node := &w.nodes[nodeIdx]
		if node.axis == -1 {
			break
		}
		if l.AbsMin[node.axis] > node.dist {
			nodeIdx = node.children[0]
		} else if l.AbsMax[node.axis] < node.dist {
			nodeIdx = node.children[1]
		} else {
			break
		}
	}

	node := &w.nodes[nodeIdx]
	l.node = nodeIdx
	if solid == SolidTrigger {
		l.curList = &node.trigger
	} else {
		l.curList = &node.solid
	}
	l.elem = l.curList.PushBack(entnum)
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clampMin(a, b Vec3) Vec3 {
	var r Vec3
	for i := range r {
		if a[i] < b[i] {
			r[i] = a[i]
		} else {
			r[i] = b[i]
		}
	}
	return r
}

func clampMax(a, b Vec3) Vec3 {
	var r Vec3
	for i := range r {
		if a[i] > b[i] {
			r[i] = a[i]
		} else {
			r[i] = b[i]
		}
	}
	return r
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
