package kelp

// FaceSnapshot is a read-only view of one registered face, for
// introspection tooling (see package debughttp).
type FaceSnapshot struct {
	ID         uint64
	WhatAmI    WhatAmI
	Subs       []string
	Queryables []string
}

// ResourceSnapshot is a read-only view of one live trie node.
type ResourceSnapshot struct {
	Name        string
	MatchCount  int
	RouteCount  int
	ContextFace []uint64
}

// Snapshot is a consistent, point-in-time dump of the whole routing
// plane, taken under the table's read lock.
type Snapshot struct {
	Faces     []FaceSnapshot
	Resources []ResourceSnapshot
}

// Debug returns a Snapshot of the current routing state. It is the only
// sanctioned way for code outside this package to look inside Tables;
// everything it touches is copied, so the caller can hold onto the
// result indefinitely without pinning trie nodes alive.
func (t *Tables) Debug() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{}
	for _, f := range t.faces {
		fs := FaceSnapshot{ID: f.ID, WhatAmI: f.WhatAmI}
		for _, r := range f.subs {
			fs.Subs = append(fs.Subs, r.fullName())
		}
		for _, r := range f.qabl {
			fs.Queryables = append(fs.Queryables, r.fullName())
		}
		snap.Faces = append(snap.Faces, fs)
	}

	var walk func(r *Resource)
	walk = func(r *Resource) {
		if !r.isRoot() {
			rs := ResourceSnapshot{
				Name:       r.fullName(),
				MatchCount: len(r.matches),
				RouteCount: len(r.route),
			}
			for faceID := range r.contexts {
				rs.ContextFace = append(rs.ContextFace, faceID)
			}
			snap.Resources = append(snap.Resources, rs)
		}
		for _, child := range r.children {
			walk(child)
		}
	}
	walk(t.root)

	return snap
}
