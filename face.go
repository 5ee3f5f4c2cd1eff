package kelp

import "sync"

// Face is per-connected-participant state: a dense id, the participant's
// declared role, its outbound primitives sink, and the id/interest
// mappings the routing tables consult on every declaration and every
// forwarding decision. Mutable fields are guarded by mu, acquired after
// the owning Tables' lock per the tables -> face -> resource node order.
type Face struct {
	ID         uint64
	WhatAmI    WhatAmI
	Primitives Primitives

	mu            sync.Mutex
	nextLocalID   uint64
	localMappings map[uint64]*Resource // local rid -> resource this broker assigned
	remoteMappings map[uint64]*Resource // remote rid -> resource the face declared
	subs          []*Resource
	qabl          []*Resource
}

func newFace(id uint64, whatami WhatAmI, prims Primitives) *Face {
	return &Face{
		ID:             id,
		WhatAmI:        whatami,
		Primitives:     prims,
		localMappings:  make(map[uint64]*Resource),
		remoteMappings: make(map[uint64]*Resource),
	}
}

// newLocalID returns the next free locally-assigned rid for this face,
// monotonically increasing and unique within it.
func (f *Face) newLocalID() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextLocalID++
	return f.nextLocalID
}

func (f *Face) localRid(rid uint64) (*Resource, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.localMappings[rid]
	return r, ok
}

func (f *Face) remoteRid(rid uint64) (*Resource, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.remoteMappings[rid]
	return r, ok
}

func (f *Face) setLocalRid(rid uint64, r *Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localMappings[rid] = r
}

func (f *Face) setRemoteRid(rid uint64, r *Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteMappings[rid] = r
}

func (f *Face) dropRemoteRid(rid uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.remoteMappings, rid)
}

func (f *Face) addSub(r *Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, r)
}

func (f *Face) removeSub(r *Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = removeResource(f.subs, r)
}

func (f *Face) addQabl(r *Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qabl = append(f.qabl, r)
}

func (f *Face) removeQabl(r *Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qabl = removeResource(f.qabl, r)
}

func removeResource(list []*Resource, r *Resource) []*Resource {
	for i, e := range list {
		if e == r {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// teardown walks every resource this face ever touched, drops its stake
// in each, and cleans the ones that no longer have a reason to exist.
// Tables callers still need to remove f from the face registry and any
// pending query state; teardown only handles the resource side.
func (f *Face) teardown() {
	f.mu.Lock()
	locals := make([]*Resource, 0, len(f.localMappings))
	for _, r := range f.localMappings {
		locals = append(locals, r)
	}
	remotes := make([]*Resource, 0, len(f.remoteMappings))
	for _, r := range f.remoteMappings {
		remotes = append(remotes, r)
	}
	subs := f.subs
	qabl := f.qabl
	f.localMappings = make(map[uint64]*Resource)
	f.remoteMappings = make(map[uint64]*Resource)
	f.subs = nil
	f.qabl = nil
	f.mu.Unlock()

	touched := make(map[*Resource]struct{})
	for _, r := range locals {
		if c, ok := r.contexts[f.ID]; ok {
			c.LocalRid = nil
		}
		touched[r] = struct{}{}
	}
	for _, r := range remotes {
		if c, ok := r.contexts[f.ID]; ok {
			c.RemoteRid = nil
		}
		touched[r] = struct{}{}
	}
	for _, r := range subs {
		if c, ok := r.contexts[f.ID]; ok {
			c.Subs = nil
		}
		touched[r] = struct{}{}
	}
	for _, r := range qabl {
		if c, ok := r.contexts[f.ID]; ok {
			c.Qabl = false
		}
		touched[r] = struct{}{}
	}
	for r := range touched {
		r.dropContextIfEmpty(f.ID)
		for _, m := range r.matches {
			m.route = buildRoute(m)
		}
		r.route = buildRoute(r)
		clean(r)
	}
}
