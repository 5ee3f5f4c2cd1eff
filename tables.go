package kelp

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/kelp-mesh/kelp/target"
)

// Tables is the routing plane: the shared resource trie, the face
// registry, and the query correlation state that ties a reply stream
// back to its originating query. The table lock guards structural
// changes and face-registry membership; per-face mutable state is
// guarded independently by each Face (see face.go), acquired after this
// lock per the tables -> face -> resource node order.
type Tables struct {
	mu         sync.RWMutex
	root       *Resource
	faces      map[uint64]*Face
	nextFaceID uint64

	queryMu    sync.Mutex
	nextQID    uint64
	pending    map[pendingKey]*pendingQuery
	logger     *slog.Logger
}

type pendingKey struct {
	face uint64
	qid  uint64
}

// pendingQuery is shared by every outstanding leg of one query: each leg
// (one replier face) is registered under its own pendingKey, and all of
// them point back at the same pendingQuery so the last leg to finish can
// tell the origin the whole query is done.
type pendingQuery struct {
	origin    *Face
	originQID uint64
	mu        sync.Mutex
	remaining int
}

// Option configures a Tables at construction time.
type Option func(*Tables)

// WithLogger overrides the default logger, slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tables) { t.logger = l }
}

// NewTables constructs an empty routing table with just a root resource.
func NewTables(opts ...Option) *Tables {
	t := &Tables{
		root:    newRoot(),
		faces:   make(map[uint64]*Face),
		pending: make(map[pendingKey]*pendingQuery),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DeclareSession registers a new face and catches it up on every
// currently-live subscription and queryable declaration from other
// faces, exactly as if it had just observed them.
func (t *Tables) DeclareSession(whatami WhatAmI, prims Primitives) *Face {
	t.mu.Lock()
	t.nextFaceID++
	f := newFace(t.nextFaceID, whatami, prims)
	t.faces[f.ID] = f

	type catchup struct {
		key ResKey
		sub *SubInfo
		qk  ReplySource
	}
	var subs, stores, evals []catchup
	for _, other := range t.faces {
		if other == f {
			continue
		}
		for _, r := range other.subs {
			if c, ok := r.contexts[other.ID]; ok && c.Subs != nil {
				subs = append(subs, catchup{key: ResKey{Suffix: r.fullName()}, sub: c.Subs})
			}
		}
		for _, r := range other.qabl {
			if c, ok := r.contexts[other.ID]; ok && c.Qabl {
				if c.QablKind == ReplySourceEval {
					evals = append(evals, catchup{key: ResKey{Suffix: r.fullName()}})
				} else {
					stores = append(stores, catchup{key: ResKey{Suffix: r.fullName()}})
				}
			}
		}
	}
	t.mu.Unlock()

	for _, c := range subs {
		f.Primitives.Subscriber(c.key, *c.sub)
	}
	for _, c := range stores {
		f.Primitives.Storage(c.key)
	}
	for _, c := range evals {
		f.Primitives.Eval(c.key)
	}
	return f
}

// resolvePrefix turns (faceID-relative prefixRid, suffix) into the
// concrete starting resource a declaration is relative to. prefixRid==0
// means the root.
func (t *Tables) resolvePrefix(f *Face, prefixRid uint64) (*Resource, error) {
	if prefixRid == 0 {
		return t.root, nil
	}
	r, ok := f.remoteRid(prefixRid)
	if !ok {
		return nil, &UnknownRidError{FaceID: f.ID, Rid: prefixRid}
	}
	return r, nil
}

// DeclareResource binds rid to the resource named prefix+suffix on f's
// behalf. Redeclaring the same rid with an unchanged name is a no-op;
// redeclaring it with a different name is a protocol error.
func (t *Tables) DeclareResource(f *Face, rid uint64, prefixRid uint64, suffix string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix, err := t.resolvePrefix(f, prefixRid)
	if err != nil {
		return err
	}
	node := makeResource(prefix, suffix)

	if existing, ok := f.remoteRid(rid); ok {
		if existing == node {
			return nil
		}
		return &DuplicateRidError{FaceID: f.ID, Rid: rid, Want: existing.fullName(), Got: node.fullName()}
	}

	ctx := node.context(f)
	rv := rid
	ctx.RemoteRid = &rv
	f.setRemoteRid(rid, node)

	t.linkMatches(node)
	return nil
}

// linkMatches recomputes node's match set against the whole trie and
// rebuilds the route cache of node and every resource it now matches or
// no longer matches.
func (t *Tables) linkMatches(node *Resource) {
	name := node.fullName()
	fresh := getMatchesFrom(name, t.root)
	freshSet := make(map[*Resource]struct{}, len(fresh))
	for _, m := range fresh {
		freshSet[m] = struct{}{}
	}
	// getMatchesFrom always includes node itself (empty residual pattern
	// case); matches should not contain node.
	delete(freshSet, node)

	for _, m := range slices.Clone(node.matches) {
		if _, still := freshSet[m]; !still {
			node.removeMatch(m)
			m.removeMatch(node)
			m.route = buildRoute(m)
		}
	}
	for m := range freshSet {
		if !slices.Contains(node.matches, m) {
			node.addMatch(m)
			m.addMatch(node)
			m.route = buildRoute(m)
		}
	}
	node.route = buildRoute(node)
}

// UndeclareResource drops f's binding for rid and prunes the resource if
// nothing else keeps it alive.
func (t *Tables) UndeclareResource(f *Face, rid uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	node, ok := f.remoteRid(rid)
	if !ok {
		return &UnknownRidError{FaceID: f.ID, Rid: rid}
	}
	f.dropRemoteRid(rid)
	if c, ok := node.contexts[f.ID]; ok {
		c.RemoteRid = nil
	}
	node.dropContextIfEmpty(f.ID)
	clean(node)
	return nil
}

// DeclareSubscription records f's interest in prefix+suffix and
// propagates it to every other face that should learn about it, per the
// peer-to-peer suppression rule: two Peer faces never relay through this
// broker.
func (t *Tables) DeclareSubscription(f *Face, prefixRid uint64, suffix string, sub SubInfo) error {
	t.mu.Lock()

	prefix, err := t.resolvePrefix(f, prefixRid)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	node := makeResource(prefix, suffix)
	ctx := node.context(f)
	ctx.Subs = &sub
	f.addSub(node)
	t.linkMatches(node)

	targets := t.subscriptionTargets(f, node, sub)
	t.mu.Unlock()

	for _, call := range targets {
		call()
	}
	return nil
}

// subscriptionTargets computes, under the table lock, the outbound calls
// needed to advertise node's subscription to every other eligible face,
// then returns them as thunks so the caller can invoke them after
// releasing the lock.
func (t *Tables) subscriptionTargets(f *Face, node *Resource, sub SubInfo) []func() {
	name := node.fullName()
	np, ws := nonwildPrefix(node)

	var calls []func()
	for _, other := range t.faces {
		if other == f {
			continue
		}
		if f.WhatAmI == WhatAmIPeer && other.WhatAmI == WhatAmIPeer {
			continue
		}
		other := other
		if np == nil {
			calls = append(calls, func() { other.Primitives.Subscriber(ResKey{Suffix: name}, sub) })
			continue
		}
		if lid, ok := npLocalRid(np, other); ok {
			calls = append(calls, func() { other.Primitives.Subscriber(ResKey{ID: lid, Suffix: ws}, sub) })
			continue
		}
		if rid, ok := npRemoteRid(np, other); ok {
			calls = append(calls, func() { other.Primitives.Subscriber(ResKey{ID: rid, Suffix: ws}, sub) })
			continue
		}
		newID := other.newLocalID()
		other.setLocalRid(newID, np)
		npName := np.fullName()
		ctx := np.context(other)
		ctx.LocalRid = &newID
		calls = append(calls, func() {
			other.Primitives.Resource(newID, ResKey{Suffix: npName})
			other.Primitives.Subscriber(ResKey{ID: newID, Suffix: ws}, sub)
		})
	}
	return calls
}

func npLocalRid(np *Resource, f *Face) (uint64, bool) {
	if c, ok := np.contexts[f.ID]; ok && c.LocalRid != nil {
		return *c.LocalRid, true
	}
	return 0, false
}

func npRemoteRid(np *Resource, f *Face) (uint64, bool) {
	if c, ok := np.contexts[f.ID]; ok && c.RemoteRid != nil {
		return *c.RemoteRid, true
	}
	return 0, false
}

// UndeclareSubscription clears f's subscription on prefix+suffix and
// propagates FORGET_SUBSCRIBER the same way DeclareSubscription
// propagated the original declaration.
func (t *Tables) UndeclareSubscription(f *Face, prefixRid uint64, suffix string) error {
	t.mu.Lock()

	prefix, err := t.resolvePrefix(f, prefixRid)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	node := getResource(prefix, suffix)
	if node == nil {
		t.mu.Unlock()
		return nil
	}
	if c, ok := node.contexts[f.ID]; ok {
		c.Subs = nil
	}
	f.removeSub(node)
	node.dropContextIfEmpty(f.ID)
	for _, m := range node.matches {
		m.route = buildRoute(m)
	}
	node.route = buildRoute(node)
	name := node.fullName()
	clean(node)

	var targets []*Face
	for _, other := range t.faces {
		if other == f {
			continue
		}
		if f.WhatAmI == WhatAmIPeer && other.WhatAmI == WhatAmIPeer {
			continue
		}
		targets = append(targets, other)
	}
	t.mu.Unlock()

	for _, other := range targets {
		other.Primitives.ForgetSubscriber(ResKey{Suffix: name})
	}
	return nil
}

// DeclareQueryable records f as a storage or eval source for
// prefix+suffix.
func (t *Tables) DeclareQueryable(f *Face, prefixRid uint64, suffix string, kind ReplySource) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix, err := t.resolvePrefix(f, prefixRid)
	if err != nil {
		return err
	}
	node := makeResource(prefix, suffix)
	ctx := node.context(f)
	ctx.Qabl = true
	ctx.QablKind = kind
	f.addQabl(node)
	t.linkMatches(node)
	return nil
}

// UndeclareQueryable clears f's queryable flag on prefix+suffix.
func (t *Tables) UndeclareQueryable(f *Face, prefixRid uint64, suffix string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix, err := t.resolvePrefix(f, prefixRid)
	if err != nil {
		return err
	}
	node := getResource(prefix, suffix)
	if node == nil {
		return nil
	}
	if c, ok := node.contexts[f.ID]; ok {
		c.Qabl = false
	}
	f.removeQabl(node)
	node.dropContextIfEmpty(f.ID)
	clean(node)
	return nil
}

// RouteData forwards a DATA message from faceIn to every other face with
// an intersecting subscription, skipping peer-to-peer pairs (those talk
// directly, not through this broker).
func (t *Tables) RouteData(faceIn *Face, rid uint64, suffix string, reliable bool, info, payload []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	prefix, err := t.resolvePrefix(faceIn, rid)
	if err != nil {
		return err
	}

	var entries []routeEntry
	if suffix == "" && prefix != t.root {
		for _, e := range prefix.route {
			entries = append(entries, e)
		}
	} else {
		node := getResource(prefix, suffix)
		name := prefix.fullName() + suffix
		if node != nil {
			for _, e := range node.route {
				entries = append(entries, e)
			}
		} else {
			seen := make(map[uint64]struct{})
			for _, m := range getMatchesFrom(name, t.root) {
				for faceID, ctx := range m.contexts {
					if ctx.Subs == nil {
						continue
					}
					if _, dup := seen[faceID]; dup {
						continue
					}
					seen[faceID] = struct{}{}
					key := getBestKey(prefix, faceID)
					key.Suffix += suffix
					entries = append(entries, routeEntry{Face: ctx.Face, Key: key})
				}
			}
		}
	}

	for _, e := range entries {
		if e.Face == faceIn {
			continue
		}
		if faceIn.WhatAmI == WhatAmIPeer && e.Face.WhatAmI == WhatAmIPeer {
			continue
		}
		e.Face.Primitives.Data(e.Key, reliable, info, payload)
	}
	return nil
}

// RouteQuery resolves the target queryable faces for a query, forwards
// one copy to each (each under a fresh broker-assigned qid), and
// registers correlation state so RouteReply can find its way back.
func (t *Tables) RouteQuery(faceIn *Face, rid uint64, suffix string, predicate string, qid uint64, target *QueryTarget, consolidation Consolidation) error {
	t.mu.RLock()
	prefix, err := t.resolvePrefix(faceIn, rid)
	if err != nil {
		t.mu.RUnlock()
		return err
	}
	name := prefix.fullName() + suffix

	qt := DefaultQueryTarget()
	if target != nil {
		qt = *target
	}

	storageTargets, evalTargets := t.selectQueryables(name, qt)
	t.mu.RUnlock()

	total := len(storageTargets) + len(evalTargets)
	if total == 0 {
		faceIn.Primitives.Reply(qid, ReplyFinal{})
		return nil
	}

	qo := &pendingQuery{origin: faceIn, originQID: qid, remaining: total}
	send := func(f *Face, key ResKey) {
		t.queryMu.Lock()
		t.nextQID++
		outQID := t.nextQID
		t.pending[pendingKey{face: f.ID, qid: outQID}] = qo
		t.queryMu.Unlock()
		f.Primitives.Query(key, predicate, outQID, nil, consolidation)
	}
	for _, e := range storageTargets {
		send(e.Face, e.Key)
	}
	for _, e := range evalTargets {
		send(e.Face, e.Key)
	}
	return nil
}

// selectQueryables gathers every live resource matching name, splits its
// queryable contexts by kind, ranks each kind's candidates by
// specificity (longest matched name first), and hands them to the
// target package to apply the query's per-kind SourceTarget.
func (t *Tables) selectQueryables(name string, qt QueryTarget) (storages, evals []routeEntry) {
	var storageSrc, evalSrc []target.Source[routeEntry]
	for _, m := range getMatchesFrom(name, t.root) {
		matchName := m.fullName()
		for faceID, ctx := range m.contexts {
			if !ctx.Qabl {
				continue
			}
			src := target.Source[routeEntry]{
				Name:  matchName,
				Value: routeEntry{Face: ctx.Face, Key: getBestKey(m, faceID)},
			}
			if ctx.QablKind == ReplySourceEval {
				evalSrc = append(evalSrc, src)
			} else {
				storageSrc = append(storageSrc, src)
			}
		}
	}
	bySpecificity := func(a, b target.Source[routeEntry]) int { return len(b.Name) - len(a.Name) }
	slices.SortFunc(storageSrc, bySpecificity)
	slices.SortFunc(evalSrc, bySpecificity)

	storages = target.Select(storageSrc, target.Kind(qt.Storage.Kind), qt.Storage.N)
	evals = target.Select(evalSrc, target.Kind(qt.Eval.Kind), qt.Eval.N)
	return storages, evals
}

// RouteReply correlates an inbound reply with its originating query and
// forwards it. SourceFinal and ReplyFinal from a replier both close out
// that replier's leg; once every leg of a query has closed, the origin
// receives a single ReplyFinal closing the whole query.
func (t *Tables) RouteReply(faceIn *Face, qid uint64, reply Reply) {
	t.queryMu.Lock()
	key := pendingKey{face: faceIn.ID, qid: qid}
	qo, ok := t.pending[key]
	if ok {
		if _, terminal := reply.(ReplyData); !terminal {
			delete(t.pending, key)
		}
	}
	t.queryMu.Unlock()
	if !ok {
		t.logger.Log(context.Background(), slog.LevelDebug, "reply for unknown query", "face", faceIn.ID, "qid", qid)
		return
	}

	switch reply.(type) {
	case ReplyData:
		qo.origin.Primitives.Reply(qo.originQID, reply)
	default:
		qo.mu.Lock()
		qo.remaining--
		done := qo.remaining <= 0
		qo.mu.Unlock()
		if done {
			qo.origin.Primitives.Reply(qo.originQID, ReplyFinal{})
		}
	}
}

// RoutePull forwards a PULL to every face holding a SubModePull
// subscription on the resource named by rid+suffix, addressed with that
// face's best key for it. A pull for a resource that is not in the trie,
// or that has no pull-mode subscriber, is dropped without error.
func (t *Tables) RoutePull(faceIn *Face, final bool, rid uint64, suffix string, pullID uint64, maxSamples *uint64) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	prefix, err := t.resolvePrefix(faceIn, rid)
	if err != nil {
		return err
	}
	node := getResource(prefix, suffix)
	if node == nil {
		return nil
	}
	for faceID, ctx := range node.contexts {
		if ctx.Subs == nil || ctx.Subs.Mode != SubModePull {
			continue
		}
		ctx.Face.Primitives.Pull(final, getBestKey(node, faceID), pullID, maxSamples)
	}
	return nil
}

// CloseFace tears down f: its resource stakes are released, every
// pending query it originated or was asked to answer is resolved, and it
// is removed from the face registry.
func (t *Tables) CloseFace(f *Face) {
	t.mu.Lock()
	f.teardown()
	delete(t.faces, f.ID)
	t.mu.Unlock()

	t.queryMu.Lock()
	for key, qo := range t.pending {
		switch {
		case key.face == f.ID:
			delete(t.pending, key)
			qo.mu.Lock()
			qo.remaining--
			done := qo.remaining <= 0
			qo.mu.Unlock()
			if done && qo.origin != f {
				qo.origin.Primitives.Reply(qo.originQID, ReplyFinal{})
			}
		case qo.origin == f:
			delete(t.pending, key)
		}
	}
	t.queryMu.Unlock()
}
