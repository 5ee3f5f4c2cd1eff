package kelp

import (
	"iter"
	"maps"
	"slices"
	"strings"
)

// Context is the per-face state attached to a Resource node. A node is
// kept alive (see clean) iff at least one face's Context is non-empty, or
// it has live children.
type Context struct {
	Face      *Face
	LocalRid  *uint64
	RemoteRid *uint64
	Subs      *SubInfo

	// Qabl and QablKind together stand in for the spec's single boolean
	// "is the face a queryable for this resource": query routing also
	// needs to know which kind (storage vs eval) to target, so the kind
	// rides alongside the flag rather than replacing it.
	Qabl     bool
	QablKind ReplySource
}

func (c *Context) empty() bool {
	return c.LocalRid == nil && c.RemoteRid == nil && c.Subs == nil && !c.Qabl
}

// routeEntry is one cached forwarding target: publish the owning
// Resource's data to Face, addressed with Key.
type routeEntry struct {
	Face *Face
	Key  ResKey
}

// Resource is a node of the shared hierarchical-key trie. suffix is this
// node's own chunk segment beneath parent, including its leading `/`; the
// root has suffix "" and a nil parent.
type Resource struct {
	suffix   string
	parent   *Resource
	children map[string]*Resource
	contexts map[uint64]*Context

	// matches holds every other live resource whose full name intersects
	// this one's, in first-added order (buildRoute's tie-break relies on
	// that order). matchSet mirrors it for O(1) membership tests.
	matches  []*Resource
	matchSet map[*Resource]struct{}

	route map[uint64]routeEntry
}

// newRoot allocates the table's root resource, the empty-suffix node
// every other resource descends from.
func newRoot() *Resource {
	return newNode(nil, "")
}

func newNode(parent *Resource, suffix string) *Resource {
	return &Resource{
		suffix:   suffix,
		parent:   parent,
		children: make(map[string]*Resource),
		contexts: make(map[uint64]*Context),
		matchSet: make(map[*Resource]struct{}),
	}
}

func (r *Resource) isRoot() bool { return r.parent == nil }

// fullName concatenates suffixes from the root down to r.
func (r *Resource) fullName() string {
	if r.isRoot() {
		return ""
	}
	var segs []string
	for n := r; !n.isRoot(); n = n.parent {
		segs = append(segs, n.suffix)
	}
	slices.Reverse(segs)
	return strings.Join(segs, "")
}

// context returns (creating if necessary) r's per-face Context.
func (r *Resource) context(f *Face) *Context {
	c, ok := r.contexts[f.ID]
	if !ok {
		c = &Context{Face: f}
		r.contexts[f.ID] = c
	}
	return c
}

// dropContextIfEmpty removes a face's Context from r once it carries no
// state, so clean's liveness check only has to look at map length.
func (r *Resource) dropContextIfEmpty(faceID uint64) {
	if c, ok := r.contexts[faceID]; ok && c.empty() {
		delete(r.contexts, faceID)
	}
}

func (r *Resource) addMatch(m *Resource) {
	if _, ok := r.matchSet[m]; ok {
		return
	}
	r.matchSet[m] = struct{}{}
	r.matches = append(r.matches, m)
}

func (r *Resource) removeMatch(m *Resource) {
	if _, ok := r.matchSet[m]; !ok {
		return
	}
	delete(r.matchSet, m)
	idx := slices.Index(r.matches, m)
	r.matches = slices.Delete(r.matches, idx, idx+1)
}

// Children iterates r's direct children, keyed by their suffix.
func (r *Resource) Children() iter.Seq2[string, *Resource] {
	return maps.All(r.children)
}

// Matches iterates every other live resource whose name currently
// intersects r's.
func (r *Resource) Matches() iter.Seq[*Resource] {
	return slices.Values(r.matches)
}

// makeResource walks/creates nodes matching each chunk of suffix under
// prefix, returning the terminal node. prefix must be non-nil (the root,
// at minimum).
func makeResource(prefix *Resource, suffix string) *Resource {
	node := prefix
	for suffix != "" {
		chunk, rest := nextChunk(suffix)
		child, ok := node.children[chunk]
		if !ok {
			child = newNode(node, chunk)
			node.children[chunk] = child
		}
		node = child
		suffix = rest
	}
	return node
}

// getResource is the non-creating counterpart of makeResource.
func getResource(prefix *Resource, suffix string) *Resource {
	node := prefix
	for suffix != "" {
		chunk, rest := nextChunk(suffix)
		child, ok := node.children[chunk]
		if !ok {
			return nil
		}
		node = child
		suffix = rest
	}
	return node
}

// clean prunes node and its ancestors while they carry no contexts, no
// children, and are not the root. It walks parents iteratively, so it
// always terminates within the height of the tree.
func clean(node *Resource) {
	for node != nil && !node.isRoot() {
		if len(node.contexts) != 0 || len(node.children) != 0 {
			return
		}
		parent := node.parent
		delete(parent.children, node.suffix)
		for _, m := range slices.Clone(node.matches) {
			m.removeMatch(node)
			node.removeMatch(m)
		}
		node = parent
	}
}

// getMatchesFrom returns every live resource in the subtree rooted at
// root whose full name (relative to root) intersects pattern. It mirrors
// intersectChunks but walks trie structure instead of a second string,
// branching the same way on `**` appearing in either the pattern or a
// trie edge.
func getMatchesFrom(pattern string, root *Resource) []*Resource {
	seen := make(map[*Resource]struct{})
	var order []*Resource
	add := func(r *Resource) {
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			order = append(order, r)
		}
	}

	var walk func(pat string, node *Resource)
	walk = func(pat string, node *Resource) {
		p := pat
		if p == "/" {
			p = ""
		}
		if p == "" {
			add(node)
			if dw, ok := node.children["/**"]; ok {
				walk("", dw)
			}
			return
		}

		aChunk, aRest := nextChunk(p)
		if aChunk == "/**" {
			walk(aRest, node)
			for _, child := range node.children {
				walk(pat, child)
			}
			return
		}

		if dw, ok := node.children["/**"]; ok {
			// The `**` edge absorbs zero or more leading chunks of pat.
			for rest := pat; ; {
				walk(rest, dw)
				if rest == "" || rest == "/" {
					break
				}
				_, rest = nextChunk(rest)
			}
		}
		for suffix, child := range node.children {
			if suffix == "/**" {
				continue
			}
			if chunkIntersect(aChunk, suffix) {
				walk(aRest, child)
			}
		}
	}
	walk(pattern, root)
	return order
}

// nonwildPrefix returns the deepest ancestor of r whose path from the
// root contains no wildcard chunk, plus the wildcard-bearing suffix still
// remaining below it. A nil prefix means even that deepest ancestor is
// the root, so there is nothing worth advertising an id for; callers
// should fall back to sending r's plain full name.
func nonwildPrefix(r *Resource) (prefix *Resource, suffix string) {
	var chain []*Resource
	for n := r; n != nil; n = n.parent {
		chain = append(chain, n)
	}
	slices.Reverse(chain) // chain[0] is root, chain[len-1] is r

	last := 0
	for i := 1; i < len(chain); i++ {
		if strings.ContainsRune(chain[i].suffix, '*') {
			break
		}
		last = i
	}

	var tail strings.Builder
	for _, n := range chain[last+1:] {
		tail.WriteString(n.suffix)
	}
	if last == 0 {
		return nil, tail.String()
	}
	return chain[last], tail.String()
}

// getBestKey produces the most compact ResKey describing node as seen by
// faceID: the longest ancestor (including node itself) for which that
// face already has a remote or local rid, paired with the residual
// suffix down to node, or node's plain full name if no ancestor has one.
func getBestKey(node *Resource, faceID uint64) ResKey {
	residual := ""
	for n := node; ; {
		if ctx, ok := n.contexts[faceID]; ok {
			if ctx.RemoteRid != nil {
				return ResKey{ID: *ctx.RemoteRid, Suffix: residual}
			}
			if ctx.LocalRid != nil {
				return ResKey{ID: *ctx.LocalRid, Suffix: residual}
			}
		}
		if n.parent == nil {
			break
		}
		residual = n.suffix + residual
		n = n.parent
	}
	return ResKey{Suffix: node.fullName()}
}

// buildRoute recomputes node's cached DATA forwarding map from its own
// subscribers plus its current match set. A name always intersects
// itself, so node's own contexts are consulted first even though
// node.matches (by construction, see linkMatches) never contains node.
// Peer-to-peer suppression is applied by the caller at forwarding time
// (it depends on the publishing face, which this cache is agnostic to),
// not baked in here.
func buildRoute(node *Resource) map[uint64]routeEntry {
	route := make(map[uint64]routeEntry)
	add := func(owner *Resource) {
		for faceID, ctx := range owner.contexts {
			if ctx.Subs == nil {
				continue
			}
			if _, ok := route[faceID]; ok {
				continue // first source in iteration order wins
			}
			route[faceID] = routeEntry{Face: ctx.Face, Key: getBestKey(node, faceID)}
		}
	}
	add(node)
	for _, m := range node.matches {
		add(m)
	}
	return route
}
