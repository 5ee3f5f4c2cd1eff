// Copyright 2022 Sylvain Müller. All rights reserved.
// Mount of this source code is governed by a Apache-2.0 license that can be found
// at https://github.com/fox-toolkit/fox/blob/master/LICENSE.txt.

package kelp

import "strings"

// Intersect reports whether two hierarchical glob keys, expressed using the
// `/`-delimited chunk grammar described by the package doc, share at least
// one concrete key. A chunk may contain `*`, matching any substring within
// that single chunk, or be the literal chunk `**`, matching any (possibly
// empty) sequence of whole chunks. A trailing `/` is semantically
// irrelevant on either side.
//
// Intersect is symmetric (Intersect(a, b) == Intersect(b, a)) and reflexive
// (Intersect(a, a) is always true). It does not allocate on the common
// no-wildcard case.
func Intersect(a, b string) bool {
	a = trimTrailingSlash(a)
	b = trimTrailingSlash(b)
	return intersectChunks(a, b)
}

func trimTrailingSlash(s string) string {
	if len(s) > 1 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}

// intersectChunks walks a and b one chunk at a time, recursing on `**`.
//
// The bare string "/" is a sentinel for "no further chunk" (the root key),
// distinct from a chunk whose content happens to be empty: intersect("/*", "/")
// is false because "/*" demands an occupied chunk that "/" does not provide,
// while intersect("/ab*", "/ab") is true because the "*" there only needs to
// match zero *extra* characters after the literal prefix "ab" has already
// matched. Normalizing "/" to "" here lets onlyDoubleWild (rather than a
// generic wildcard match) decide whether the exhausted side is still
// satisfiable.
func intersectChunks(a, b string) bool {
	if a == "/" {
		a = ""
	}
	if b == "/" {
		b = ""
	}
	if a == "" && b == "" {
		return true
	}
	if a == "" {
		return onlyDoubleWild(b)
	}
	if b == "" {
		return onlyDoubleWild(a)
	}

	aChunk, aRest := nextChunk(a)
	bChunk, bRest := nextChunk(b)

	if aChunk == "/**" {
		// Either consume the ** (try matching the rest of a against all of b),
		// or keep it and consume one chunk of b.
		if intersectChunks(aRest, b) {
			return true
		}
		return intersectChunks(a, bRest)
	}
	if bChunk == "/**" {
		if intersectChunks(a, bRest) {
			return true
		}
		return intersectChunks(aRest, b)
	}

	if !chunkIntersect(aChunk, bChunk) {
		return false
	}
	return intersectChunks(aRest, bRest)
}

// onlyDoubleWild reports whether the remaining key is nothing but a sequence
// of `/**` chunks (possibly followed by a bare trailing `/`), which is what
// an exhausted counterpart key must match against to still intersect.
func onlyDoubleWild(s string) bool {
	for s != "" {
		if s == "/" {
			return true
		}
		chunk, rest := nextChunk(s)
		if chunk != "/**" {
			return false
		}
		s = rest
	}
	return true
}

// nextChunk splits off the first chunk of a non-empty key. A key starting
// with `/` splits after the first `/` that follows position 0; otherwise it
// splits at the first `/`. This is also the chunking rule resource.go uses
// to build and walk the resource trie, so the two stay in lockstep by
// construction rather than by convention.
func nextChunk(s string) (chunk, rest string) {
	if s == "" {
		return "", ""
	}
	if s[0] == '/' {
		if idx := strings.IndexByte(s[1:], '/'); idx >= 0 {
			return s[:idx+1], s[idx+1:]
		}
		return s, ""
	}
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		return s[:idx], s[idx:]
	}
	return s, ""
}

// chunkIntersect reports whether two single chunks (no `**`, but possibly
// containing `*`) can match the same literal chunk. Handles the case where
// both sides carry `*` via substring interleaving.
func chunkIntersect(a, b string) bool {
	if a == b {
		return true
	}
	if !strings.ContainsRune(a, '*') && !strings.ContainsRune(b, '*') {
		return false
	}
	return wildIntersect(a, b)
}

// wildIntersect decides whether two patterns, each built from literal runs
// separated by `*`, can produce a common concrete string. It works by
// greedily walking literal segments of one pattern against the other,
// falling back to trying every split point once a `*` is encountered on
// either side. The patterns involved in this protocol are short (key
// chunks), so the branching factor stays small in practice.
func wildIntersect(a, b string) bool {
	return wildMatch([]byte(a), []byte(b))
}

// wildMatch matches two wildcard patterns against each other directly,
// without materializing a concrete string: whenever both sides are
// literal at the current position, the bytes must match; whenever either
// side is `*`, it may expand to zero-or-more bytes, so we branch.
func wildMatch(a, b []byte) bool {
	for len(a) > 0 && len(b) > 0 {
		switch {
		case a[0] == '*':
			// Try: a's `*` consumes nothing more, or consumes one more byte of b.
			if wildMatch(a[1:], b) {
				return true
			}
			return wildMatch(a, b[1:])
		case b[0] == '*':
			if wildMatch(a, b[1:]) {
				return true
			}
			return wildMatch(a[1:], b)
		case a[0] != b[0]:
			return false
		default:
			a, b = a[1:], b[1:]
		}
	}
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) == 0 {
		return allStars(b)
	}
	return allStars(a)
}

func allStars(s []byte) bool {
	for _, c := range s {
		if c != '*' {
			return false
		}
	}
	return true
}
