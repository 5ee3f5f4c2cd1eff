package kelp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntersect(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"/", "/", true},
		{"/a/b", "/a/b", true},
		{"/a", "/a", true},
		{"/a/", "/a", true},
		{"/a", "/a/", true},
		{"/*", "/abc", true},
		{"/*", "/abc/", true},
		{"/*/", "/abc", true},
		{"/*", "/", false},
		{"/*", "xxx", false},
		{"/ab*", "/abcd", true},
		{"/ab*d", "/abcd", true},
		{"/ab*", "/ab", true},
		{"/ab/*", "/ab", false},
		{"/a/*/c/*/e", "/a/b/c/d/e", true},
		{"/a/*b/c/*d/e", "/a/xb/c/xd/e", true},
		{"/a/*/c/*/e", "/a/c/e", false},
		{"/a/*/c/*/e", "/a/b/c/d/x/e", false},
		{"/ab*cd", "/abxxcxxd", false},
		{"/ab*cd", "/abxxcxxcd", true},
		{"/ab*cd", "/abxxcxxcdx", false},
		{"/**", "/abc", true},
		{"/**", "/a/b/c", true},
		{"/**", "/a/b/c/", true},
		{"/**/", "/a/b/c", true},
		{"/**/", "/", true},
		{"/ab/**", "/ab", true},
		{"/**/xyz", "/a/b/xyz/d/e/f/xyz", true},
		{"/**/xyz*xyz", "/a/b/xyz/d/e/f/xyz", false},
		{"/a/**/c/**/e", "/a/b/b/b/c/d/d/d/e", true},
		{"/a/**/c/**/e", "/a/c/e", true},
		{"/a/**/c/*/e/*", "/a/b/b/b/c/d/d/c/d/e/f", true},
		{"/a/**/c/*/e/*", "/a/b/b/b/c/d/d/c/d/d/e/f", false},
		{"/x/abc", "/x/abc", true},
		{"/x/abc", "/abc", false},
		{"/x/*", "/x/abc", true},
		{"/x/*", "/abc", false},
		{"/*", "/x/abc", false},
		{"/x/*", "/x/abc*", true},
		{"/x/*abc", "/x/abc*", true},
		{"/x/a*", "/x/abc*", true},
		{"/x/a*de", "/x/abc*de", true},
		{"/x/a*d*e", "/x/a*e", true},
		{"/x/a*d*e", "/x/a*c*e", true},
		{"/x/a*d*e", "/x/ade", true},
		{"/x/c*", "/x/abc*", false},
		{"/x/*d", "/x/*e", false},
	}

	for _, tc := range cases {
		got := Intersect(tc.a, tc.b)
		assert.Equalf(t, tc.want, got, "Intersect(%q, %q)", tc.a, tc.b)

		// symmetry
		gotRev := Intersect(tc.b, tc.a)
		assert.Equalf(t, tc.want, gotRev, "Intersect(%q, %q) [swapped]", tc.b, tc.a)
	}
}

func TestIntersectReflexive(t *testing.T) {
	keys := []string{"/", "/a", "/a/b", "/a/*/c", "/**", "/a/**/c", "/ab*cd"}
	for _, k := range keys {
		assert.Truef(t, Intersect(k, k), "Intersect(%q, %q) should be reflexive", k, k)
	}
}

func TestIntersectNoAllocOnLiteralPath(t *testing.T) {
	a, b := "/demo/a/b/c", "/demo/a/b/c"
	n := testing.AllocsPerRun(100, func() {
		Intersect(a, b)
	})
	assert.Zero(t, n)
}
