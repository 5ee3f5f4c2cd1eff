package kelp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLocalIDMonotonic(t *testing.T) {
	f := newFace(1, WhatAmIClient, &recordingPrimitives{})
	require.EqualValues(t, 1, f.newLocalID())
	require.EqualValues(t, 2, f.newLocalID())
	require.EqualValues(t, 3, f.newLocalID())
}

func TestRidMappingsRoundTrip(t *testing.T) {
	root := newRoot()
	r := makeResource(root, "/demo/a")
	f := newFace(1, WhatAmIClient, &recordingPrimitives{})

	_, ok := f.localRid(7)
	require.False(t, ok)

	f.setLocalRid(7, r)
	got, ok := f.localRid(7)
	require.True(t, ok)
	require.Same(t, r, got)

	f.setRemoteRid(9, r)
	got, ok = f.remoteRid(9)
	require.True(t, ok)
	require.Same(t, r, got)

	f.dropRemoteRid(9)
	_, ok = f.remoteRid(9)
	require.False(t, ok)
}

func TestAddRemoveSubAndQabl(t *testing.T) {
	root := newRoot()
	a := makeResource(root, "/demo/a")
	b := makeResource(root, "/demo/b")
	f := newFace(1, WhatAmIClient, &recordingPrimitives{})

	f.addSub(a)
	f.addSub(b)
	require.Equal(t, []*Resource{a, b}, f.subs)

	f.removeSub(a)
	require.Equal(t, []*Resource{b}, f.subs)

	f.addQabl(a)
	require.Equal(t, []*Resource{a}, f.qabl)
	f.removeQabl(a)
	require.Empty(t, f.qabl)
}

func TestFaceTeardownClearsContextsAndPrunes(t *testing.T) {
	root := newRoot()
	f := newFace(1, WhatAmIClient, &recordingPrimitives{})
	other := newFace(2, WhatAmIClient, &recordingPrimitives{})

	subRes := makeResource(root, "/demo/sub")
	subRes.context(f).Subs = &SubInfo{Mode: SubModePush}
	f.addSub(subRes)

	qablRes := makeResource(root, "/demo/qabl")
	qablRes.context(f).Qabl = true
	f.addQabl(qablRes)

	sharedRes := makeResource(root, "/demo/shared")
	sharedRes.context(f).LocalRid = new(uint64)
	f.setLocalRid(42, sharedRes)
	// other face keeps this resource alive after f tears down.
	sharedRes.context(other).Subs = &SubInfo{Mode: SubModePush}
	other.addSub(sharedRes)

	f.teardown()

	require.Nil(t, getResource(root, "/demo/sub"))
	require.Nil(t, getResource(root, "/demo/qabl"))

	shared := getResource(root, "/demo/shared")
	require.NotNil(t, shared, "resource with another face's live context survives")
	require.NotContains(t, shared.contexts, f.ID)
	require.Contains(t, shared.contexts, other.ID)

	require.Empty(t, f.subs)
	require.Empty(t, f.qabl)
	require.Empty(t, f.localMappings)
	require.Empty(t, f.remoteMappings)
}
