package kelp

import (
	"testing"

	"github.com/google/uuid"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, msg *Message) *Message {
	t.Helper()
	buf, err := EncodeMessage(nil, msg)
	require.NoError(t, err)
	out, n, err := DecodeMessage(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	return out
}

func TestDataRoundTrip(t *testing.T) {
	msg := &Message{
		Body: Data{
			Reliable: true,
			SN:       42,
			Key:      ResKey{Suffix: "/demo/example/zenoh-rs-pub"},
			Payload:  []byte("Pub from Go"),
		},
	}
	out := roundTrip(t, msg)
	data, ok := out.Body.(Data)
	require.True(t, ok)
	require.True(t, data.Reliable)
	require.EqualValues(t, 42, data.SN)
	require.Equal(t, "/demo/example/zenoh-rs-pub", data.Key.Suffix)
	require.Equal(t, "Pub from Go", string(data.Payload))
}

func TestDataRoundTripScenario6(t *testing.T) {
	msg := &Message{
		Body: Data{
			Reliable: true,
			SN:       42,
			Key:      ResKey{ID: 11, Suffix: "/y"},
			Payload:  []byte{0xAA, 0xBB},
		},
	}
	out := roundTrip(t, msg)
	data := out.Body.(Data)
	require.Equal(t, msg.Body.(Data), data)
}

func TestDataRoundTripCompactKey(t *testing.T) {
	msg := &Message{
		Body: Data{
			Key:     ResKey{ID: 7},
			Payload: []byte{1, 2, 3},
		},
	}
	out := roundTrip(t, msg)
	data := out.Body.(Data)
	require.EqualValues(t, 7, data.Key.ID)
	require.Empty(t, data.Key.Suffix)
	require.Equal(t, []byte{1, 2, 3}, data.Payload)
}

func TestDataWithInfoAndReplyDecorator(t *testing.T) {
	replier := []byte{9, 9, 9}
	msg := &Message{
		Reply: &ReplyContext{Source: ReplySourceStorage, QID: 17, ReplierID: replier},
		Body: Data{
			Key:     ResKey{Suffix: "/a/b"},
			Info:    []byte{0xaa},
			Payload: []byte("v"),
		},
	}
	out := roundTrip(t, msg)
	require.NotNil(t, out.Reply)
	require.False(t, out.Reply.Final)
	require.EqualValues(t, 17, out.Reply.QID)
	require.Equal(t, replier, out.Reply.ReplierID)
	data := out.Body.(Data)
	require.Equal(t, []byte{0xaa}, data.Info)
}

func TestDeclareRoundTrip(t *testing.T) {
	msg := &Message{
		Body: Declare{
			SN: 3,
			Declarations: []Declaration{
				DeclResource{Rid: 1, Key: ResKey{Suffix: "/a/b"}},
				DeclSubscriber{Key: ResKey{ID: 1}, Sub: SubInfo{Mode: SubModePush}},
				DeclSubscriber{Key: ResKey{ID: 1, Suffix: "/c"}, Sub: SubInfo{
					Mode:   SubModePeriodicPush,
					Period: &Period{Origin: 0, Period: 100, Duration: 10},
				}},
				DeclForgetResource{Rid: 1},
			},
		},
	}
	out := roundTrip(t, msg)
	decl := out.Body.(Declare)
	require.Len(t, decl.Declarations, 4)

	r0 := decl.Declarations[0].(DeclResource)
	require.EqualValues(t, 1, r0.Rid)
	require.Equal(t, "/a/b", r0.Key.Suffix)

	s1 := decl.Declarations[1].(DeclSubscriber)
	require.Equal(t, SubModePush, s1.Sub.Mode)
	require.Nil(t, s1.Sub.Period)

	s2 := decl.Declarations[2].(DeclSubscriber)
	require.Equal(t, SubModePeriodicPush, s2.Sub.Mode)
	require.NotNil(t, s2.Sub.Period)
	require.EqualValues(t, 100, s2.Sub.Period.Period)

	f3 := decl.Declarations[3].(DeclForgetResource)
	require.EqualValues(t, 1, f3.Rid)
}

func TestQueryRoundTripWithTarget(t *testing.T) {
	target := QueryTarget{
		Storage: SourceTarget{Kind: TargetComplete, N: 3},
		Eval:    SourceTarget{Kind: TargetAll},
	}
	msg := &Message{
		Body: Query{
			SN:            5,
			Key:           ResKey{Suffix: "/a/*"},
			Predicate:     "?x<1",
			QID:           99,
			Target:        &target,
			Consolidation: ConsolidationIncremental,
		},
	}
	out := roundTrip(t, msg)
	q := out.Body.(Query)
	require.Equal(t, "?x<1", q.Predicate)
	require.NotNil(t, q.Target)
	require.Equal(t, TargetComplete, q.Target.Storage.Kind)
	require.EqualValues(t, 3, q.Target.Storage.N)
	require.Equal(t, TargetAll, q.Target.Eval.Kind)
	require.Equal(t, ConsolidationIncremental, q.Consolidation)
}

func TestQueryRoundTripDefaultTarget(t *testing.T) {
	msg := &Message{
		Body: Query{SN: 1, Key: ResKey{Suffix: "/a"}, QID: 2},
	}
	out := roundTrip(t, msg)
	q := out.Body.(Query)
	require.Nil(t, q.Target)
}

func TestOpenAcceptRoundTrip(t *testing.T) {
	what := WhatAmIPeer
	msg := &Message{
		Body: Open{
			Version:  1,
			What:     &what,
			PeerID:   []byte{1, 2, 3, 4},
			Lease:    30000,
			Locators: []string{"tcp/127.0.0.1:7447"},
		},
	}
	out := roundTrip(t, msg)
	open := out.Body.(Open)
	require.Equal(t, uint8(1), open.Version)
	require.NotNil(t, open.What)
	require.Equal(t, WhatAmIPeer, *open.What)
	require.Equal(t, []byte{1, 2, 3, 4}, open.PeerID)
	require.EqualValues(t, 30000, open.Lease)
	require.Equal(t, []string{"tcp/127.0.0.1:7447"}, open.Locators)

	accept := &Message{Body: Accept{OpenerPID: []byte{1, 2, 3, 4}, AccepterPID: []byte{5, 6}, Lease: 30000}}
	outA := roundTrip(t, accept)
	a := outA.Body.(Accept)
	require.Equal(t, []byte{5, 6}, a.AccepterPID)
}

func TestCloseAndKeepAliveRoundTrip(t *testing.T) {
	c := &Message{Body: Close{PeerID: []byte{1}, Reason: 2}}
	outC := roundTrip(t, c)
	require.Equal(t, byte(2), outC.Body.(Close).Reason)

	ka := &Message{Body: KeepAlive{}}
	outK := roundTrip(t, ka)
	require.Nil(t, outK.Body.(KeepAlive).PeerID)
}

func TestFragmentDecoratorRoundTrip(t *testing.T) {
	count := uint64(4)
	msg := &Message{
		Fragment: &Fragment{Kind: FragmentFirst, Count: &count},
		Body:     Data{Key: ResKey{Suffix: "/x"}, Payload: []byte("part1")},
	}
	out := roundTrip(t, msg)
	require.NotNil(t, out.Fragment)
	require.Equal(t, FragmentFirst, out.Fragment.Kind)
	require.NotNil(t, out.Fragment.Count)
	require.EqualValues(t, 4, *out.Fragment.Count)
}

func TestConduitDecoratorRoundTrip(t *testing.T) {
	for _, id := range []uint64{0, 1, 3, 42, 1000} {
		msg := &Message{
			ConduitID: &id,
			Body:      Data{Key: ResKey{Suffix: "/x"}, Payload: []byte("p")},
		}
		out := roundTrip(t, msg)
		require.NotNil(t, out.ConduitID)
		require.Equal(t, id, *out.ConduitID)
	}
}

func TestPropertiesDecoratorRoundTrip(t *testing.T) {
	msg := &Message{
		Properties: []Property{{Key: 1, Value: []byte("go")}, {Key: 2, Value: nil}},
		Body:       KeepAlive{},
	}
	out := roundTrip(t, msg)
	require.Len(t, out.Properties, 2)
	require.Equal(t, "go", string(out.Properties[0].Value))
}

func TestPullSyncAckNackPingPongRoundTrip(t *testing.T) {
	max := uint64(10)
	p := &Message{Body: Pull{Final: true, SN: 1, Key: ResKey{ID: 1}, PullID: 7, MaxSamples: &max}}
	outP := roundTrip(t, p)
	require.EqualValues(t, 10, *outP.Body.(Pull).MaxSamples)

	cnt := uint64(5)
	s := &Message{Body: Sync{Reliable: true, SN: 2, Count: &cnt}}
	outS := roundTrip(t, s)
	require.EqualValues(t, 5, *outS.Body.(Sync).Count)

	mask := uint64(0xff)
	a := &Message{Body: AckNack{SN: 3, Mask: &mask}}
	outA := roundTrip(t, a)
	require.EqualValues(t, 0xff, *outA.Body.(AckNack).Mask)

	pp := &Message{Body: PingPong{Hash: 123, Ping: true}}
	outPP := roundTrip(t, pp)
	require.True(t, outPP.Body.(PingPong).Ping)
}

func TestZintFuzzRoundTrip(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(0, 20)
	for i := 0; i < 500; i++ {
		var v uint64
		f.Fuzz(&v)
		buf := writeZint(nil, v)
		got, n, err := readZint(buf, 0)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, v, got)
	}
}

func TestStringAndBytesFuzzRoundTrip(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(0, 64)
	for i := 0; i < 200; i++ {
		var s string
		f.Fuzz(&s)
		buf := writeString(nil, s)
		got, n, err := readString(buf, 0)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, s, got)

		var b []byte
		f.Fuzz(&b)
		buf2 := writeBytes(nil, b)
		got2, n2, err := readBytes(buf2, 0)
		require.NoError(t, err)
		require.Equal(t, len(buf2), n2)
		require.Equal(t, b, got2)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	id := uuid.New()
	buf := writeTimestamp(nil, 123456789, id)
	tm, gotID, n, err := readTimestamp(buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.EqualValues(t, 123456789, tm)
	require.Equal(t, id, gotID)
}

func TestReadZintRejectsTruncatedInput(t *testing.T) {
	_, _, err := readZint([]byte{0x80, 0x80}, 0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestReadZintRejectsTooManyContinuationBytes(t *testing.T) {
	buf := make([]byte, 0, 16)
	for i := 0; i < 15; i++ {
		buf = append(buf, 0x80)
	}
	buf = append(buf, 0x01)
	_, _, err := readZint(buf, 0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeMessageRejectsUnknownID(t *testing.T) {
	_, _, err := DecodeMessage([]byte{header(31, 0)}, 0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeMessageRejectsTruncatedBuffer(t *testing.T) {
	_, _, err := DecodeMessage(nil, 0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeSourceTargetRejectsUnknownKind(t *testing.T) {
	_, _, err := decodeSourceTarget([]byte{7}, 0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeQueryRejectsUnknownConsolidation(t *testing.T) {
	buf, err := EncodeMessage(nil, &Message{Body: Query{SN: 1, Key: ResKey{Suffix: "/a"}, QID: 1, Consolidation: ConsolidationNone}})
	require.NoError(t, err)
	buf[len(buf)-1] = 5 // past ConsolidationIncremental, the last defined mode
	_, _, err = DecodeMessage(buf, 0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestDecodeSubscriberRejectsUnknownSubMode(t *testing.T) {
	keyBuf, compact := writeReskey(nil, ResKey{ID: 1})
	require.True(t, compact)
	buf := []byte{header(declSubscriber, declFlagCompactKey|declFlagSubInfo)}
	buf = append(buf, keyBuf...)
	buf = append(buf, 9) // past SubModePeriodicPull, the last defined mode
	_, _, err := decodeDeclaration(buf, 0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestReadPeerIDRejectsOversizedID(t *testing.T) {
	buf := writeBytes(nil, make([]byte, maxPeerIDLen+1))
	_, _, err := readPeerID(buf, 0)
	require.ErrorIs(t, err, ErrDecode)
}

func TestReadPeerIDAcceptsMaxLength(t *testing.T) {
	buf := writeBytes(nil, make([]byte, maxPeerIDLen))
	id, n, err := readPeerID(buf, 0)
	require.NoError(t, err)
	require.Len(t, id, maxPeerIDLen)
	require.Equal(t, len(buf), n)
}
