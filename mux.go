package kelp

import "sync/atomic"

// Mux adapts a Primitives caller onto a Link: every call becomes exactly
// one wire Message. It carries its own per-kind sequence numbers since
// the wire format threads an SN through DECLARE/DATA/PULL/QUERY
// independently of anything Tables tracks.
type Mux struct {
	link Link
	face *Face // set once DeclareSession returns; nil during construction

	declSN  atomic.Uint64
	dataSN  atomic.Uint64
	pullSN  atomic.Uint64
	querySN atomic.Uint64
	syncSN  atomic.Uint64
}

func (m *Mux) send(msg *Message) {
	// A write failure tears down the link asynchronously (its own read
	// loop will observe the same error); Primitives has no error return,
	// matching the teacher's "best-effort fire and forget" handler shape
	// for synthesized outbound traffic.
	_ = m.link.Send(msg)
}

func (m *Mux) declare(d Declaration) {
	m.send(&Message{Body: Declare{SN: m.declSN.Add(1), Declarations: []Declaration{d}}})
}

func (m *Mux) Resource(rid uint64, key ResKey) { m.declare(DeclResource{Rid: rid, Key: key}) }
func (m *Mux) ForgetResource(rid uint64)       { m.declare(DeclForgetResource{Rid: rid}) }

func (m *Mux) Subscriber(key ResKey, sub SubInfo) { m.declare(DeclSubscriber{Key: key, Sub: sub}) }
func (m *Mux) ForgetSubscriber(key ResKey)        { m.declare(DeclForgetSubscriber{Key: key}) }

func (m *Mux) Publisher(key ResKey)       { m.declare(DeclPublisher{Key: key}) }
func (m *Mux) ForgetPublisher(key ResKey) { m.declare(DeclForgetPublisher{Key: key}) }

func (m *Mux) Storage(key ResKey)       { m.declare(DeclStorage{Key: key}) }
func (m *Mux) ForgetStorage(key ResKey) { m.declare(DeclForgetStorage{Key: key}) }

func (m *Mux) Eval(key ResKey)       { m.declare(DeclEval{Key: key}) }
func (m *Mux) ForgetEval(key ResKey) { m.declare(DeclForgetEval{Key: key}) }

func (m *Mux) Data(key ResKey, reliable bool, info, payload []byte) {
	m.send(&Message{Body: Data{
		Reliable: reliable,
		SN:       m.dataSN.Add(1),
		Key:      key,
		Info:     info,
		Payload:  payload,
	}})
}

func (m *Mux) Query(key ResKey, predicate string, qid uint64, target *QueryTarget, consolidation Consolidation) {
	m.send(&Message{Body: Query{
		SN:            m.querySN.Add(1),
		Key:           key,
		Predicate:     predicate,
		QID:           qid,
		Target:        target,
		Consolidation: consolidation,
	}})
}

// Reply is carried on the wire as a DATA message decorated with REPLY:
// ReplyData keeps the payload and a non-final decorator, SourceFinal and
// ReplyFinal both set the decorator's Final flag and an empty body. A
// final decorator carries no ReplierID on the wire, so the receiving
// Demux turns either one into ReplyFinal.
func (m *Mux) Reply(qid uint64, reply Reply) {
	switch r := reply.(type) {
	case ReplyData:
		m.send(&Message{
			Reply: &ReplyContext{Source: r.Source, QID: qid, ReplierID: r.Replier},
			Body:  Data{SN: m.dataSN.Add(1), Key: r.Key, Info: r.Info, Payload: r.Payload},
		})
	case SourceFinal:
		m.send(&Message{
			Reply: &ReplyContext{Final: true, Source: r.Source, QID: qid, ReplierID: r.Replier},
			Body:  Data{SN: m.dataSN.Add(1)},
		})
	case ReplyFinal:
		m.send(&Message{
			Reply: &ReplyContext{Final: true, QID: qid},
			Body:  Data{SN: m.dataSN.Add(1)},
		})
	}
}

func (m *Mux) Pull(final bool, key ResKey, pullID uint64, maxSamples *uint64) {
	m.send(&Message{Body: Pull{
		Final:      final,
		SN:         m.pullSN.Add(1),
		Key:        key,
		PullID:     pullID,
		MaxSamples: maxSamples,
	}})
}

func (m *Mux) Close() {
	peerID := []byte(nil)
	_ = m.link.Send(&Message{Body: Close{PeerID: peerID}})
	_ = m.link.Close()
}
