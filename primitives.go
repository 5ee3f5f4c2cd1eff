package kelp

// Primitives is the symmetric operation surface consumed by local
// application code and synthesized by the routing tables toward every
// other face. A Mux implements it by encoding each call as a wire
// message; on the routing-table side a Demux turns decoded messages into
// Tables method calls. Implementations MUST be safe for concurrent use.
type Primitives interface {
	Resource(rid uint64, key ResKey)
	ForgetResource(rid uint64)

	Subscriber(key ResKey, sub SubInfo)
	ForgetSubscriber(key ResKey)

	Publisher(key ResKey)
	ForgetPublisher(key ResKey)

	Storage(key ResKey)
	ForgetStorage(key ResKey)

	Eval(key ResKey)
	ForgetEval(key ResKey)

	Data(key ResKey, reliable bool, info []byte, payload []byte)
	Query(key ResKey, predicate string, qid uint64, target *QueryTarget, consolidation Consolidation)
	Reply(qid uint64, reply Reply)
	Pull(final bool, key ResKey, pullID uint64, maxSamples *uint64)

	Close()
}

// Reply is the payload of a Primitives.Reply call: one of ReplyData,
// SourceFinal, or ReplyFinal.
type Reply interface{ isReply() }

type ReplyData struct {
	Source  ReplySource
	Replier []byte
	Key     ResKey
	Info    []byte
	Payload []byte
}

type SourceFinal struct {
	Source  ReplySource
	Replier []byte
}

type ReplyFinal struct{}

func (ReplyData) isReply()   {}
func (SourceFinal) isReply() {}
func (ReplyFinal) isReply()  {}
