package kelp

import "sync"

// recordingPrimitives captures every call it receives, in order, for
// assertions in table/face tests. Safe for concurrent use since
// RouteData/RouteQuery can fan out to several faces whose Primitives calls
// may interleave across goroutines in a real transport, even though the
// tests here call them synchronously.
type recordingPrimitives struct {
	mu    sync.Mutex
	calls []call
}

type call struct {
	name string
	args []any
}

func (p *recordingPrimitives) record(name string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call{name: name, args: args})
}

func (p *recordingPrimitives) snapshot() []call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]call(nil), p.calls...)
}

func (p *recordingPrimitives) namesOf(name string) []call {
	var out []call
	for _, c := range p.snapshot() {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (p *recordingPrimitives) Resource(rid uint64, key ResKey) { p.record("Resource", rid, key) }
func (p *recordingPrimitives) ForgetResource(rid uint64)       { p.record("ForgetResource", rid) }

func (p *recordingPrimitives) Subscriber(key ResKey, sub SubInfo) {
	p.record("Subscriber", key, sub)
}
func (p *recordingPrimitives) ForgetSubscriber(key ResKey) { p.record("ForgetSubscriber", key) }

func (p *recordingPrimitives) Publisher(key ResKey)       { p.record("Publisher", key) }
func (p *recordingPrimitives) ForgetPublisher(key ResKey) { p.record("ForgetPublisher", key) }

func (p *recordingPrimitives) Storage(key ResKey)       { p.record("Storage", key) }
func (p *recordingPrimitives) ForgetStorage(key ResKey) { p.record("ForgetStorage", key) }

func (p *recordingPrimitives) Eval(key ResKey)       { p.record("Eval", key) }
func (p *recordingPrimitives) ForgetEval(key ResKey) { p.record("ForgetEval", key) }

func (p *recordingPrimitives) Data(key ResKey, reliable bool, info, payload []byte) {
	p.record("Data", key, reliable, info, payload)
}

func (p *recordingPrimitives) Query(key ResKey, predicate string, qid uint64, target *QueryTarget, consolidation Consolidation) {
	p.record("Query", key, predicate, qid, target, consolidation)
}

func (p *recordingPrimitives) Reply(qid uint64, reply Reply) { p.record("Reply", qid, reply) }

func (p *recordingPrimitives) Pull(final bool, key ResKey, pullID uint64, maxSamples *uint64) {
	p.record("Pull", final, key, pullID, maxSamples)
}

func (p *recordingPrimitives) Close() { p.record("Close") }
