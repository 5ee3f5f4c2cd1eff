package kelp

// Link is the session-layer transport contract a Mux/Demux pair runs
// over: something that can send and receive whole Messages and be torn
// down. Framing, retransmission and reassembly are a Link
// implementation's concern, not this package's (see package transport
// for the one concrete Link this module ships).
type Link interface {
	Send(*Message) error
	Receive() (*Message, error)
	Close() error
}

// SessionHandler is notified as sessions (Links) come and go, mirroring
// how a new Face is born from and retired alongside its Link.
type SessionHandler interface {
	NewSession(whatami WhatAmI, link Link) Primitives
	DelSession(p Primitives)
}

// TablesSessionHandler adapts Tables to SessionHandler: every new
// session gets a Face wired to a Mux writing onto its Link, and a Demux
// reads off that Link and drives the same Face's declarations/data/query
// traffic into the table.
type TablesSessionHandler struct {
	Tables *Tables
}

func (h *TablesSessionHandler) NewSession(whatami WhatAmI, link Link) Primitives {
	mux := &Mux{link: link}
	face := h.Tables.DeclareSession(whatami, mux)
	mux.face = face
	demux := &Demux{tables: h.Tables, face: face, logger: h.Tables.logger}
	go demux.run(link)
	return mux
}

func (h *TablesSessionHandler) DelSession(p Primitives) {
	mux, ok := p.(*Mux)
	if !ok {
		return
	}
	h.Tables.CloseFace(mux.face)
}
