package kelp

// A message header is one byte: the low 5 bits identify the message kind
// (terminal message or decorator), the high 3 bits are a small per-kind
// flag set. Which letter maps to which of the 3 bit positions is an
// implementation detail local to this codec (spec.md only fixes the
// letter names and payload shapes, not concrete bit numbers); what matters
// is that encode and decode agree, which the table below guarantees.
const (
	idMask    = 0x1F
	flagsMask = 0xE0
	flagShift = 5
)

// Message/decorator ids share one 5-bit namespace.
const (
	idFragment = iota
	idConduit
	idReply
	idProperties
	idScout
	idHello
	idOpen
	idAccept
	idClose
	idKeepAlive
	idDeclare
	idData
	idPull
	idQuery
	idPingPong
	idSync
	idAckNack
)

// The 3 physical flag bits, before being given a per-message meaning.
const (
	flagBit0 byte = 1 << flagShift       // 0x20
	flagBit1 byte = 1 << (flagShift + 1) // 0x40
	flagBit2 byte = 1 << (flagShift + 2) // 0x80
)

// Per-message/decorator flag letters. Reused bit positions across
// different message kinds are safe: only one kind's header is being
// interpreted at a time.
const (
	// FRAGMENT decorator.
	flagFragFirst byte = flagBit0 // F: first fragment
	flagFragLast  byte = flagBit1 // L: last fragment
	flagFragCount byte = flagBit2 // C: fragment count follows (only with F)

	// CONDUIT decorator.
	flagConduitInline byte = flagBit0 // Z: conduit id inline in remaining flag bits

	// REPLY decorator.
	flagReplyFinal byte = flagBit0 // F: is_final
	flagReplyEval  byte = flagBit1 // E: source is eval, else storage

	// SCOUT / HELLO / OPEN.
	flagWhat     byte = flagBit0 // W: "what" field present
	flagLocators byte = flagBit1 // L: locators list present

	// CLOSE / KEEP_ALIVE / PING_PONG.
	flagPeerID byte = flagBit0 // P: peer id present (CLOSE/KEEP_ALIVE) or ping-vs-pong (PING_PONG)

	// DATA.
	flagReliable    byte = flagBit0 // R: reliable delivery requested
	flagCompactKey  byte = flagBit1 // C: reskey carries id only, no string
	flagInfo        byte = flagBit2 // I: info bytes present

	// PULL.
	flagPullFinal byte = flagBit0 // F: final pull
	// flagCompactKey (bit1) reused.
	flagMaxSamples byte = flagBit2 // N: max_samples present

	// QUERY.
	flagTarget byte = flagBit0 // T: explicit target present

	// SYNC.
	// flagReliable (bit0) reused.
	flagSyncCount byte = flagBit1 // C: count present

	// ACK_NACK.
	flagMask byte = flagBit0 // M: mask present
)

// Declaration kinds inside a DECLARE message have their own 5-bit id
// namespace, distinct from the message/decorator ids above.
const (
	declResource = iota
	declForgetResource
	declSubscriber
	declForgetSubscriber
	declPublisher
	declForgetPublisher
	declStorage
	declForgetStorage
	declEval
	declForgetEval
)

// Declarations carrying a ResKey reuse the compact-key flag; SUBSCRIBER
// additionally flags whether a non-default SubMode/Period follows.
const (
	declFlagCompactKey byte = flagBit0
	declFlagSubInfo    byte = flagBit1
)

func header(id byte, flags byte) byte {
	return (id & idMask) | (flags & flagsMask)
}

func headerID(h byte) byte    { return h & idMask }
func headerFlags(h byte) byte { return h & flagsMask }
func hasFlag(h, f byte) bool  { return h&f != 0 }
