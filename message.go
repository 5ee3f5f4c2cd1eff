package kelp

// ResKey identifies a resource on the wire. ID == 0 means Suffix is the
// full key name. ID != 0 and Suffix == "" means the key is exactly the
// resource bound to ID. ID != 0 and Suffix != "" means the key is Suffix
// appended to whatever ID is bound to at the reader's side.
type ResKey struct {
	ID     uint64
	Suffix string
}

func (k ResKey) isCompact() bool { return k.Suffix == "" }

// SubMode selects how a subscription wants data delivered.
type SubMode uint8

const (
	SubModePush SubMode = iota
	SubModePull
	SubModePeriodicPush
	SubModePeriodicPull
)

// Period configures a periodic SubMode.
type Period struct {
	Origin   uint64
	Period   uint64
	Duration uint64
}

// SubInfo is the payload of a SUBSCRIBER declaration.
type SubInfo struct {
	Mode   SubMode
	Period *Period
}

// TargetKind selects how many replier sources of one kind (storages or
// evals) a query should reach.
type TargetKind uint8

const (
	TargetBestMatching TargetKind = iota
	TargetComplete
	TargetAll
	TargetNone
)

// SourceTarget is the target for one replier source kind.
type SourceTarget struct {
	Kind TargetKind
	N    uint64 // meaningful only when Kind == TargetComplete
}

// QueryTarget is the full replier-source target of a query.
type QueryTarget struct {
	Storage SourceTarget
	Eval    SourceTarget
}

// DefaultQueryTarget is used when a query carries no explicit target.
func DefaultQueryTarget() QueryTarget {
	return QueryTarget{
		Storage: SourceTarget{Kind: TargetBestMatching},
		Eval:    SourceTarget{Kind: TargetBestMatching},
	}
}

// Consolidation selects how a querier merges replies from multiple
// repliers.
type Consolidation uint8

const (
	ConsolidationNone Consolidation = iota
	ConsolidationLastBroker
	ConsolidationIncremental
)

// ReplySource distinguishes a reply's origin.
type ReplySource uint8

const (
	ReplySourceStorage ReplySource = iota
	ReplySourceEval
)

// Declaration is one entry of a DECLARE message.
type Declaration interface{ isDeclaration() }

type DeclResource struct {
	Rid uint64
	Key ResKey
}

type DeclForgetResource struct{ Rid uint64 }

type DeclSubscriber struct {
	Key ResKey
	Sub SubInfo
}

type DeclForgetSubscriber struct{ Key ResKey }

type DeclPublisher struct{ Key ResKey }

type DeclForgetPublisher struct{ Key ResKey }

type DeclStorage struct{ Key ResKey }

type DeclForgetStorage struct{ Key ResKey }

type DeclEval struct{ Key ResKey }

type DeclForgetEval struct{ Key ResKey }

func (DeclResource) isDeclaration()         {}
func (DeclForgetResource) isDeclaration()   {}
func (DeclSubscriber) isDeclaration()       {}
func (DeclForgetSubscriber) isDeclaration() {}
func (DeclPublisher) isDeclaration()        {}
func (DeclForgetPublisher) isDeclaration()  {}
func (DeclStorage) isDeclaration()          {}
func (DeclForgetStorage) isDeclaration()    {}
func (DeclEval) isDeclaration()             {}
func (DeclForgetEval) isDeclaration()       {}

// WhatAmI identifies a session peer's role in the scouting handshake.
type WhatAmI uint64

const (
	WhatAmIBroker WhatAmI = 1 << iota
	WhatAmIRouter
	WhatAmIPeer
	WhatAmIClient
)

// Body is the payload of one terminal message, carried inside Message.
type Body interface{ isBody() }

type Scout struct{ What *WhatAmI }

type Hello struct {
	What     *WhatAmI
	Locators []string
}

type Open struct {
	Version  uint8
	What     *WhatAmI
	PeerID   []byte
	Lease    uint64
	Locators []string
}

type Accept struct {
	OpenerPID   []byte
	AccepterPID []byte
	Lease       uint64
}

type Close struct {
	PeerID []byte
	Reason uint8
}

type KeepAlive struct{ PeerID []byte }

type Declare struct {
	SN           uint64
	Declarations []Declaration
}

type Data struct {
	Reliable bool
	SN       uint64
	Key      ResKey
	Info     []byte
	Payload  []byte
}

type Pull struct {
	Final      bool
	SN         uint64
	Key        ResKey
	PullID     uint64
	MaxSamples *uint64
}

type Query struct {
	SN            uint64
	Key           ResKey
	Predicate     string
	QID           uint64
	Target        *QueryTarget
	Consolidation Consolidation
}

type PingPong struct {
	Hash uint64
	Ping bool
}

type Sync struct {
	Reliable bool
	SN       uint64
	Count    *uint64
}

type AckNack struct {
	SN   uint64
	Mask *uint64
}

func (Scout) isBody()     {}
func (Hello) isBody()     {}
func (Open) isBody()      {}
func (Accept) isBody()    {}
func (Close) isBody()     {}
func (KeepAlive) isBody() {}
func (Declare) isBody()   {}
func (Data) isBody()      {}
func (Pull) isBody()      {}
func (Query) isBody()     {}
func (PingPong) isBody()  {}
func (Sync) isBody()      {}
func (AckNack) isBody()   {}

// FragmentKind distinguishes the three fragment positions.
type FragmentKind uint8

const (
	FragmentFirst FragmentKind = iota
	FragmentMiddle
	FragmentLast
)

// Fragment is the FRAGMENT decorator.
type Fragment struct {
	Kind  FragmentKind
	Count *uint64 // only meaningful when Kind == FragmentFirst
}

// ReplyContext is the REPLY decorator, correlating a DATA message with an
// in-flight query.
type ReplyContext struct {
	Final     bool
	Source    ReplySource
	QID       uint64
	ReplierID []byte // nil when Final
}

// Property is one entry of the PROPERTIES decorator.
type Property struct {
	Key   uint64
	Value []byte
}

// Message wraps a terminal Body with the decorators that may precede it
// on the wire.
type Message struct {
	Fragment   *Fragment
	ConduitID  *uint64
	Reply      *ReplyContext
	Properties []Property
	Body       Body
}
