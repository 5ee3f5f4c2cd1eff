package kelp

import (
	"context"
	"errors"
	"log/slog"
)

// Demux is the wire-to-table counterpart of Mux: it reads decoded
// Messages off a Link and turns them into Tables calls on behalf of the
// Face that owns the link. Declarations batched in one DECLARE message
// are applied in order; everything else maps one Message to one Tables
// call.
type Demux struct {
	tables *Tables
	face   *Face
	logger *slog.Logger
}

// run drives the read loop until the link closes or errors, then tears
// down the owning face. Meant to be started in its own goroutine by
// whatever established the session (see TablesSessionHandler).
func (d *Demux) run(link Link) {
	logger := d.logger
	if logger == nil {
		logger = slog.Default()
	}
	for {
		msg, err := link.Receive()
		if err != nil {
			if errors.Is(err, ErrDecode) {
				logger.Log(context.Background(), slog.LevelWarn, "dropping undecodable frame", "face", d.face.ID, "err", err)
				continue
			}
			if !errors.Is(err, ErrClosedSession) {
				logger.Log(context.Background(), slog.LevelError, "link closed", "face", d.face.ID, "err", err)
			}
			d.tables.CloseFace(d.face)
			return
		}
		if err := d.dispatch(msg); err != nil {
			if errors.Is(err, ErrUnknownRid) || errors.Is(err, ErrDuplicateRid) {
				logger.Log(context.Background(), slog.LevelWarn, "closing session", "face", d.face.ID, "err", err)
				d.face.Primitives.Close()
				d.tables.CloseFace(d.face)
				return
			}
			logger.Log(context.Background(), slog.LevelWarn, "dropping message", "face", d.face.ID, "err", err)
		}
	}
}

// dispatch fragments, conduit ids and properties are round-tripped by
// the codec but carry no routing obligation at this layer (see
// SPEC_FULL.md §6: no cross-frame reassembly), so only Body matters here.
func (d *Demux) dispatch(msg *Message) error {
	switch b := msg.Body.(type) {
	case Declare:
		for _, decl := range b.Declarations {
			if err := d.applyDeclaration(decl); err != nil {
				return err
			}
		}
		return nil
	case Data:
		if msg.Reply != nil {
			d.tables.RouteReply(d.face, msg.Reply.QID, replyFromWire(*msg.Reply, b))
			return nil
		}
		return d.tables.RouteData(d.face, b.Key.ID, b.Key.Suffix, b.Reliable, b.Info, b.Payload)
	case Query:
		return d.tables.RouteQuery(d.face, b.Key.ID, b.Key.Suffix, b.Predicate, b.QID, b.Target, b.Consolidation)
	case Pull:
		return d.tables.RoutePull(d.face, b.Final, b.Key.ID, b.Key.Suffix, b.PullID, b.MaxSamples)
	case Close:
		d.tables.CloseFace(d.face)
		return nil
	case KeepAlive, Scout, Hello, Open, Accept, PingPong, Sync, AckNack:
		// Session-establishment and liveness traffic: outside the routing
		// plane this package owns, handled by the caller that ran the
		// handshake before wiring this Demux up.
		return nil
	default:
		return nil
	}
}

// replyFromWire turns a DATA message carrying a REPLY decorator back
// into the Reply value Tables.RouteReply expects. The codec never
// decodes a ReplierID on a final decorator, so every final reply read
// off the wire becomes ReplyFinal; the SourceFinal branch is reached
// only for a final ReplyContext that carries a ReplierID.
func replyFromWire(rc ReplyContext, data Data) Reply {
	if rc.Final {
		if rc.ReplierID == nil {
			return ReplyFinal{}
		}
		return SourceFinal{Source: rc.Source, Replier: rc.ReplierID}
	}
	return ReplyData{
		Source:  rc.Source,
		Replier: rc.ReplierID,
		Key:     data.Key,
		Info:    data.Info,
		Payload: data.Payload,
	}
}

func (d *Demux) applyDeclaration(decl Declaration) error {
	switch v := decl.(type) {
	case DeclResource:
		return d.tables.DeclareResource(d.face, v.Rid, v.Key.ID, v.Key.Suffix)
	case DeclForgetResource:
		return d.tables.UndeclareResource(d.face, v.Rid)
	case DeclSubscriber:
		return d.tables.DeclareSubscription(d.face, v.Key.ID, v.Key.Suffix, v.Sub)
	case DeclForgetSubscriber:
		return d.tables.UndeclareSubscription(d.face, v.Key.ID, v.Key.Suffix)
	case DeclPublisher, DeclForgetPublisher:
		// Publisher declarations are advisory only: data routing is driven
		// entirely by declared subscriptions, so there is nothing for the
		// table to record here.
		return nil
	case DeclStorage:
		return d.tables.DeclareQueryable(d.face, v.Key.ID, v.Key.Suffix, ReplySourceStorage)
	case DeclForgetStorage:
		return d.tables.UndeclareQueryable(d.face, v.Key.ID, v.Key.Suffix)
	case DeclEval:
		return d.tables.DeclareQueryable(d.face, v.Key.ID, v.Key.Suffix, ReplySourceEval)
	case DeclForgetEval:
		return d.tables.UndeclareQueryable(d.face, v.Key.ID, v.Key.Suffix)
	default:
		return nil
	}
}
