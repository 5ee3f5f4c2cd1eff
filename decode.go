package kelp

import "fmt"

// DecodeMessage decodes one wire message starting at buf[off], returning
// the message, the number of bytes consumed, and an error wrapping
// ErrDecode on malformed input. Decorators are peeled off in the order
// encode.go writes them; a terminal message id ends the loop.
func DecodeMessage(buf []byte, off int) (*Message, int, error) {
	start := off
	msg := &Message{}
	for {
		if off >= len(buf) {
			return nil, 0, newDecodeError(off, fmt.Errorf("%w: truncated header", ErrDecode))
		}
		h := buf[off]
		id := headerID(h)
		flags := headerFlags(h)
		switch id {
		case idFragment:
			f := &Fragment{}
			n := 1
			switch {
			case hasFlag(flags, flagFragFirst):
				f.Kind = FragmentFirst
				if hasFlag(flags, flagFragCount) {
					count, n1, err := readZint(buf, off+n)
					if err != nil {
						return nil, 0, err
					}
					f.Count = &count
					n += n1
				}
			case hasFlag(flags, flagFragLast):
				f.Kind = FragmentLast
			default:
				f.Kind = FragmentMiddle
			}
			msg.Fragment = f
			off += n
			continue

		case idConduit:
			if hasFlag(flags, flagConduitInline) {
				id := uint64((flags &^ flagConduitInline) >> (flagShift + 1))
				msg.ConduitID = &id
				off++
				continue
			}
			cid, n1, err := readZint(buf, off+1)
			if err != nil {
				return nil, 0, err
			}
			msg.ConduitID = &cid
			off += 1 + n1
			continue

		case idReply:
			r := &ReplyContext{Final: hasFlag(flags, flagReplyFinal)}
			if hasFlag(flags, flagReplyEval) {
				r.Source = ReplySourceEval
			}
			qid, n1, err := readZint(buf, off+1)
			if err != nil {
				return nil, 0, err
			}
			r.QID = qid
			n := 1 + n1
			if !r.Final {
				rid, n2, err := readPeerID(buf, off+n)
				if err != nil {
					return nil, 0, err
				}
				r.ReplierID = rid
				n += n2
			}
			msg.Reply = r
			off += n
			continue

		case idProperties:
			props, n, err := decodeProperties(buf, off+1)
			if err != nil {
				return nil, 0, err
			}
			msg.Properties = props
			off += 1 + n
			continue

		default:
			body, n, err := decodeBody(buf, off, id, flags)
			if err != nil {
				return nil, 0, err
			}
			msg.Body = body
			off += n
			return msg, off - start, nil
		}
	}
}

func decodeProperties(buf []byte, off int) ([]Property, int, error) {
	count, n, err := readZint(buf, off)
	if err != nil {
		return nil, 0, err
	}
	var out []Property
	if count > 0 {
		out = make([]Property, 0, count)
	}
	for i := uint64(0); i < count; i++ {
		k, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		v, n2, err := readBytes(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n2
		out = append(out, Property{Key: k, Value: v})
	}
	return out, n, nil
}

func decodeBody(buf []byte, off int, id, flags byte) (Body, int, error) {
	n := 1 // the header byte itself

	readWhat := func(pos int) (*WhatAmI, int, error) {
		w, n, err := readZint(buf, pos)
		if err != nil {
			return nil, 0, err
		}
		what := WhatAmI(w)
		return &what, n, nil
	}

	switch id {
	case idScout:
		var what *WhatAmI
		if hasFlag(flags, flagWhat) {
			w, n1, err := readWhat(off + n)
			if err != nil {
				return nil, 0, err
			}
			what = w
			n += n1
		}
		return Scout{What: what}, n, nil

	case idHello:
		var what *WhatAmI
		if hasFlag(flags, flagWhat) {
			w, n1, err := readWhat(off + n)
			if err != nil {
				return nil, 0, err
			}
			what = w
			n += n1
		}
		var locs []string
		if hasFlag(flags, flagLocators) {
			l, n1, err := readStringList(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			locs = l
			n += n1
		}
		return Hello{What: what, Locators: locs}, n, nil

	case idOpen:
		if off+n >= len(buf) {
			return nil, 0, newDecodeError(off, fmt.Errorf("%w: truncated OPEN version", ErrDecode))
		}
		version := buf[off+n]
		n++
		pid, n1, err := readPeerID(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		lease, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		var what *WhatAmI
		if hasFlag(flags, flagWhat) {
			w, n1, err := readWhat(off + n)
			if err != nil {
				return nil, 0, err
			}
			what = w
			n += n1
		}
		var locs []string
		if hasFlag(flags, flagLocators) {
			l, n1, err := readStringList(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			locs = l
			n += n1
		}
		return Open{Version: version, What: what, PeerID: pid, Lease: lease, Locators: locs}, n, nil

	case idAccept:
		opener, n1, err := readPeerID(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		accepter, n1, err := readPeerID(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		lease, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		return Accept{OpenerPID: opener, AccepterPID: accepter, Lease: lease}, n, nil

	case idClose:
		var pid []byte
		if hasFlag(flags, flagPeerID) {
			p, n1, err := readPeerID(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			pid = p
			n += n1
		}
		if off+n >= len(buf) {
			return nil, 0, newDecodeError(off, fmt.Errorf("%w: truncated CLOSE reason", ErrDecode))
		}
		reason := buf[off+n]
		n++
		return Close{PeerID: pid, Reason: reason}, n, nil

	case idKeepAlive:
		var pid []byte
		if hasFlag(flags, flagPeerID) {
			p, n1, err := readPeerID(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			pid = p
			n += n1
		}
		return KeepAlive{PeerID: pid}, n, nil

	case idDeclare:
		sn, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		count, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		var decls []Declaration
		if count > 0 {
			decls = make([]Declaration, 0, count)
		}
		for i := uint64(0); i < count; i++ {
			d, n1, err := decodeDeclaration(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			decls = append(decls, d)
			n += n1
		}
		return Declare{SN: sn, Declarations: decls}, n, nil

	case idData:
		sn, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		key, n1, err := readReskey(buf, off+n, hasFlag(flags, flagCompactKey))
		if err != nil {
			return nil, 0, err
		}
		n += n1
		var info []byte
		if hasFlag(flags, flagInfo) {
			b, n1, err := readBytes(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			info = b
			n += n1
		}
		payload, n1, err := readBytes(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		return Data{Reliable: hasFlag(flags, flagReliable), SN: sn, Key: key, Info: info, Payload: payload}, n, nil

	case idPull:
		sn, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		key, n1, err := readReskey(buf, off+n, hasFlag(flags, flagCompactKey))
		if err != nil {
			return nil, 0, err
		}
		n += n1
		pullID, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		var maxSamples *uint64
		if hasFlag(flags, flagMaxSamples) {
			m, n1, err := readZint(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			maxSamples = &m
			n += n1
		}
		return Pull{Final: hasFlag(flags, flagPullFinal), SN: sn, Key: key, PullID: pullID, MaxSamples: maxSamples}, n, nil

	case idQuery:
		sn, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		key, n1, err := readReskey(buf, off+n, hasFlag(flags, flagCompactKey))
		if err != nil {
			return nil, 0, err
		}
		n += n1
		predicate, n1, err := readString(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		qid, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		var target *QueryTarget
		if hasFlag(flags, flagTarget) {
			t, n1, err := decodeQueryTarget(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			target = &t
			n += n1
		}
		if off+n >= len(buf) {
			return nil, 0, newDecodeError(off, fmt.Errorf("%w: truncated QUERY consolidation", ErrDecode))
		}
		consolidation := Consolidation(buf[off+n])
		if consolidation > ConsolidationIncremental {
			return nil, 0, newDecodeError(off, fmt.Errorf("%w: unknown consolidation %d", ErrDecode, consolidation))
		}
		n++
		return Query{SN: sn, Key: key, Predicate: predicate, QID: qid, Target: target, Consolidation: consolidation}, n, nil

	case idPingPong:
		hash, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		return PingPong{Hash: hash, Ping: hasFlag(flags, flagPeerID)}, n, nil

	case idSync:
		sn, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		var count *uint64
		if hasFlag(flags, flagSyncCount) {
			c, n1, err := readZint(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			count = &c
			n += n1
		}
		return Sync{Reliable: hasFlag(flags, flagReliable), SN: sn, Count: count}, n, nil

	case idAckNack:
		sn, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		var mask *uint64
		if hasFlag(flags, flagMask) {
			m, n1, err := readZint(buf, off+n)
			if err != nil {
				return nil, 0, err
			}
			mask = &m
			n += n1
		}
		return AckNack{SN: sn, Mask: mask}, n, nil

	default:
		return nil, 0, newDecodeError(off, fmt.Errorf("%w: unknown message id %d", ErrDecode, id))
	}
}

func decodeQueryTarget(buf []byte, off int) (QueryTarget, int, error) {
	storage, n1, err := decodeSourceTarget(buf, off)
	if err != nil {
		return QueryTarget{}, 0, err
	}
	evalT, n2, err := decodeSourceTarget(buf, off+n1)
	if err != nil {
		return QueryTarget{}, 0, err
	}
	return QueryTarget{Storage: storage, Eval: evalT}, n1 + n2, nil
}

func decodeSourceTarget(buf []byte, off int) (SourceTarget, int, error) {
	if off >= len(buf) {
		return SourceTarget{}, 0, newDecodeError(off, fmt.Errorf("%w: truncated target", ErrDecode))
	}
	kind := TargetKind(buf[off])
	if kind > TargetNone {
		return SourceTarget{}, 0, newDecodeError(off, fmt.Errorf("%w: unknown target kind %d", ErrDecode, kind))
	}
	n := 1
	var nn uint64
	if kind == TargetComplete {
		v, n1, err := readZint(buf, off+n)
		if err != nil {
			return SourceTarget{}, 0, err
		}
		nn = v
		n += n1
	}
	return SourceTarget{Kind: kind, N: nn}, n, nil
}

func decodeDeclaration(buf []byte, off int) (Declaration, int, error) {
	if off >= len(buf) {
		return nil, 0, newDecodeError(off, fmt.Errorf("%w: truncated declaration header", ErrDecode))
	}
	h := buf[off]
	id := headerID(h)
	flags := headerFlags(h)
	n := 1
	compact := hasFlag(flags, declFlagCompactKey)

	readKey := func() (ResKey, error) {
		k, n1, err := readReskey(buf, off+n, compact)
		if err != nil {
			return ResKey{}, err
		}
		n += n1
		return k, nil
	}

	switch id {
	case declResource:
		rid, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		return DeclResource{Rid: rid, Key: key}, n, nil

	case declForgetResource:
		rid, n1, err := readZint(buf, off+n)
		if err != nil {
			return nil, 0, err
		}
		n += n1
		return DeclForgetResource{Rid: rid}, n, nil

	case declSubscriber:
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		sub := SubInfo{Mode: SubModePush}
		if hasFlag(flags, declFlagSubInfo) {
			if off+n >= len(buf) {
				return nil, 0, newDecodeError(off, fmt.Errorf("%w: truncated sub mode", ErrDecode))
			}
			sub.Mode = SubMode(buf[off+n])
			if sub.Mode > SubModePeriodicPull {
				return nil, 0, newDecodeError(off, fmt.Errorf("%w: unknown sub mode %d", ErrDecode, sub.Mode))
			}
			n++
			if sub.Mode == SubModePeriodicPush || sub.Mode == SubModePeriodicPull {
				origin, n1, err := readZint(buf, off+n)
				if err != nil {
					return nil, 0, err
				}
				n += n1
				period, n1, err := readZint(buf, off+n)
				if err != nil {
					return nil, 0, err
				}
				n += n1
				duration, n1, err := readZint(buf, off+n)
				if err != nil {
					return nil, 0, err
				}
				n += n1
				sub.Period = &Period{Origin: origin, Period: period, Duration: duration}
			}
		}
		return DeclSubscriber{Key: key, Sub: sub}, n, nil

	case declForgetSubscriber:
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		return DeclForgetSubscriber{Key: key}, n, nil
	case declPublisher:
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		return DeclPublisher{Key: key}, n, nil
	case declForgetPublisher:
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		return DeclForgetPublisher{Key: key}, n, nil
	case declStorage:
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		return DeclStorage{Key: key}, n, nil
	case declForgetStorage:
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		return DeclForgetStorage{Key: key}, n, nil
	case declEval:
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		return DeclEval{Key: key}, n, nil
	case declForgetEval:
		key, err := readKey()
		if err != nil {
			return nil, 0, err
		}
		return DeclForgetEval{Key: key}, n, nil

	default:
		return nil, 0, newDecodeError(off, fmt.Errorf("%w: unknown declaration id %d", ErrDecode, id))
	}
}
