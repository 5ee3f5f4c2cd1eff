package kelp

import "fmt"

// EncodeMessage appends the wire form of msg to buf and returns the grown
// slice. Decorators are written in the fixed order fragment, conduit,
// reply, properties, matching the order decode.go expects them back in.
func EncodeMessage(buf []byte, msg *Message) ([]byte, error) {
	if msg.Fragment != nil {
		buf = encodeFragment(buf, msg.Fragment)
	}
	if msg.ConduitID != nil {
		buf = encodeConduit(buf, *msg.ConduitID)
	}
	if msg.Reply != nil {
		buf = encodeReplyContext(buf, msg.Reply)
	}
	if len(msg.Properties) > 0 {
		buf = encodeProperties(buf, msg.Properties)
	}
	return encodeBody(buf, msg.Body)
}

func encodeFragment(buf []byte, f *Fragment) []byte {
	var flags byte
	switch f.Kind {
	case FragmentFirst:
		flags |= flagFragFirst
		if f.Count != nil {
			flags |= flagFragCount
		}
	case FragmentLast:
		flags |= flagFragLast
	}
	buf = append(buf, header(idFragment, flags))
	if f.Kind == FragmentFirst && f.Count != nil {
		buf = writeZint(buf, *f.Count)
	}
	return buf
}

func encodeConduit(buf []byte, id uint64) []byte {
	if id < 4 {
		return append(buf, header(idConduit, flagConduitInline|byte(id)<<(flagShift+1)))
	}
	buf = append(buf, header(idConduit, 0))
	return writeZint(buf, id)
}

func encodeReplyContext(buf []byte, r *ReplyContext) []byte {
	var flags byte
	if r.Final {
		flags |= flagReplyFinal
	}
	if r.Source == ReplySourceEval {
		flags |= flagReplyEval
	}
	buf = append(buf, header(idReply, flags))
	buf = writeZint(buf, r.QID)
	if !r.Final {
		buf = writePeerID(buf, r.ReplierID)
	}
	return buf
}

func encodeProperties(buf []byte, props []Property) []byte {
	buf = append(buf, header(idProperties, 0))
	buf = writeZint(buf, uint64(len(props)))
	for _, p := range props {
		buf = writeZint(buf, p.Key)
		buf = writeBytes(buf, p.Value)
	}
	return buf
}

func encodeBody(buf []byte, body Body) ([]byte, error) {
	switch m := body.(type) {
	case Scout:
		flags := byte(0)
		if m.What != nil {
			flags |= flagWhat
		}
		buf = append(buf, header(idScout, flags))
		if m.What != nil {
			buf = writeZint(buf, uint64(*m.What))
		}
		return buf, nil

	case Hello:
		var flags byte
		if m.What != nil {
			flags |= flagWhat
		}
		if len(m.Locators) > 0 {
			flags |= flagLocators
		}
		buf = append(buf, header(idHello, flags))
		if m.What != nil {
			buf = writeZint(buf, uint64(*m.What))
		}
		if len(m.Locators) > 0 {
			buf = writeStringList(buf, m.Locators)
		}
		return buf, nil

	case Open:
		var flags byte
		if m.What != nil {
			flags |= flagWhat
		}
		if len(m.Locators) > 0 {
			flags |= flagLocators
		}
		buf = append(buf, header(idOpen, flags))
		buf = append(buf, m.Version)
		buf = writePeerID(buf, m.PeerID)
		buf = writeZint(buf, m.Lease)
		if m.What != nil {
			buf = writeZint(buf, uint64(*m.What))
		}
		if len(m.Locators) > 0 {
			buf = writeStringList(buf, m.Locators)
		}
		return buf, nil

	case Accept:
		buf = append(buf, header(idAccept, 0))
		buf = writePeerID(buf, m.OpenerPID)
		buf = writePeerID(buf, m.AccepterPID)
		buf = writeZint(buf, m.Lease)
		return buf, nil

	case Close:
		var flags byte
		if m.PeerID != nil {
			flags |= flagPeerID
		}
		buf = append(buf, header(idClose, flags))
		if m.PeerID != nil {
			buf = writePeerID(buf, m.PeerID)
		}
		buf = append(buf, m.Reason)
		return buf, nil

	case KeepAlive:
		var flags byte
		if m.PeerID != nil {
			flags |= flagPeerID
		}
		buf = append(buf, header(idKeepAlive, flags))
		if m.PeerID != nil {
			buf = writePeerID(buf, m.PeerID)
		}
		return buf, nil

	case Declare:
		buf = append(buf, header(idDeclare, 0))
		buf = writeZint(buf, m.SN)
		buf = writeZint(buf, uint64(len(m.Declarations)))
		for _, d := range m.Declarations {
			var err error
			buf, err = encodeDeclaration(buf, d)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil

	case Data:
		var flags byte
		if m.Reliable {
			flags |= flagReliable
		}
		if len(m.Info) > 0 {
			flags |= flagInfo
		}
		keyBuf, compact := writeReskey(nil, m.Key)
		if compact {
			flags |= flagCompactKey
		}
		buf = append(buf, header(idData, flags))
		buf = writeZint(buf, m.SN)
		buf = append(buf, keyBuf...)
		if len(m.Info) > 0 {
			buf = writeBytes(buf, m.Info)
		}
		buf = writeBytes(buf, m.Payload)
		return buf, nil

	case Pull:
		var flags byte
		if m.Final {
			flags |= flagPullFinal
		}
		if m.MaxSamples != nil {
			flags |= flagMaxSamples
		}
		keyBuf, compact := writeReskey(nil, m.Key)
		if compact {
			flags |= flagCompactKey
		}
		buf = append(buf, header(idPull, flags))
		buf = writeZint(buf, m.SN)
		buf = append(buf, keyBuf...)
		buf = writeZint(buf, m.PullID)
		if m.MaxSamples != nil {
			buf = writeZint(buf, *m.MaxSamples)
		}
		return buf, nil

	case Query:
		var flags byte
		if m.Target != nil {
			flags |= flagTarget
		}
		keyBuf, compact := writeReskey(nil, m.Key)
		if compact {
			flags |= flagCompactKey
		}
		buf = append(buf, header(idQuery, flags))
		buf = writeZint(buf, m.SN)
		buf = append(buf, keyBuf...)
		buf = writeString(buf, m.Predicate)
		buf = writeZint(buf, m.QID)
		if m.Target != nil {
			buf = encodeQueryTarget(buf, *m.Target)
		}
		buf = append(buf, byte(m.Consolidation))
		return buf, nil

	case PingPong:
		var flags byte
		if m.Ping {
			flags |= flagPeerID
		}
		buf = append(buf, header(idPingPong, flags))
		buf = writeZint(buf, m.Hash)
		return buf, nil

	case Sync:
		var flags byte
		if m.Reliable {
			flags |= flagReliable
		}
		if m.Count != nil {
			flags |= flagSyncCount
		}
		buf = append(buf, header(idSync, flags))
		buf = writeZint(buf, m.SN)
		if m.Count != nil {
			buf = writeZint(buf, *m.Count)
		}
		return buf, nil

	case AckNack:
		var flags byte
		if m.Mask != nil {
			flags |= flagMask
		}
		buf = append(buf, header(idAckNack, flags))
		buf = writeZint(buf, m.SN)
		if m.Mask != nil {
			buf = writeZint(buf, *m.Mask)
		}
		return buf, nil

	default:
		return nil, fmt.Errorf("kelp: unknown message body %T", body)
	}
}

func encodeQueryTarget(buf []byte, t QueryTarget) []byte {
	buf = encodeSourceTarget(buf, t.Storage)
	return encodeSourceTarget(buf, t.Eval)
}

func encodeSourceTarget(buf []byte, t SourceTarget) []byte {
	buf = append(buf, byte(t.Kind))
	if t.Kind == TargetComplete {
		buf = writeZint(buf, t.N)
	}
	return buf
}

func encodeDeclaration(buf []byte, d Declaration) ([]byte, error) {
	switch v := d.(type) {
	case DeclResource:
		keyBuf, compact := writeReskey(nil, v.Key)
		var flags byte
		if compact {
			flags |= declFlagCompactKey
		}
		buf = append(buf, header(declResource, flags))
		buf = writeZint(buf, v.Rid)
		buf = append(buf, keyBuf...)
		return buf, nil

	case DeclForgetResource:
		buf = append(buf, header(declForgetResource, 0))
		return writeZint(buf, v.Rid), nil

	case DeclSubscriber:
		keyBuf, compact := writeReskey(nil, v.Key)
		flags := byte(0)
		if compact {
			flags |= declFlagCompactKey
		}
		if v.Sub.Mode != SubModePush {
			flags |= declFlagSubInfo
		}
		buf = append(buf, header(declSubscriber, flags))
		buf = append(buf, keyBuf...)
		if v.Sub.Mode != SubModePush {
			buf = append(buf, byte(v.Sub.Mode))
			if v.Sub.Period != nil {
				buf = writeZint(buf, v.Sub.Period.Origin)
				buf = writeZint(buf, v.Sub.Period.Period)
				buf = writeZint(buf, v.Sub.Period.Duration)
			}
		}
		return buf, nil

	case DeclForgetSubscriber:
		buf = encodeKeyedDecl(buf, declForgetSubscriber, v.Key)
		return buf, nil
	case DeclPublisher:
		buf = encodeKeyedDecl(buf, declPublisher, v.Key)
		return buf, nil
	case DeclForgetPublisher:
		buf = encodeKeyedDecl(buf, declForgetPublisher, v.Key)
		return buf, nil
	case DeclStorage:
		buf = encodeKeyedDecl(buf, declStorage, v.Key)
		return buf, nil
	case DeclForgetStorage:
		buf = encodeKeyedDecl(buf, declForgetStorage, v.Key)
		return buf, nil
	case DeclEval:
		buf = encodeKeyedDecl(buf, declEval, v.Key)
		return buf, nil
	case DeclForgetEval:
		buf = encodeKeyedDecl(buf, declForgetEval, v.Key)
		return buf, nil

	default:
		return nil, fmt.Errorf("kelp: unknown declaration %T", d)
	}
}

func encodeKeyedDecl(buf []byte, id byte, key ResKey) []byte {
	keyBuf, compact := writeReskey(nil, key)
	var flags byte
	if compact {
		flags |= declFlagCompactKey
	}
	buf = append(buf, header(id, flags))
	return append(buf, keyBuf...)
}
