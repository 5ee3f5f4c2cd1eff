package kelp

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kelp-mesh/kelp/internal/bytesconv"
)

// This file holds the cursored wire primitives shared by every message
// encoder/decoder in encode.go/decode.go: each writeX appends to buf and
// returns the grown slice, each readX takes the buffer and a byte offset
// and returns the decoded value, the number of bytes consumed, and an
// error wrapping ErrDecode on malformed input.

func writeBytes(buf []byte, b []byte) []byte {
	buf = writeZint(buf, uint64(len(b)))
	return append(buf, b...)
}

func readBytes(buf []byte, off int) (out []byte, n int, err error) {
	l, n1, err := readZint(buf, off)
	if err != nil {
		return nil, 0, err
	}
	start := off + n1
	end := start + int(l)
	if end < start || end > len(buf) {
		return nil, 0, newDecodeError(off, fmt.Errorf("%w: byte slice out of bounds", ErrDecode))
	}
	// Copy rather than alias: buf may be a reused read buffer.
	out = make([]byte, l)
	copy(out, buf[start:end])
	return out, n1 + int(l), nil
}

func writeString(buf []byte, s string) []byte {
	buf = writeZint(buf, uint64(len(s)))
	return append(buf, s...)
}

func readString(buf []byte, off int) (out string, n int, err error) {
	l, n1, err := readZint(buf, off)
	if err != nil {
		return "", 0, err
	}
	start := off + n1
	end := start + int(l)
	if end < start || end > len(buf) {
		return "", 0, newDecodeError(off, fmt.Errorf("%w: string out of bounds", ErrDecode))
	}
	// Decoded strings are read-only views into buf, which callers don't
	// mutate after a successful decode, so the unsafe zero-copy
	// conversion is sound here.
	return bytesconv.String(buf[start:end]), n1 + int(l), nil
}

func writeStringList(buf []byte, ss []string) []byte {
	buf = writeZint(buf, uint64(len(ss)))
	for _, s := range ss {
		buf = writeString(buf, s)
	}
	return buf
}

func readStringList(buf []byte, off int) (out []string, n int, err error) {
	count, n1, err := readZint(buf, off)
	if err != nil {
		return nil, 0, err
	}
	total := n1
	if count > 0 {
		out = make([]string, 0, count)
	}
	for i := uint64(0); i < count; i++ {
		s, n2, err := readString(buf, off+total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
		total += n2
	}
	return out, total, nil
}

// maxPeerIDLen is spec.md's bound on peer id length; readPeerID enforces
// it on decode so a malformed or adversarial frame cannot smuggle an
// oversized id into OPEN/ACCEPT/CLOSE/KEEP_ALIVE/REPLY state.
const maxPeerIDLen = 16

// writePeerID writes a peer id as a length-prefixed byte string; callers
// are expected to pass ids within maxPeerIDLen, enforced on the decode
// side by readPeerID.
func writePeerID(buf []byte, id []byte) []byte { return writeBytes(buf, id) }

func readPeerID(buf []byte, off int) (id []byte, n int, err error) {
	id, n, err = readBytes(buf, off)
	if err != nil {
		return nil, 0, err
	}
	if len(id) > maxPeerIDLen {
		return nil, 0, newDecodeError(off, fmt.Errorf("%w: peer id of %d bytes exceeds %d byte limit", ErrDecode, len(id), maxPeerIDLen))
	}
	return id, n, nil
}

// writeTimestamp encodes the logical clock half as a zint followed by the
// 16-byte UUID half verbatim.
func writeTimestamp(buf []byte, tm uint64, id uuid.UUID) []byte {
	buf = writeZint(buf, tm)
	return append(buf, id[:]...)
}

func readTimestamp(buf []byte, off int) (tm uint64, id uuid.UUID, n int, err error) {
	tm, n1, err := readZint(buf, off)
	if err != nil {
		return 0, uuid.UUID{}, 0, err
	}
	start := off + n1
	end := start + len(id)
	if end > len(buf) {
		return 0, uuid.UUID{}, 0, newDecodeError(off, fmt.Errorf("%w: timestamp uuid out of bounds", ErrDecode))
	}
	copy(id[:], buf[start:end])
	return tm, id, n1 + len(id), nil
}

// writeReskey writes a ResKey's id and, unless the key is compact (empty
// suffix), its suffix string. It reports whether the compact form (id
// only) was used, so the caller can set the corresponding header flag.
func writeReskey(buf []byte, k ResKey) (out []byte, compact bool) {
	buf = writeZint(buf, k.ID)
	if k.isCompact() {
		return buf, true
	}
	return writeString(buf, k.Suffix), false
}

func readReskey(buf []byte, off int, compact bool) (k ResKey, n int, err error) {
	id, n1, err := readZint(buf, off)
	if err != nil {
		return ResKey{}, 0, err
	}
	if compact {
		return ResKey{ID: id}, n1, nil
	}
	suffix, n2, err := readString(buf, off+n1)
	if err != nil {
		return ResKey{}, 0, err
	}
	return ResKey{ID: id, Suffix: suffix}, n1 + n2, nil
}
