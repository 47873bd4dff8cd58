package bootstrap

import (
	"encoding/binary"
	"fmt"
	"math"

	"raichain/block"
	"raichain/primitives"
)

// Mode selects which of the three pull kinds a Request asks for (spec §4.6).
type Mode uint8

const (
	ModeFull Mode = iota
	ModeLight
	ModeFork
)

func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeLight:
		return "light"
	case ModeFork:
		return "fork"
	default:
		return "unknown"
	}
}

// InvalidHeight is the sentinel height closing an account-head batch: a
// triple carrying it ends the stream, or, if it is the first triple in the
// batch, reports "fully finished" (spec §4.6 "a triple with height =
// INVALID_HEIGHT ends the stream").
const InvalidHeight = math.MaxUint64

// Request is the pull request message: mode, resumption cursor, and the
// batch size the client is willing to receive. A follow-up request with
// Max=0 is a pause/resume heartbeat (spec §4.6).
type Request struct {
	Mode          Mode
	CursorAccount primitives.Account
	CursorHeight  uint64
	Max           uint32
}

func encodeRequest(r Request) []byte {
	out := make([]byte, 0, 1+32+8+4)
	out = append(out, byte(r.Mode))
	out = append(out, r.CursorAccount[:]...)
	out = appendU64(out, r.CursorHeight)
	out = appendU32(out, r.Max)
	return out
}

func decodeRequest(b []byte) (Request, error) {
	const want = 1 + 32 + 8 + 4
	if len(b) != want {
		return Request{}, fmt.Errorf("bootstrap: request length %d, want %d", len(b), want)
	}
	var r Request
	r.Mode = Mode(b[0])
	copy(r.CursorAccount[:], b[1:33])
	r.CursorHeight = binary.BigEndian.Uint64(b[33:41])
	r.Max = binary.BigEndian.Uint32(b[41:45])
	return r, nil
}

// AccountEntry is one (account, head_hash, head_height) triple streamed in
// FULL or LIGHT mode (spec §4.6).
type AccountEntry struct {
	Account    primitives.Account
	HeadHash   primitives.Hash
	HeadHeight uint64
}

func encodeAccountEntry(e AccountEntry) []byte {
	out := make([]byte, 0, 32+32+8)
	out = append(out, e.Account[:]...)
	out = append(out, e.HeadHash[:]...)
	out = appendU64(out, e.HeadHeight)
	return out
}

func decodeAccountEntry(b []byte) (AccountEntry, error) {
	const want = 32 + 32 + 8
	if len(b) != want {
		return AccountEntry{}, fmt.Errorf("bootstrap: account entry length %d, want %d", len(b), want)
	}
	var e AccountEntry
	copy(e.Account[:], b[:32])
	copy(e.HeadHash[:], b[32:64])
	e.HeadHeight = binary.BigEndian.Uint64(b[64:72])
	return e, nil
}

var endOfAccountBatch = AccountEntry{HeadHeight: InvalidHeight}

// ForkPair is one length-prefixed (block, block) pair streamed in FORK mode
// (spec §4.6 "same invariants as §3 Fork record").
type ForkPair struct {
	A, B *block.Block
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}
