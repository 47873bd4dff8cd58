package store

import (
	"encoding/binary"
	"fmt"

	"raichain/primitives"
)

// RollbackRecord is one audit entry for a ROLLBACK operation (spec §4.4.4):
// which block was removed, from which account/height, and when. The
// processor appends one per removed block so a later CONFIRM/ROLLBACK
// decision and bootstrap FORK pulls can be explained without re-deriving
// state from the chain itself.
type RollbackRecord struct {
	Account   primitives.Account
	Height    uint64
	Hash      primitives.Hash
	Timestamp uint64
}

func encodeRollbackRecord(r RollbackRecord) []byte {
	out := make([]byte, 0, 32+8+32+8)
	out = append(out, r.Account[:]...)
	out = appendU64(out, r.Height)
	out = append(out, r.Hash[:]...)
	out = appendU64(out, r.Timestamp)
	return out
}

func decodeRollbackRecord(b []byte) (RollbackRecord, error) {
	const want = 32 + 8 + 32 + 8
	if len(b) != want {
		return RollbackRecord{}, fmt.Errorf("store: rollback record length %d, want %d", len(b), want)
	}
	var r RollbackRecord
	off := 0
	copy(r.Account[:], b[off:off+32])
	off += 32
	r.Height = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	copy(r.Hash[:], b[off:off+32])
	off += 32
	r.Timestamp = binary.BigEndian.Uint64(b[off : off+8])
	return r, nil
}

// AppendRollback writes the next sequential rollback record and returns its
// sequence number.
func (tx *Tx) AppendRollback(r RollbackRecord) (uint64, error) {
	b := tx.bucket(bucketRollback)
	seq, err := b.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("store: rollback sequence: %w", err)
	}
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	if err := b.Put(key[:], encodeRollbackRecord(r)); err != nil {
		return 0, err
	}
	return seq, nil
}

// GetRollback fetches a rollback record by its sequence number.
func (tx *Tx) GetRollback(seq uint64) (RollbackRecord, bool, error) {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	v := tx.bucket(bucketRollback).Get(key[:])
	if v == nil {
		return RollbackRecord{}, false, nil
	}
	r, err := decodeRollbackRecord(v)
	return r, err == nil, err
}
