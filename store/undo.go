package store

import (
	"encoding/binary"
	"fmt"

	"raichain/primitives"
)

// Undo is the exact inverse of one APPEND's side effects, stashed at
// append time so ROLLBACK can restore prior state in a single lookup
// instead of recomputing it from chain data (grounded in the teacher
// pack's bbolt undo-record-by-block-hash pattern).
type Undo struct {
	HadAccount bool
	PrevInfo   AccountInfo // valid only if HadAccount

	RestorePending      bool
	PendingIsRewardable  bool
	PendingAccount       primitives.Account
	PendingSource        primitives.Hash
	PendingAmount        primitives.Amount
	// PendingTimestamp is the rewardable's accrual-window-close timestamp
	// (store.RewardableInfo.Timestamp); meaningful only when
	// PendingIsRewardable is true, so ROLLBACK restores a consumed
	// rewardable's maturity exactly rather than just its amount.
	PendingTimestamp uint64
}

func encodeUndo(u Undo) []byte {
	out := make([]byte, 0, 256)
	out = append(out, boolByte(u.HadAccount))
	out = append(out, encodeAccountInfo(u.PrevInfo)...)
	out = append(out, boolByte(u.RestorePending))
	out = append(out, boolByte(u.PendingIsRewardable))
	out = append(out, u.PendingAccount[:]...)
	out = append(out, u.PendingSource[:]...)
	bal := u.PendingAmount.Bytes16()
	out = append(out, bal[:]...)
	out = appendU64(out, u.PendingTimestamp)
	return out
}

func decodeUndo(b []byte) (Undo, error) {
	const accountInfoLen = 32 + 8 + 16 + 32 + 8 + 4 + 4 + 8 + 1 + 4 + 32 + 8
	const want = 1 + accountInfoLen + 1 + 1 + 32 + 32 + 16 + 8
	if len(b) != want {
		return Undo{}, fmt.Errorf("store: undo record length %d, want %d", len(b), want)
	}
	var u Undo
	off := 0
	u.HadAccount = b[off] != 0
	off++
	info, err := decodeAccountInfo(b[off : off+accountInfoLen])
	if err != nil {
		return Undo{}, err
	}
	u.PrevInfo = info
	off += accountInfoLen
	u.RestorePending = b[off] != 0
	off++
	u.PendingIsRewardable = b[off] != 0
	off++
	copy(u.PendingAccount[:], b[off:off+32])
	off += 32
	copy(u.PendingSource[:], b[off:off+32])
	off += 32
	amount, err := primitives.NewAmountFromBigEndian(b[off : off+16])
	if err != nil {
		return Undo{}, err
	}
	u.PendingAmount = amount
	off += 16
	u.PendingTimestamp = binary.BigEndian.Uint64(b[off : off+8])
	return u, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// PutUndo stores the undo record for the block keyed by hash.
func (tx *Tx) PutUndo(hash primitives.Hash, u Undo) error {
	return tx.bucket(bucketUndo).Put(hash[:], encodeUndo(u))
}

// GetUndo fetches the undo record for hash.
func (tx *Tx) GetUndo(hash primitives.Hash) (Undo, bool, error) {
	v := tx.bucket(bucketUndo).Get(hash[:])
	if v == nil {
		return Undo{}, false, nil
	}
	u, err := decodeUndo(v)
	return u, err == nil, err
}

// DeleteUndo removes the undo record once the block it describes has itself
// been rolled back. Confirming a block does not remove its undo record.
func (tx *Tx) DeleteUndo(hash primitives.Hash) error {
	return tx.bucket(bucketUndo).Delete(hash[:])
}
