package store

import (
	"encoding/binary"
	"fmt"

	"raichain/primitives"
)

// AccountInfo is the per-account head pointer (spec §4.3 "account_info
// table"): the tip of the account's chain plus enough summary state that the
// processor does not need to walk the chain to validate the next block.
type AccountInfo struct {
	Head              primitives.Hash
	Height            uint64
	Balance           primitives.Amount
	Representative    primitives.Account
	ModifiedTimestamp uint64
	Counter           uint32
	// BindingCount tracks how many BIND entries the account has created,
	// enforced against opcode BIND's "count ≤ allowed(credit)" rule.
	BindingCount uint32
	// ConfirmedHeight is the highest height a quorum has finalized, or
	// nil-equivalent (0 with ConfirmedValid=false) before any CONFIRM.
	ConfirmedHeight uint64
	ConfirmedValid  bool
	// ForksCount is how many open fork slots this account currently has
	// recorded (spec §3 AccountInfo.forks_count, §4.4.7 cap policy).
	ForksCount uint32
	// Tail is the lowest locally-held height on this chain; it equals Head
	// at genesis and only moves below Height when PREPEND backfills blocks
	// a prior PRUNED range had discarded (spec §3 "tail ≤ head").
	TailHash   primitives.Hash
	TailHeight uint64
}

func encodeAccountInfo(a AccountInfo) []byte {
	out := make([]byte, 0, 32+8+16+32+8+4+4+8+1+4+32+8)
	out = append(out, a.Head[:]...)
	out = appendU64(out, a.Height)
	bal := a.Balance.Bytes16()
	out = append(out, bal[:]...)
	out = append(out, a.Representative[:]...)
	out = appendU64(out, a.ModifiedTimestamp)
	out = appendU32(out, a.Counter)
	out = appendU32(out, a.BindingCount)
	out = appendU64(out, a.ConfirmedHeight)
	if a.ConfirmedValid {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = appendU32(out, a.ForksCount)
	out = append(out, a.TailHash[:]...)
	out = appendU64(out, a.TailHeight)
	return out
}

func decodeAccountInfo(b []byte) (AccountInfo, error) {
	const want = 32 + 8 + 16 + 32 + 8 + 4 + 4 + 8 + 1 + 4 + 32 + 8
	if len(b) != want {
		return AccountInfo{}, fmt.Errorf("store: account_info record length %d, want %d", len(b), want)
	}
	var a AccountInfo
	off := 0
	copy(a.Head[:], b[off:off+32])
	off += 32
	a.Height = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	bal, err := primitives.NewAmountFromBigEndian(b[off : off+16])
	if err != nil {
		return AccountInfo{}, err
	}
	a.Balance = bal
	off += 16
	copy(a.Representative[:], b[off:off+32])
	off += 32
	a.ModifiedTimestamp = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	a.Counter = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	a.BindingCount = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	a.ConfirmedHeight = binary.BigEndian.Uint64(b[off : off+8])
	off += 8
	a.ConfirmedValid = b[off] != 0
	off += 1
	a.ForksCount = binary.BigEndian.Uint32(b[off : off+4])
	off += 4
	copy(a.TailHash[:], b[off:off+32])
	off += 32
	a.TailHeight = binary.BigEndian.Uint64(b[off : off+8])
	return a, nil
}

// GetAccountInfo reports the account's head record, if any.
func (tx *Tx) GetAccountInfo(account primitives.Account) (AccountInfo, bool, error) {
	v := tx.bucket(bucketAccountInfo).Get(account[:])
	if v == nil {
		return AccountInfo{}, false, nil
	}
	info, err := decodeAccountInfo(v)
	return info, err == nil, err
}

// PutAccountInfo writes or overwrites the account's head record.
func (tx *Tx) PutAccountInfo(account primitives.Account, info AccountInfo) error {
	return tx.bucket(bucketAccountInfo).Put(account[:], encodeAccountInfo(info))
}

// DeleteAccountInfo removes the account's head record entirely (used when a
// ROLLBACK removes an account's only block, spec §4.4.4).
func (tx *Tx) DeleteAccountInfo(account primitives.Account) error {
	return tx.bucket(bucketAccountInfo).Delete(account[:])
}

// NextAccountInfo returns the first account_info record whose key is
// strictly greater than after (spec §4.3 "next_account_info" ordered
// iterator), used by bootstrap FULL pulls to walk every account in key
// order. ok is false once iteration is exhausted.
func (tx *Tx) NextAccountInfo(after *primitives.Account) (account primitives.Account, info AccountInfo, ok bool, err error) {
	c := tx.bucket(bucketAccountInfo).Cursor()
	var k, v []byte
	if after == nil {
		k, v = c.First()
	} else {
		k, v = c.Seek(after[:])
		if k != nil && string(k) == string(after[:]) {
			k, v = c.Next()
		}
	}
	if k == nil {
		return primitives.Account{}, AccountInfo{}, false, nil
	}
	copy(account[:], k)
	info, err = decodeAccountInfo(v)
	if err != nil {
		return primitives.Account{}, AccountInfo{}, false, err
	}
	return account, info, true, nil
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
