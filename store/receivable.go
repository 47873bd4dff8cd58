package store

import (
	"bytes"
	"fmt"

	"raichain/primitives"
)

func pendingKey(account primitives.Account, source primitives.Hash) []byte {
	key := make([]byte, 0, 64)
	key = append(key, account[:]...)
	key = append(key, source[:]...)
	return key
}

// Pending is a receivable or rewardable credit waiting to be claimed by a
// RECEIVE or REWARD block (spec §4.3 "receivable table" / "rewardable
// table"): the amount a prior SEND or REWARD-source block made available to
// account, keyed by that source block's hash.
type Pending struct {
	Amount primitives.Amount
}

func encodePending(p Pending) []byte {
	b := p.Amount.Bytes16()
	return b[:]
}

func decodePending(b []byte) (Pending, error) {
	if len(b) != 16 {
		return Pending{}, fmt.Errorf("store: pending record length %d, want 16", len(b))
	}
	a, err := primitives.NewAmountFromBigEndian(b)
	if err != nil {
		return Pending{}, err
	}
	return Pending{Amount: a}, nil
}

// PutReceivable records that source made Amount receivable by account.
func (tx *Tx) PutReceivable(account primitives.Account, source primitives.Hash, p Pending) error {
	return tx.bucket(bucketReceivable).Put(pendingKey(account, source), encodePending(p))
}

// GetReceivable looks up a pending receivable credit.
func (tx *Tx) GetReceivable(account primitives.Account, source primitives.Hash) (Pending, bool, error) {
	v := tx.bucket(bucketReceivable).Get(pendingKey(account, source))
	if v == nil {
		return Pending{}, false, nil
	}
	p, err := decodePending(v)
	return p, err == nil, err
}

// DeleteReceivable removes a pending credit once its RECEIVE block lands, or
// when a ROLLBACK undoes the SEND that created it.
func (tx *Tx) DeleteReceivable(account primitives.Account, source primitives.Hash) error {
	return tx.bucket(bucketReceivable).Delete(pendingKey(account, source))
}

// RewardableInfo is a rewardable credit (spec §4.3 "rewardable table"): the
// amount a representative-carrying block's accrual window earned, plus the
// timestamp that closed that window (rai's RewardableInfo(account, amount,
// timestamp) constructor; confirmed via blockprocessor.cpp call sites that
// RewardAmount/RewardTimestamp are both functions of the two block
// timestamps bracketing the accrual, not of amount alone). Unlike a plain
// receivable, a rewardable's maturity is checked against this timestamp
// when the REWARD block consuming it lands.
type RewardableInfo struct {
	Amount    primitives.Amount
	Timestamp uint64
}

func encodeRewardableInfo(r RewardableInfo) []byte {
	out := make([]byte, 0, 24)
	b := r.Amount.Bytes16()
	out = append(out, b[:]...)
	var tsBuf [8]byte
	for i := 0; i < 8; i++ {
		tsBuf[7-i] = byte(r.Timestamp >> (8 * i))
	}
	return append(out, tsBuf[:]...)
}

func decodeRewardableInfo(b []byte) (RewardableInfo, error) {
	if len(b) != 24 {
		return RewardableInfo{}, fmt.Errorf("store: rewardable record length %d, want 24", len(b))
	}
	amount, err := primitives.NewAmountFromBigEndian(b[:16])
	if err != nil {
		return RewardableInfo{}, err
	}
	var ts uint64
	for i := 0; i < 8; i++ {
		ts = ts<<8 | uint64(b[16+i])
	}
	return RewardableInfo{Amount: amount, Timestamp: ts}, nil
}

// PutRewardable records that source made Amount rewardable by account, with
// its accrual window closing at r.Timestamp.
func (tx *Tx) PutRewardable(account primitives.Account, source primitives.Hash, r RewardableInfo) error {
	return tx.bucket(bucketRewardable).Put(pendingKey(account, source), encodeRewardableInfo(r))
}

// GetRewardable looks up a pending rewardable credit.
func (tx *Tx) GetRewardable(account primitives.Account, source primitives.Hash) (RewardableInfo, bool, error) {
	v := tx.bucket(bucketRewardable).Get(pendingKey(account, source))
	if v == nil {
		return RewardableInfo{}, false, nil
	}
	r, err := decodeRewardableInfo(v)
	return r, err == nil, err
}

// DeleteRewardable removes a pending reward credit.
func (tx *Tx) DeleteRewardable(account primitives.Account, source primitives.Hash) error {
	return tx.bucket(bucketRewardable).Delete(pendingKey(account, source))
}

// ListReceivable enumerates every pending receivable credit for account as
// a map keyed by source hash (map iteration order is not defined).
func (tx *Tx) ListReceivable(account primitives.Account) (map[primitives.Hash]Pending, error) {
	out := make(map[primitives.Hash]Pending)
	c := tx.bucket(bucketReceivable).Cursor()
	prefix := account[:]
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var h primitives.Hash
		copy(h[:], k[32:])
		p, err := decodePending(v)
		if err != nil {
			return nil, err
		}
		out[h] = p
	}
	return out, nil
}

// ListRewardable enumerates every pending rewardable credit for account.
func (tx *Tx) ListRewardable(account primitives.Account) (map[primitives.Hash]RewardableInfo, error) {
	out := make(map[primitives.Hash]RewardableInfo)
	c := tx.bucket(bucketRewardable).Cursor()
	prefix := account[:]
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var h primitives.Hash
		copy(h[:], k[32:])
		r, err := decodeRewardableInfo(v)
		if err != nil {
			return nil, err
		}
		out[h] = r
	}
	return out, nil
}
