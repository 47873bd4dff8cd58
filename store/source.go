package store

import (
	"fmt"

	"raichain/primitives"
)

// GetSourceConsumer reports which account's RECEIVE or REWARD block has
// already consumed source, if any (spec §4.3 "source table", used by common
// validation to reject a second RECEIVE/REWARD against the same source and
// by ROLLBACK to know which receivable/rewardable entry to restore).
func (tx *Tx) GetSourceConsumer(source primitives.Hash) (primitives.Account, bool, error) {
	v := tx.bucket(bucketSource).Get(source[:])
	if v == nil {
		return primitives.Account{}, false, nil
	}
	if len(v) != 32 {
		return primitives.Account{}, false, fmt.Errorf("store: source record length %d, want 32", len(v))
	}
	var acc primitives.Account
	copy(acc[:], v)
	return acc, true, nil
}

// PutSourceConsumer marks source as consumed by consumer.
func (tx *Tx) PutSourceConsumer(source primitives.Hash, consumer primitives.Account) error {
	return tx.bucket(bucketSource).Put(source[:], consumer[:])
}

// DeleteSourceConsumer clears the consumption mark, e.g. on ROLLBACK of the
// RECEIVE/REWARD block that consumed it.
func (tx *Tx) DeleteSourceConsumer(source primitives.Hash) error {
	return tx.bucket(bucketSource).Delete(source[:])
}
