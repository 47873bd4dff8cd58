package store

import (
	"raichain/primitives"
)

// GetRepWeight reports the voting weight currently delegated to rep.
func (tx *Tx) GetRepWeight(rep primitives.Account) (primitives.Amount, error) {
	v := tx.bucket(bucketRepWeight).Get(rep[:])
	if v == nil {
		return primitives.ZeroAmount, nil
	}
	return primitives.NewAmountFromBigEndian(v)
}

// PutRepWeight sets rep's total delegated weight.
func (tx *Tx) PutRepWeight(rep primitives.Account, amount primitives.Amount) error {
	b := amount.Bytes16()
	return tx.bucket(bucketRepWeight).Put(rep[:], b[:])
}

// DeleteRepWeight removes a representative's weight entry (its delegated
// weight has dropped to zero and spec §4.3 does not require keeping
// zero-weight rows around).
func (tx *Tx) DeleteRepWeight(rep primitives.Account) error {
	return tx.bucket(bucketRepWeight).Delete(rep[:])
}

// EachRepWeight iterates every non-zero representative weight in key order.
func (tx *Tx) EachRepWeight(fn func(rep primitives.Account, amount primitives.Amount) error) error {
	c := tx.bucket(bucketRepWeight).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var rep primitives.Account
		copy(rep[:], k)
		amount, err := primitives.NewAmountFromBigEndian(v)
		if err != nil {
			return err
		}
		if err := fn(rep, amount); err != nil {
			return err
		}
	}
	return nil
}

// GetRepWeightTotal reports the sum of every representative's delegated
// weight, used as the quorum denominator (spec §4.5 "weighted quorum").
func (tx *Tx) GetRepWeightTotal() (primitives.Amount, error) {
	v := tx.bucket(bucketRepWeightTotal).Get(repWeightTotalKey)
	if v == nil {
		return primitives.ZeroAmount, nil
	}
	return primitives.NewAmountFromBigEndian(v)
}

// PutRepWeightTotal sets the cached total delegated weight.
func (tx *Tx) PutRepWeightTotal(amount primitives.Amount) error {
	b := amount.Bytes16()
	return tx.bucket(bucketRepWeightTotal).Put(repWeightTotalKey, b[:])
}
