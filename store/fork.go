package store

import (
	"encoding/binary"
	"fmt"

	"raichain/primitives"
)

func forkKey(account primitives.Account, height uint64) []byte {
	key := make([]byte, 0, 40)
	key = append(key, account[:]...)
	key = appendU64(key, height)
	return key
}

// ForkSlot is the set of competing block hashes recorded for one
// (account, height) chain position (spec §4.4.7 "fork table").
type ForkSlot struct {
	Account primitives.Account
	Height  uint64
	Hashes  []primitives.Hash
}

func encodeForkSlot(hashes []primitives.Hash) []byte {
	out := make([]byte, 0, len(hashes)*32)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

func decodeForkSlot(b []byte) ([]primitives.Hash, error) {
	if len(b)%32 != 0 {
		return nil, fmt.Errorf("store: fork slot length %d not a multiple of 32", len(b))
	}
	n := len(b) / 32
	out := make([]primitives.Hash, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], b[i*32:(i+1)*32])
	}
	return out, nil
}

// GetForkSlot returns the recorded competing hashes at (account, height).
func (tx *Tx) GetForkSlot(account primitives.Account, height uint64) ([]primitives.Hash, error) {
	v := tx.bucket(bucketFork).Get(forkKey(account, height))
	if v == nil {
		return nil, nil
	}
	return decodeForkSlot(v)
}

// PutForkSlot overwrites the competing-hash set at (account, height).
func (tx *Tx) PutForkSlot(account primitives.Account, height uint64, hashes []primitives.Hash) error {
	return tx.bucket(bucketFork).Put(forkKey(account, height), encodeForkSlot(hashes))
}

// DeleteForkSlot removes a fork record entirely, e.g. once it resolves.
func (tx *Tx) DeleteForkSlot(account primitives.Account, height uint64) error {
	return tx.bucket(bucketFork).Delete(forkKey(account, height))
}

// CountForkSlots reports how many distinct (account, height) fork slots are
// currently recorded across all accounts.
func (tx *Tx) CountForkSlots() (int, error) {
	n := 0
	c := tx.bucket(bucketFork).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n, nil
}

// NextFork returns the first fork slot whose (account, height) key sorts
// strictly after (afterAccount, afterHeight) (spec §4.3 "next_fork" ordered
// iterator), used to walk every outstanding fork in key order, e.g. when
// serving a FORK-mode bootstrap pull.
func (tx *Tx) NextFork(afterAccount *primitives.Account, afterHeight uint64) (ForkSlot, bool, error) {
	c := tx.bucket(bucketFork).Cursor()
	var k, v []byte
	if afterAccount == nil {
		k, v = c.First()
	} else {
		seek := forkKey(*afterAccount, afterHeight)
		k, v = c.Seek(seek)
		if k != nil && string(k) == string(seek) {
			k, v = c.Next()
		}
	}
	if k == nil {
		return ForkSlot{}, false, nil
	}
	var slot ForkSlot
	copy(slot.Account[:], k[:32])
	slot.Height = binary.BigEndian.Uint64(k[32:40])
	hashes, err := decodeForkSlot(v)
	if err != nil {
		return ForkSlot{}, false, err
	}
	slot.Hashes = hashes
	return slot, true, nil
}

// HighestForkHeightForAccount reports the highest fork-slot height
// currently recorded for account, used to enforce spec §4.4.7's per-account
// fork cap ("replace the fork at the highest recorded height").
func (tx *Tx) HighestForkHeightForAccount(account primitives.Account) (height uint64, ok bool, err error) {
	c := tx.bucket(bucketFork).Cursor()
	prefix := account[:]
	best := uint64(0)
	found := false
	for k, _ := c.Seek(prefix); k != nil && len(k) >= 32 && string(k[:32]) == string(prefix); k, _ = c.Next() {
		h := binary.BigEndian.Uint64(k[32:40])
		if !found || h > best {
			best = h
			found = true
		}
	}
	return best, found, nil
}

// HighestForkHeight reports the account and height of the highest-height
// fork slot currently recorded across all accounts. The per-account cap in
// process.ProcessBlockFork uses HighestForkHeightForAccount instead.
func (tx *Tx) HighestForkHeight() (account primitives.Account, height uint64, ok bool, err error) {
	c := tx.bucket(bucketFork).Cursor()
	var bestKey []byte
	var bestHeight uint64
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		h := binary.BigEndian.Uint64(k[32:40])
		if bestKey == nil || h > bestHeight {
			bestKey = append([]byte(nil), k...)
			bestHeight = h
		}
	}
	if bestKey == nil {
		return primitives.Account{}, 0, false, nil
	}
	copy(account[:], bestKey[:32])
	return account, bestHeight, true, nil
}
