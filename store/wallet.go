package store

import (
	"bytes"
	"fmt"

	"raichain/primitives"
)

// WalletID identifies a wallet's encrypted seed record. The wallet package
// derives it from the seed's public identity so importing the same seed
// twice reuses one record instead of creating a duplicate.
type WalletID [32]byte

// PutWalletBlob stores a wallet's opaque encrypted-seed record (spec §4.7
// "AES-CTR encrypted seed storage with a memory-hard KDF"); the store layer
// treats the blob as opaque bytes, the wallet package owns its internal
// layout (salt, KDF params, IV, ciphertext).
func (tx *Tx) PutWalletBlob(id WalletID, blob []byte) error {
	return tx.bucket(bucketWallet).Put(id[:], blob)
}

// GetWalletBlob fetches a wallet's encrypted-seed record.
func (tx *Tx) GetWalletBlob(id WalletID) ([]byte, bool, error) {
	v := tx.bucket(bucketWallet).Get(id[:])
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// DeleteWallet removes a wallet's encrypted-seed record and every derived
// account it had registered.
func (tx *Tx) DeleteWallet(id WalletID) error {
	if err := tx.bucket(bucketWallet).Delete(id[:]); err != nil {
		return err
	}
	c := tx.bucket(bucketWalletAccount).Cursor()
	prefix := id[:]
	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := tx.bucket(bucketWalletAccount).Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func walletAccountKey(id WalletID, index uint32) []byte {
	key := make([]byte, 0, 36)
	key = append(key, id[:]...)
	key = appendU32(key, index)
	return key
}

// PutWalletAccount registers the account deterministically derived at index
// under wallet id.
func (tx *Tx) PutWalletAccount(id WalletID, index uint32, account primitives.Account) error {
	return tx.bucket(bucketWalletAccount).Put(walletAccountKey(id, index), account[:])
}

// GetWalletAccount fetches the account registered at index under wallet id.
func (tx *Tx) GetWalletAccount(id WalletID, index uint32) (primitives.Account, bool, error) {
	v := tx.bucket(bucketWalletAccount).Get(walletAccountKey(id, index))
	if v == nil {
		return primitives.Account{}, false, nil
	}
	if len(v) != 32 {
		return primitives.Account{}, false, fmt.Errorf("store: wallet_account record length %d, want 32", len(v))
	}
	var acc primitives.Account
	copy(acc[:], v)
	return acc, true, nil
}

// ListWalletAccounts returns every (index, account) pair registered under
// wallet id as a map keyed by index (map iteration order is not defined).
func (tx *Tx) ListWalletAccounts(id WalletID) (map[uint32]primitives.Account, error) {
	out := make(map[uint32]primitives.Account)
	c := tx.bucket(bucketWalletAccount).Cursor()
	prefix := id[:]
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		index := beUint32(k[32:36])
		var acc primitives.Account
		copy(acc[:], v)
		out[index] = acc
	}
	return out, nil
}

// GetSelectedWallet reports the wallet id marked active, spec §4.7 "at most
// one selected wallet at a time".
func (tx *Tx) GetSelectedWallet() (WalletID, bool, error) {
	v := tx.bucket(bucketSelectedWallet).Get(selectedWalletKey)
	if v == nil {
		return WalletID{}, false, nil
	}
	if len(v) != 32 {
		return WalletID{}, false, fmt.Errorf("store: selected_wallet record length %d, want 32", len(v))
	}
	var id WalletID
	copy(id[:], v)
	return id, true, nil
}

// SetSelectedWallet marks id as the active wallet.
func (tx *Tx) SetSelectedWallet(id WalletID) error {
	return tx.bucket(bucketSelectedWallet).Put(selectedWalletKey, id[:])
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
