// Package store implements the bbolt-backed ledger tables the processor,
// election and bootstrap packages read and write (spec §4.3). It mirrors the
// teacher's keyed-bucket-with-typed-codec layout: one bucket per table, plain
// View/Update transactions, manual fixed-layout encode/decode per value type.
package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlocks          = []byte("block")
	bucketAccountInfo     = []byte("account_info")
	bucketSuccessor       = []byte("successor")
	bucketReceivable      = []byte("receivable")
	bucketRewardable      = []byte("rewardable")
	bucketFork            = []byte("fork")
	bucketRollback        = []byte("rollback")
	bucketRepWeight       = []byte("rep_weight")
	bucketRepWeightTotal  = []byte("rep_weight_total")
	bucketSource          = []byte("source")
	bucketWallet          = []byte("wallet")
	bucketWalletAccount   = []byte("wallet_account")
	bucketSelectedWallet  = []byte("selected_wallet")
	bucketUndo            = []byte("undo")
)

var allBuckets = [][]byte{
	bucketBlocks, bucketAccountInfo, bucketSuccessor, bucketReceivable,
	bucketRewardable, bucketFork, bucketRollback, bucketRepWeight,
	bucketRepWeightTotal, bucketSource, bucketWallet, bucketWalletAccount,
	bucketSelectedWallet, bucketUndo,
}

// repWeightTotalKey is the singleton key under bucketRepWeightTotal.
var repWeightTotalKey = []byte("total")

// selectedWalletKey is the singleton key under bucketSelectedWallet.
var selectedWalletKey = []byte("selected")

// DB wraps a bbolt database holding every ledger table named in spec §4.3.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if absent) the ledger store at path and ensures every
// table bucket exists.
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	d := &DB{bolt: bdb}
	if err := d.bolt.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("store: create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.bolt == nil {
		return nil
	}
	return d.bolt.Close()
}

// Tx is a ledger transaction, read-only or read-write depending on how it
// was opened. Every table accessor hangs off Tx so callers see a consistent
// snapshot across tables within one transaction (spec §4.3 "a transaction
// observes a consistent snapshot across tables").
type Tx struct {
	bolt *bolt.Tx
}

// View runs fn in a read-only transaction. Returning a non-nil error aborts
// the transaction; View itself never mutates the store.
func (d *DB) View(fn func(*Tx) error) error {
	return d.bolt.View(func(btx *bolt.Tx) error {
		return fn(&Tx{bolt: btx})
	})
}

// Update runs fn in a read-write transaction. Returning a non-nil error
// aborts and rolls back every write fn made (spec §4.3 "abort discards all
// writes made so far in the transaction").
func (d *DB) Update(fn func(*Tx) error) error {
	return d.bolt.Update(func(btx *bolt.Tx) error {
		return fn(&Tx{bolt: btx})
	})
}

func (tx *Tx) bucket(name []byte) *bolt.Bucket {
	b := tx.bolt.Bucket(name)
	if b == nil {
		panic(fmt.Sprintf("store: missing bucket %s (Open did not initialize it)", name))
	}
	return b
}
