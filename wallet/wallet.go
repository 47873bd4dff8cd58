package wallet

import (
	"crypto/ed25519"
	"fmt"

	"github.com/sirupsen/logrus"

	"raichain/primitives"
	"raichain/store"
)

// Wallet is one encrypted seed plus the accounts deterministically derived
// from it, backed by its own follower ledger (spec §4.7).
type Wallet struct {
	db      *store.DB
	ledger  *Ledger
	builder *Builder
	log     *logrus.Logger

	id   store.WalletID
	seed [32]byte
}

// idForSeed derives a wallet's storage key from the seed it wraps, so
// importing the same seed twice resolves to one record (store.WalletID doc
// comment).
func idForSeed(seed [32]byte) store.WalletID {
	return store.WalletID(primitives.BlakeHash256(seed[:]))
}

// Create generates a fresh seed, seals it under password, and registers it
// as db's selected wallet.
func Create(db *store.DB, log *logrus.Logger, now func() uint64, password []byte) (*Wallet, string, error) {
	phrase, seed, err := NewMnemonic()
	if err != nil {
		return nil, "", err
	}
	w, err := open(db, log, now, seed, password)
	if err != nil {
		return nil, "", err
	}
	return w, phrase, nil
}

// Import recovers a wallet from a recovery mnemonic.
func Import(db *store.DB, log *logrus.Logger, now func() uint64, phrase string, password []byte) (*Wallet, error) {
	seed, err := SeedFromMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	return open(db, log, now, seed, password)
}

// Open unseals an already-created wallet record by id.
func Open(db *store.DB, log *logrus.Logger, now func() uint64, id store.WalletID, password []byte) (*Wallet, error) {
	var blob []byte
	var ok bool
	err := db.View(func(tx *store.Tx) error {
		var err error
		blob, ok, err = tx.GetWalletBlob(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("wallet: no record for id %x", id)
	}
	seed, err := OpenSeed(blob, password)
	if err != nil {
		return nil, fmt.Errorf("wallet: wrong password or corrupt record: %w", err)
	}
	return newWallet(db, log, now, id, seed), nil
}

func open(db *store.DB, log *logrus.Logger, now func() uint64, seed [32]byte, password []byte) (*Wallet, error) {
	id := idForSeed(seed)
	blob, err := SealSeed(seed, password)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *store.Tx) error {
		if err := tx.PutWalletBlob(id, blob); err != nil {
			return err
		}
		return tx.SetSelectedWallet(id)
	}); err != nil {
		return nil, err
	}
	return newWallet(db, log, now, id, seed), nil
}

func newWallet(db *store.DB, log *logrus.Logger, now func() uint64, id store.WalletID, seed [32]byte) *Wallet {
	ledger := NewLedger(db, log)
	return &Wallet{
		db:      db,
		ledger:  ledger,
		builder: NewBuilder(ledger, now),
		log:     log,
		id:      id,
		seed:    seed,
	}
}

// NewAccount derives and registers the next sequential account under this
// wallet, returning its index and public address.
func (w *Wallet) NewAccount() (index uint32, account primitives.Account, err error) {
	err = w.db.Update(func(tx *store.Tx) error {
		accounts, err := tx.ListWalletAccounts(w.id)
		if err != nil {
			return err
		}
		index = uint32(len(accounts))
		for {
			if _, taken := accounts[index]; !taken {
				break
			}
			index++
		}
		account, err = AccountAt(w.seed, index)
		if err != nil {
			return err
		}
		if err := tx.PutWalletAccount(w.id, index, account); err != nil {
			return err
		}
		w.ledger.Track(account)
		return nil
	})
	return index, account, err
}

// ImportKey registers an ad-hoc private key under the reserved sentinel
// index (spec §4.7).
func (w *Wallet) ImportKey(priv ed25519.PrivateKey) (primitives.Account, error) {
	var account primitives.Account
	copy(account[:], priv.Public().(ed25519.PublicKey))
	return account, w.db.Update(func(tx *store.Tx) error {
		if err := tx.PutWalletAccount(w.id, ImportedKeyIndex, account); err != nil {
			return err
		}
		w.ledger.Track(account)
		return nil
	})
}

// Accounts returns every account registered under this wallet, by index.
func (w *Wallet) Accounts() (map[uint32]primitives.Account, error) {
	var out map[uint32]primitives.Account
	err := w.db.View(func(tx *store.Tx) error {
		var err error
		out, err = tx.ListWalletAccounts(w.id)
		return err
	})
	return out, err
}

// Key returns the private key for a registered index.
func (w *Wallet) Key(index uint32) (ed25519.PrivateKey, error) {
	if index == ImportedKeyIndex {
		return nil, fmt.Errorf("wallet: imported keys are not re-derivable from the seed")
	}
	return DeriveKey(w.seed, index)
}

// Ledger exposes the wallet's follower ledger for the notification loop.
func (w *Wallet) Ledger() *Ledger { return w.ledger }

// Builder exposes the wallet's outgoing-block constructor.
func (w *Wallet) Builder() *Builder { return w.builder }

// TrackAll begins following every account currently registered, called
// once at startup after Open/Create/Import.
func (w *Wallet) TrackAll() error {
	accounts, err := w.Accounts()
	if err != nil {
		return err
	}
	for _, account := range accounts {
		w.ledger.Track(account)
	}
	return nil
}
