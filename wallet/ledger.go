package wallet

import (
	"sync"

	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/store"
)

// Ledger is the wallet's observe-only follower ledger (spec §4.7): it stores
// only the chains of accounts this wallet owns, applying the reduced rule
// set driven by server notifications rather than running full validation.
// It never elects and never originates a CONFIRM; it only trusts the
// server's.
type Ledger struct {
	db  *store.DB
	log *logrus.Logger

	mu      sync.Mutex
	tracked map[primitives.Account]struct{}
}

// NewLedger wraps db, a store opened on the wallet's own data file (spec §9
// "model as injected handles" — the wallet never shares the node's ledger
// store).
func NewLedger(db *store.DB, log *logrus.Logger) *Ledger {
	return &Ledger{db: db, log: log, tracked: make(map[primitives.Account]struct{})}
}

// Track registers account as one this wallet follows; blocks for untracked
// accounts are ignored by Apply.
func (l *Ledger) Track(account primitives.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracked[account] = struct{}{}
}

func (l *Ledger) isTracked(account primitives.Account) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tracked[account]
	return ok
}

// ApplyResult reports what Apply did with one incoming block, so callers
// (the notification loop) can log or surface it.
type ApplyResult int

const (
	ApplyIgnored ApplyResult = iota
	ApplyExtended
	ApplyConfirmedAdvance
	ApplyRolledBack
)

// Apply implements spec §4.7's three follower rules for one incoming block,
// optionally marked confirmed by the server:
//
//	(a) extend head if block.previous == stored head and block.height ==
//	    head_height + 1;
//	(b) if the block is older and already present, optionally advance
//	    confirmed_height;
//	(c) if a confirmed block conflicts with the local head, pop the local
//	    head into the rollback log and retry, up to genesis.
func (l *Ledger) Apply(b *block.Block, confirmed bool) (ApplyResult, error) {
	if !l.isTracked(b.Account) {
		return ApplyIgnored, nil
	}
	var result ApplyResult
	err := l.db.Update(func(tx *store.Tx) error {
		r, err := l.applyLocked(tx, b, confirmed)
		result = r
		return err
	})
	return result, err
}

func (l *Ledger) applyLocked(tx *store.Tx, b *block.Block, confirmed bool) (ApplyResult, error) {
	info, exists, err := tx.GetAccountInfo(b.Account)
	if err != nil {
		return ApplyIgnored, err
	}

	if !exists {
		if b.Height != 0 {
			return ApplyIgnored, nil // gap: genesis for this account hasn't arrived yet
		}
		return ApplyExtended, l.storeHead(tx, b, confirmed)
	}

	if b.Previous == info.Head && b.Height == info.Height+1 {
		return ApplyExtended, l.storeHead(tx, b, confirmed)
	}

	// Same height, same block: a re-sent notification for the block already
	// at the head. Advance ConfirmedHeight if this is the first confirmation
	// for it; otherwise nothing to do.
	if b.Height == info.Height && b.Hash() == info.Head {
		if confirmed && !info.ConfirmedValid {
			info.ConfirmedHeight = b.Height
			info.ConfirmedValid = true
			return ApplyConfirmedAdvance, tx.PutAccountInfo(b.Account, info)
		}
		return ApplyIgnored, nil
	}

	// Strictly older than the local head: only useful for backfilling
	// ConfirmedHeight against a block this ledger already holds.
	if b.Height < info.Height {
		_, present, err := tx.GetBlock(b.Hash())
		if err != nil {
			return ApplyIgnored, err
		}
		if present && confirmed && b.Height > info.ConfirmedHeight {
			info.ConfirmedHeight = b.Height
			info.ConfirmedValid = true
			return ApplyConfirmedAdvance, tx.PutAccountInfo(b.Account, info)
		}
		return ApplyIgnored, nil
	}

	// Same height as the local head but a different block, or strictly
	// ahead of it: a genuine fork. Only a confirmed block can override the
	// local (unconfirmed, possibly wrong) head.
	if confirmed {
		return l.resolveConflict(tx, b, info)
	}
	return ApplyIgnored, nil
}

func (l *Ledger) storeHead(tx *store.Tx, b *block.Block, confirmed bool) error {
	if err := tx.PutBlock(b); err != nil {
		return err
	}
	if b.Height > 0 {
		if err := tx.PutSuccessor(b.Previous, b.Hash()); err != nil {
			return err
		}
	}
	info := store.AccountInfo{
		Head:              b.Hash(),
		Height:            b.Height,
		Balance:           b.Balance,
		Representative:    b.Representative,
		ModifiedTimestamp: b.Timestamp,
		Counter:           b.Counter,
		ForksCount:        0,
	}
	if b.Height == 0 {
		info.TailHash = b.Hash()
		info.TailHeight = 0
	}
	if confirmed {
		info.ConfirmedHeight = b.Height
		info.ConfirmedValid = true
	}
	return tx.PutAccountInfo(b.Account, info)
}

// resolveConflict pops local heads one at a time into the rollback log,
// retrying toward genesis, until the stored head chains directly into the
// server's confirmed block or the account runs out of local history (spec
// §4.7 rule (c)). Each iteration checks for a direct link before popping,
// so a fork one block deep costs exactly one pop.
func (l *Ledger) resolveConflict(tx *store.Tx, confirmedBlock *block.Block, info store.AccountInfo) (ApplyResult, error) {
	for {
		if info.Head == confirmedBlock.Previous && confirmedBlock.Height == info.Height+1 {
			return ApplyExtended, l.storeHead(tx, confirmedBlock, true)
		}

		head, ok, err := tx.GetBlock(info.Head)
		if err != nil {
			return ApplyIgnored, err
		}
		if !ok {
			return ApplyRolledBack, tx.DeleteAccountInfo(confirmedBlock.Account)
		}
		if _, err := tx.AppendRollback(store.RollbackRecord{
			Account:   head.Account,
			Height:    head.Height,
			Hash:      head.Hash(),
			Timestamp: head.Timestamp,
		}); err != nil {
			return ApplyIgnored, err
		}
		if err := tx.DeleteBlock(head.Hash()); err != nil {
			return ApplyIgnored, err
		}
		if head.Height == 0 {
			return ApplyRolledBack, tx.DeleteAccountInfo(confirmedBlock.Account)
		}
		if err := tx.DeleteSuccessor(head.Previous); err != nil {
			return ApplyIgnored, err
		}
		prev, ok, err := tx.GetBlock(head.Previous)
		if err != nil {
			return ApplyIgnored, err
		}
		if !ok {
			return ApplyRolledBack, tx.DeleteAccountInfo(confirmedBlock.Account)
		}
		info = store.AccountInfo{
			Head:              prev.Hash(),
			Height:            prev.Height,
			Balance:           prev.Balance,
			Representative:    prev.Representative,
			ModifiedTimestamp: prev.Timestamp,
			Counter:           prev.Counter,
		}
		if err := tx.PutAccountInfo(confirmedBlock.Account, info); err != nil {
			return ApplyIgnored, err
		}
	}
}

// Head returns the account's locally known head, if any.
func (l *Ledger) Head(account primitives.Account) (store.AccountInfo, bool, error) {
	var info store.AccountInfo
	var ok bool
	err := l.db.View(func(tx *store.Tx) error {
		var err error
		info, ok, err = tx.GetAccountInfo(account)
		return err
	})
	return info, ok, err
}
