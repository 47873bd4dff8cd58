package bootstrap

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"raichain/primitives"
	"raichain/store"
)

func TestLessAccountOrdering(t *testing.T) {
	var a, b primitives.Account
	a[0] = 1
	b[0] = 2
	if !lessAccount(a, b) {
		t.Fatalf("expected a < b")
	}
	if lessAccount(b, a) {
		t.Fatalf("expected b not < a")
	}
	if lessAccount(a, a) {
		t.Fatalf("expected a not < a")
	}
}

func TestApplyAccountHeadUnknownAccount(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	log := logrus.New()
	log.SetOutput(io.Discard)

	c := NewClient(nil, nil, nil, db, log, DefaultParams())
	var account primitives.Account
	account[0] = 5
	err = c.applyAccountHead(AccountEntry{Account: account, HeadHeight: 1})
	if err == nil {
		t.Fatalf("expected gap error for an account with no local info")
	}
}

func TestApplyAccountHeadMatchingLocal(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	log := logrus.New()
	log.SetOutput(io.Discard)

	var account primitives.Account
	account[0] = 6
	var head primitives.Hash
	head[0] = 0xAA
	if err := db.Update(func(tx *store.Tx) error {
		return tx.PutAccountInfo(account, store.AccountInfo{Head: head, Height: 3})
	}); err != nil {
		t.Fatalf("seed account info: %v", err)
	}

	c := NewClient(nil, nil, nil, db, log, DefaultParams())
	if err := c.applyAccountHead(AccountEntry{Account: account, HeadHash: head, HeadHeight: 3}); err != nil {
		t.Fatalf("applyAccountHead: %v", err)
	}
}
