package wallet

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/store"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "wallet.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewLedger(db, log)
}

func testAccount(b byte) primitives.Account {
	var a primitives.Account
	a[0] = b
	return a
}

func genesisBlock(account primitives.Account, balance uint64) *block.Block {
	return &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpReward,
		Credit:         1,
		Counter:        0,
		Timestamp:      1000,
		Height:         0,
		Account:        account,
		Representative: account,
		Balance:        primitives.NewAmountFromUint64(balance),
	}
}

func TestLedgerIgnoresUntrackedAccount(t *testing.T) {
	l := testLedger(t)
	account := testAccount(1)
	result, err := l.Apply(genesisBlock(account, 100), false)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result != ApplyIgnored {
		t.Fatalf("expected ApplyIgnored for untracked account, got %v", result)
	}
}

func TestLedgerExtendsHeadForGenesis(t *testing.T) {
	l := testLedger(t)
	account := testAccount(2)
	l.Track(account)

	g := genesisBlock(account, 100)
	result, err := l.Apply(g, false)
	if err != nil {
		t.Fatalf("Apply genesis: %v", err)
	}
	if result != ApplyExtended {
		t.Fatalf("expected ApplyExtended for genesis, got %v", result)
	}

	info, ok, err := l.Head(account)
	if err != nil || !ok {
		t.Fatalf("Head: ok=%v err=%v", ok, err)
	}
	if info.Head != g.Hash() || info.Height != 0 {
		t.Fatalf("unexpected head after genesis: %+v", info)
	}
}

func TestLedgerExtendsHeadSequentially(t *testing.T) {
	l := testLedger(t)
	account := testAccount(3)
	l.Track(account)

	g := genesisBlock(account, 100)
	if _, err := l.Apply(g, false); err != nil {
		t.Fatalf("Apply genesis: %v", err)
	}

	next := &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpChange,
		Credit:         1,
		Counter:        1,
		Timestamp:      2000,
		Height:         1,
		Account:        account,
		Previous:       g.Hash(),
		Representative: account,
		Balance:        primitives.NewAmountFromUint64(100),
	}
	result, err := l.Apply(next, true)
	if err != nil {
		t.Fatalf("Apply next: %v", err)
	}
	if result != ApplyExtended {
		t.Fatalf("expected ApplyExtended, got %v", result)
	}

	info, ok, err := l.Head(account)
	if err != nil || !ok {
		t.Fatalf("Head: ok=%v err=%v", ok, err)
	}
	if info.Head != next.Hash() || info.Height != 1 || !info.ConfirmedValid || info.ConfirmedHeight != 1 {
		t.Fatalf("unexpected head after extend: %+v", info)
	}
}

func TestLedgerConfirmedForkRollsBackLocalHead(t *testing.T) {
	l := testLedger(t)
	account := testAccount(4)
	l.Track(account)

	g := genesisBlock(account, 100)
	if _, err := l.Apply(g, false); err != nil {
		t.Fatalf("Apply genesis: %v", err)
	}

	localNext := &block.Block{
		Kind: block.KindTx, Opcode: block.OpChange, Credit: 1, Counter: 1,
		Timestamp: 2000, Height: 1, Account: account, Previous: g.Hash(),
		Representative: account, Balance: primitives.NewAmountFromUint64(100),
	}
	if _, err := l.Apply(localNext, false); err != nil {
		t.Fatalf("Apply localNext: %v", err)
	}

	confirmedNext := &block.Block{
		Kind: block.KindTx, Opcode: block.OpChange, Credit: 1, Counter: 1,
		Timestamp: 2001, Height: 1, Account: account, Previous: g.Hash(),
		Representative: testAccount(9), Balance: primitives.NewAmountFromUint64(100),
	}
	result, err := l.Apply(confirmedNext, true)
	if err != nil {
		t.Fatalf("Apply confirmedNext: %v", err)
	}
	if result != ApplyExtended {
		t.Fatalf("expected the local fork to be rolled back and the confirmed block applied, got %v", result)
	}

	info, ok, err := l.Head(account)
	if err != nil || !ok {
		t.Fatalf("Head: ok=%v err=%v", ok, err)
	}
	if info.Head != confirmedNext.Hash() || info.Representative != testAccount(9) {
		t.Fatalf("expected confirmed fork to win, got %+v", info)
	}
}
