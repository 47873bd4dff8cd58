package wallet

import (
	"crypto/ed25519"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/store"
)

func testBuilder(t *testing.T, now uint64) (*Builder, *Ledger) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "wallet.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	log := logrus.New()
	log.SetOutput(io.Discard)
	ledger := NewLedger(db, log)
	return NewBuilder(ledger, func() uint64 { return now }), ledger
}

func testKeyPair(t *testing.T, b byte) (ed25519.PrivateKey, primitives.Account) {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = b
	priv := ed25519.NewKeyFromSeed(seed)
	var acc primitives.Account
	copy(acc[:], priv.Public().(ed25519.PublicKey))
	return priv, acc
}

func TestBuildReceiveFirstBlock(t *testing.T) {
	bd, _ := testBuilder(t, 1000)
	priv, account := testKeyPair(t, 7)

	b, err := bd.BuildReceive(priv, account, primitives.Hash{0xAB}, primitives.NewAmountFromUint64(50), 20)
	if err != nil {
		t.Fatalf("BuildReceive: %v", err)
	}
	if b.Height != 0 {
		t.Fatalf("expected first block at height 0, got %d", b.Height)
	}
	if b.Representative != account {
		t.Fatalf("expected self as representative on first block")
	}
	if b.Balance.Cmp(primitives.NewAmountFromUint64(50)) != 0 {
		t.Fatalf("unexpected balance %v", b.Balance)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBuildSendRequiresExistingChain(t *testing.T) {
	bd, _ := testBuilder(t, 1000)
	priv, account := testKeyPair(t, 8)
	_, destination := testKeyPair(t, 9)

	_, err := bd.BuildSend(priv, account, destination, primitives.NewAmountFromUint64(10), 20)
	if err == nil {
		t.Fatalf("expected BuildSend to fail for an account with no chain")
	}
}

func TestBuildSendDeductsBalance(t *testing.T) {
	bd, ledger := testBuilder(t, 2000)
	priv, account := testKeyPair(t, 10)
	_, destination := testKeyPair(t, 11)

	genesis := &block.Block{
		Kind: block.KindTx, Opcode: block.OpReward, Credit: 5, Counter: 0,
		Timestamp: 1000, Height: 0, Account: account, Representative: account,
		Balance: primitives.NewAmountFromUint64(100),
	}
	ledger.Track(account)
	if _, err := ledger.Apply(genesis, true); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	b, err := bd.BuildSend(priv, account, destination, primitives.NewAmountFromUint64(40), 20)
	if err != nil {
		t.Fatalf("BuildSend: %v", err)
	}
	if b.Balance.Cmp(primitives.NewAmountFromUint64(60)) != 0 {
		t.Fatalf("expected remaining balance 60, got %v", b.Balance)
	}
	if b.Height != 1 || b.Previous != genesis.Hash() {
		t.Fatalf("unexpected chain position: height=%d previous=%s", b.Height, b.Previous)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestBuildSendRejectsInsufficientBalance(t *testing.T) {
	bd, ledger := testBuilder(t, 2000)
	priv, account := testKeyPair(t, 12)
	_, destination := testKeyPair(t, 13)

	genesis := &block.Block{
		Kind: block.KindTx, Opcode: block.OpReward, Credit: 5, Counter: 0,
		Timestamp: 1000, Height: 0, Account: account, Representative: account,
		Balance: primitives.NewAmountFromUint64(10),
	}
	ledger.Track(account)
	if _, err := ledger.Apply(genesis, true); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	if _, err := bd.BuildSend(priv, account, destination, primitives.NewAmountFromUint64(100), 20); err == nil {
		t.Fatalf("expected insufficient balance error")
	}
}

func TestBuildChangeRejectsNoOpRepresentative(t *testing.T) {
	bd, ledger := testBuilder(t, 2000)
	priv, account := testKeyPair(t, 14)

	genesis := &block.Block{
		Kind: block.KindTx, Opcode: block.OpReward, Credit: 5, Counter: 0,
		Timestamp: 1000, Height: 0, Account: account, Representative: account,
		Balance: primitives.NewAmountFromUint64(10),
	}
	ledger.Track(account)
	if _, err := ledger.Apply(genesis, true); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	if _, err := bd.BuildChange(priv, account, account, 20); err == nil {
		t.Fatalf("expected error when new representative equals current representative")
	}
}

func TestNextCounterResetsEachDay(t *testing.T) {
	c, err := nextCounter(5, 1000, 1000+86400, 2, 10)
	if err != nil {
		t.Fatalf("nextCounter: %v", err)
	}
	if c != 1 {
		t.Fatalf("expected counter reset to 1 on a new day, got %d", c)
	}
}

func TestNextCounterEnforcesCreditBudget(t *testing.T) {
	_, err := nextCounter(20, 1000, 1000, 2, 10)
	if err == nil {
		t.Fatalf("expected credit budget to be enforced within the same day")
	}
}
