package election

import (
	"crypto/ed25519"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/process"
	"raichain/raierr"
	"raichain/store"
)

type testKey struct {
	pub  primitives.Account
	priv ed25519.PrivateKey
}

func newTestKey(t *testing.T, seedByte byte) testKey {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = seedByte
	priv := ed25519.NewKeyFromSeed(seed)
	var acc primitives.Account
	copy(acc[:], priv.Public().(ed25519.PublicKey))
	return testKey{pub: acc, priv: priv}
}

func seedGenesisBlock(t *testing.T, k testKey, rep primitives.Account, ts uint64, balance uint64) *block.Block {
	t.Helper()
	b := &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpReward,
		Credit:         1,
		Counter:        0,
		Timestamp:      ts,
		Height:         0,
		Account:        k.pub,
		Previous:       primitives.ZeroHash,
		Representative: rep,
		Balance:        primitives.NewAmountFromUint64(balance),
	}
	b.Sign(k.priv)
	return b
}

func seedAccount(t *testing.T, db *store.DB, b *block.Block) {
	t.Helper()
	if err := db.Update(func(tx *store.Tx) error {
		if err := tx.PutBlock(b); err != nil {
			return err
		}
		info := store.AccountInfo{
			Head:              b.Hash(),
			Height:            b.Height,
			Balance:           b.Balance,
			Representative:    b.Representative,
			ModifiedTimestamp: b.Timestamp,
			Counter:           b.Counter,
			TailHash:          b.Hash(),
			TailHeight:        b.Height,
		}
		if err := tx.PutAccountInfo(b.Account, info); err != nil {
			return err
		}
		if b.Representative == primitives.ZeroAccount {
			return nil
		}
		if err := tx.PutRepWeight(b.Representative, b.Balance); err != nil {
			return err
		}
		total, err := tx.GetRepWeightTotal()
		if err != nil {
			return err
		}
		return tx.PutRepWeightTotal(total.Add(b.Balance))
	}); err != nil {
		t.Fatalf("seedAccount: %v", err)
	}
}

func sendBlock(t *testing.T, k testKey, prev *block.Block, ts uint64, newBalance uint64, dest primitives.Account) *block.Block {
	t.Helper()
	b := &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpSend,
		Credit:         prev.Credit,
		Counter:        prev.Counter + 1,
		Timestamp:      ts,
		Height:         prev.Height + 1,
		Account:        k.pub,
		Previous:       prev.Hash(),
		Representative: prev.Representative,
		Balance:        primitives.NewAmountFromUint64(newBalance),
	}
	copy(b.Link[:], dest[:])
	b.Sign(k.priv)
	return b
}

func testSetup(t *testing.T, now uint64) (*store.DB, *process.Processor, *logrus.Logger) {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	clock := process.Clock(func() uint64 { return now })
	proc := process.New(db, log, clock, process.DefaultParams())
	return db, proc, log
}

func testElectionParams() Params {
	return Params{
		QualifiedRepWeight:       primitives.NewAmountFromUint64(1000),
		QuorumFactor:             0.67,
		Workers:                  2,
		TimeoutSeconds:           300,
		ReconfirmIntervalSeconds: 10,
	}
}

func TestElectionAddVoteConflictAndRateControl(t *testing.T) {
	alice := newTestKey(t, 1)
	rep := newTestKey(t, 5)

	genesis := seedGenesisBlockRaw(alice, alice.pub, 1000, 100)
	a := sendBlockRaw(alice, genesis, 1001, 40, newTestKey(t, 2).pub)
	b := sendBlockRaw(alice, genesis, 1001, 30, newTestKey(t, 3).pub)

	e := newElection(a, b, 1000)
	weight := primitives.NewAmountFromUint64(100)

	v1 := Vote{Representative: rep.pub, BlockHash: a.Hash(), Timestamp: 1000}
	if c := e.AddVote(v1, weight, 10); c != nil {
		t.Fatalf("expected no conflict on first vote, got %+v", c)
	}
	if got := e.tally[a.Hash()]; got.Uint64() != 100 {
		t.Fatalf("expected tally[a]=100, got %s", got)
	}

	// Switching position before the reconfirmation interval elapses is a
	// rate violation: the conflict is retained but the weight stays put.
	v2 := Vote{Representative: rep.pub, BlockHash: b.Hash(), Timestamp: 1005}
	c2 := e.AddVote(v2, weight, 10)
	if c2 == nil || !c2.RateViolation {
		t.Fatalf("expected a rate-violating conflict, got %+v", c2)
	}
	if got := e.tally[a.Hash()]; got.Uint64() != 100 {
		t.Fatalf("expected tally[a] unchanged at 100, got %s", got)
	}
	if got := e.tally[b.Hash()]; got.Uint64() != 0 {
		t.Fatalf("expected tally[b] untouched, got %s", got)
	}

	// Switching again once the interval has elapsed moves the weight.
	v3 := Vote{Representative: rep.pub, BlockHash: b.Hash(), Timestamp: 1010}
	c3 := e.AddVote(v3, weight, 10)
	if c3 == nil || c3.RateViolation {
		t.Fatalf("expected an on-time conflict, got %+v", c3)
	}
	if got := e.tally[a.Hash()]; got.Uint64() != 0 {
		t.Fatalf("expected tally[a]=0 after switch, got %s", got)
	}
	if got := e.tally[b.Hash()]; got.Uint64() != 100 {
		t.Fatalf("expected tally[b]=100 after switch, got %s", got)
	}
}

func TestElectionWinnerCrossesThreshold(t *testing.T) {
	alice := newTestKey(t, 1)
	genesis := seedGenesisBlockRaw(alice, alice.pub, 1000, 100)
	a := sendBlockRaw(alice, genesis, 1001, 40, newTestKey(t, 2).pub)
	b := sendBlockRaw(alice, genesis, 1001, 30, newTestKey(t, 3).pub)

	e := newElection(a, b, 1000)
	params := testElectionParams()
	threshold := params.quorumThreshold()

	repA := newTestKey(t, 11)
	repB := newTestKey(t, 12)

	e.AddVote(Vote{Representative: repA.pub, BlockHash: b.Hash(), Timestamp: 2000}, primitives.NewAmountFromUint64(400), 10)
	if _, done := e.Winner(threshold); done {
		t.Fatalf("expected no winner yet")
	}
	e.AddVote(Vote{Representative: repB.pub, BlockHash: b.Hash(), Timestamp: 2000}, primitives.NewAmountFromUint64(300), 10)
	winner, done := e.Winner(threshold)
	if !done || winner.Hash() != b.Hash() {
		t.Fatalf("expected b to win once weight crosses threshold, done=%v", done)
	}
}

func TestManagerResolvesDisplacingForkAndGCsRecord(t *testing.T) {
	db, proc, log := testSetup(t, 2000)
	alice := newTestKey(t, 1)
	dest1 := newTestKey(t, 2)
	dest2 := newTestKey(t, 3)
	dest3 := newTestKey(t, 4)

	genesis := seedGenesisBlock(t, alice, alice.pub, 1000, 100)
	seedAccount(t, db, genesis)

	b1 := sendBlock(t, alice, genesis, 1001, 40, dest1.pub)
	if res := proc.Append(b1); res.Code != raierr.OK {
		t.Fatalf("append b1: %v", res.Code)
	}
	b2 := sendBlock(t, alice, genesis, 1001, 30, dest2.pub)

	m := New(db, proc, log, Clock(func() uint64 { return 2000 }), testElectionParams())
	defer m.Close()

	if res := proc.ProcessBlockFork(b1, b2); res.Code != raierr.OK {
		t.Fatalf("process_block_fork: %v", res.Code)
	}
	// Simulate the queued OnFork job having already been drained.
	m.handleStart(b1, b2)

	repA := newTestKey(t, 21)
	repB := newTestKey(t, 22)
	if err := db.Update(func(tx *store.Tx) error {
		if err := tx.PutRepWeight(repA.pub, primitives.NewAmountFromUint64(400)); err != nil {
			return err
		}
		if err := tx.PutRepWeight(repB.pub, primitives.NewAmountFromUint64(300)); err != nil {
			return err
		}
		return nil
	}); err != nil {
		t.Fatalf("seed rep weights: %v", err)
	}

	key := electionKey{account: alice.pub, height: 1}
	m.handleVote(key, SignVote(repA.pub, repA.priv, b2.Hash(), 2000))
	if err := db.View(func(tx *store.Tx) error {
		info, _, err := tx.GetAccountInfo(alice.pub)
		if err != nil {
			return err
		}
		if info.Head != b1.Hash() {
			t.Fatalf("expected b1 still head before quorum, got %s", info.Head)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	m.handleVote(key, SignVote(repB.pub, repB.priv, b2.Hash(), 2000))

	if err := db.View(func(tx *store.Tx) error {
		info, ok, err := tx.GetAccountInfo(alice.pub)
		if err != nil {
			return err
		}
		if !ok || info.Head != b2.Hash() || info.Balance.Uint64() != 30 {
			t.Fatalf("expected b2 to have displaced b1, got ok=%v info=%+v", ok, info)
		}
		if !info.ConfirmedValid || info.ConfirmedHeight != 1 {
			t.Fatalf("expected winner to be confirmed, got %+v", info)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	m.mu.Lock()
	_, stillActive := m.elections[key]
	m.mu.Unlock()
	if stillActive {
		t.Fatalf("expected election to be retired after resolving")
	}

	// The fork slot is retained until the account's head advances past it.
	if err := db.View(func(tx *store.Tx) error {
		hashes, err := tx.GetForkSlot(alice.pub, 1)
		if err != nil {
			return err
		}
		if len(hashes) == 0 {
			t.Fatalf("expected fork slot to persist immediately after resolution")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}

	b3 := sendBlock(t, alice, b2, 1002, 20, dest3.pub)
	if res := proc.Append(b3); res.Code != raierr.OK {
		t.Fatalf("append b3: %v", res.Code)
	}
	m.handleTick()

	if err := db.View(func(tx *store.Tx) error {
		hashes, err := tx.GetForkSlot(alice.pub, 1)
		if err != nil {
			return err
		}
		if len(hashes) != 0 {
			t.Fatalf("expected fork slot to be GC'd once the head moved past it")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

// seedGenesisBlockRaw and sendBlockRaw build blocks without requiring *testing.T,
// for unit tests that exercise Election directly.
func seedGenesisBlockRaw(k testKey, rep primitives.Account, ts uint64, balance uint64) *block.Block {
	b := &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpReward,
		Credit:         1,
		Counter:        0,
		Timestamp:      ts,
		Height:         0,
		Account:        k.pub,
		Previous:       primitives.ZeroHash,
		Representative: rep,
		Balance:        primitives.NewAmountFromUint64(balance),
	}
	b.Sign(k.priv)
	return b
}

func sendBlockRaw(k testKey, prev *block.Block, ts uint64, newBalance uint64, dest primitives.Account) *block.Block {
	b := &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpSend,
		Credit:         prev.Credit,
		Counter:        prev.Counter + 1,
		Timestamp:      ts,
		Height:         prev.Height + 1,
		Account:        k.pub,
		Previous:       prev.Hash(),
		Representative: prev.Representative,
		Balance:        primitives.NewAmountFromUint64(newBalance),
	}
	copy(b.Link[:], dest[:])
	b.Sign(k.priv)
	return b
}
