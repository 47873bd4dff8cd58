package store

import (
	"path/filepath"
	"testing"

	"raichain/primitives"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func randomAccount() primitives.Account {
	var a primitives.Account
	a[0] = 1
	return a
}

func TestAccountInfoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	acc := randomAccount()
	info := AccountInfo{
		Height:            3,
		Balance:           primitives.NewAmountFromUint64(100),
		ModifiedTimestamp: 42,
		Counter:           3,
	}
	if err := db.Update(func(tx *Tx) error {
		return tx.PutAccountInfo(acc, info)
	}); err != nil {
		t.Fatalf("PutAccountInfo: %v", err)
	}
	if err := db.View(func(tx *Tx) error {
		got, ok, err := tx.GetAccountInfo(acc)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("expected account info to exist")
		}
		if got.Height != info.Height || got.Balance.Cmp(info.Balance) != 0 {
			t.Fatalf("mismatch: got %+v want %+v", got, info)
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestUpdateAbortsOnError(t *testing.T) {
	db := openTestDB(t)
	acc := randomAccount()
	boom := errFake("boom")
	err := db.Update(func(tx *Tx) error {
		if err := tx.PutAccountInfo(acc, AccountInfo{Height: 1}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := db.View(func(tx *Tx) error {
		_, ok, err := tx.GetAccountInfo(acc)
		if err != nil {
			return err
		}
		if ok {
			t.Fatalf("expected aborted write to not be visible")
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }

func TestReceivableListAndDelete(t *testing.T) {
	db := openTestDB(t)
	acc := randomAccount()
	var src1, src2 primitives.Hash
	src1[0], src2[0] = 1, 2

	if err := db.Update(func(tx *Tx) error {
		if err := tx.PutReceivable(acc, src1, Pending{Amount: primitives.NewAmountFromUint64(10)}); err != nil {
			return err
		}
		return tx.PutReceivable(acc, src2, Pending{Amount: primitives.NewAmountFromUint64(20)})
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := db.View(func(tx *Tx) error {
		list, err := tx.ListReceivable(acc)
		if err != nil {
			return err
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 receivables, got %d", len(list))
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}

	if err := db.Update(func(tx *Tx) error {
		return tx.DeleteReceivable(acc, src1)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := db.View(func(tx *Tx) error {
		list, err := tx.ListReceivable(acc)
		if err != nil {
			return err
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 receivable after delete, got %d", len(list))
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestForkSlotAndHighestHeight(t *testing.T) {
	db := openTestDB(t)
	acc := randomAccount()
	var h1, h2 primitives.Hash
	h1[0], h2[0] = 1, 2

	if err := db.Update(func(tx *Tx) error {
		if err := tx.PutForkSlot(acc, 5, []primitives.Hash{h1, h2}); err != nil {
			return err
		}
		return tx.PutForkSlot(acc, 9, []primitives.Hash{h1})
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := db.View(func(tx *Tx) error {
		_, height, ok, err := tx.HighestForkHeight()
		if err != nil {
			return err
		}
		if !ok || height != 9 {
			t.Fatalf("expected highest height 9, got %d (ok=%v)", height, ok)
		}
		hashes, err := tx.GetForkSlot(acc, 5)
		if err != nil {
			return err
		}
		if len(hashes) != 2 {
			t.Fatalf("expected 2 competing hashes, got %d", len(hashes))
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestRollbackLogSequencing(t *testing.T) {
	db := openTestDB(t)
	acc := randomAccount()
	var h primitives.Hash
	h[0] = 7

	var seq uint64
	if err := db.Update(func(tx *Tx) error {
		var err error
		seq, err = tx.AppendRollback(RollbackRecord{Account: acc, Height: 1, Hash: h, Timestamp: 100})
		return err
	}); err != nil {
		t.Fatalf("AppendRollback: %v", err)
	}

	if err := db.View(func(tx *Tx) error {
		rec, ok, err := tx.GetRollback(seq)
		if err != nil {
			return err
		}
		if !ok || rec.Height != 1 || rec.Timestamp != 100 {
			t.Fatalf("mismatch: %+v", rec)
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestRepWeightTotal(t *testing.T) {
	db := openTestDB(t)
	rep := randomAccount()
	if err := db.Update(func(tx *Tx) error {
		if err := tx.PutRepWeight(rep, primitives.NewAmountFromUint64(500)); err != nil {
			return err
		}
		return tx.PutRepWeightTotal(primitives.NewAmountFromUint64(500))
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := db.View(func(tx *Tx) error {
		w, err := tx.GetRepWeight(rep)
		if err != nil {
			return err
		}
		if w.Uint64() != 500 {
			t.Fatalf("expected weight 500, got %s", w)
		}
		total, err := tx.GetRepWeightTotal()
		if err != nil {
			return err
		}
		if total.Uint64() != 500 {
			t.Fatalf("expected total 500, got %s", total)
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestWalletAccountsAndSelection(t *testing.T) {
	db := openTestDB(t)
	var id WalletID
	id[0] = 9
	acc0 := randomAccount()

	if err := db.Update(func(tx *Tx) error {
		if err := tx.PutWalletBlob(id, []byte("ciphertext")); err != nil {
			return err
		}
		if err := tx.PutWalletAccount(id, 0, acc0); err != nil {
			return err
		}
		return tx.SetSelectedWallet(id)
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := db.View(func(tx *Tx) error {
		selected, ok, err := tx.GetSelectedWallet()
		if err != nil {
			return err
		}
		if !ok || selected != id {
			t.Fatalf("expected selected wallet %x, got %x (ok=%v)", id, selected, ok)
		}
		accounts, err := tx.ListWalletAccounts(id)
		if err != nil {
			return err
		}
		if len(accounts) != 1 || accounts[0] != acc0 {
			t.Fatalf("unexpected wallet accounts: %+v", accounts)
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}

	if err := db.Update(func(tx *Tx) error {
		return tx.DeleteWallet(id)
	}); err != nil {
		t.Fatalf("DeleteWallet: %v", err)
	}
	if err := db.View(func(tx *Tx) error {
		_, ok, err := tx.GetWalletBlob(id)
		if err != nil {
			return err
		}
		if ok {
			t.Fatalf("expected wallet blob to be gone after delete")
		}
		return nil
	}); err != nil {
		t.Fatalf("View: %v", err)
	}
}
