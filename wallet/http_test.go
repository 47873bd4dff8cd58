package wallet

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/store"
)

func testWallet(t *testing.T) *Wallet {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "wallet.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	log := logrus.New()
	log.SetOutput(io.Discard)
	now := func() uint64 { return uint64(time.Now().Unix()) }
	w, _, err := Create(db, log, now, []byte("test-password"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return w
}

func TestHandleNewAccountAndList(t *testing.T) {
	w := testWallet(t)
	router := Router(w)

	req := httptest.NewRequest(http.MethodPost, "/accounts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /accounts: status %d body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/accounts", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /accounts: status %d", rec.Code)
	}
	var accounts map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
}

func TestHandleBalanceUnknownIndex(t *testing.T) {
	w := testWallet(t)
	router := Router(w)

	req := httptest.NewRequest(http.MethodGet, "/accounts/7/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered index, got %d", rec.Code)
	}
}

func TestHandleBalanceZeroBeforeAnyBlock(t *testing.T) {
	w := testWallet(t)
	if _, _, err := w.NewAccount(); err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	router := Router(w)

	req := httptest.NewRequest(http.MethodGet, "/accounts/0/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET balance: status %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["balance"] != "0" {
		t.Fatalf("expected zero balance for an untouched account, got %q", body["balance"])
	}
}

func TestHandleSendRejectsUnknownAccount(t *testing.T) {
	w := testWallet(t)
	router := Router(w)

	var destAccount primitives.Account
	destAccount[0] = 0x1

	body, _ := json.Marshal(sendRequest{Index: 3, Destination: destAccount.Address(), Amount: "1"})
	req := httptest.NewRequest(http.MethodPost, "/send", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unregistered sender index, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleSendRejectsInsufficientBalance(t *testing.T) {
	w := testWallet(t)
	index, account, err := w.NewAccount()
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}

	genesis := &block.Block{
		Kind: block.KindTx, Opcode: block.OpReward, Credit: 5, Counter: 0,
		Timestamp: uint64(time.Now().Unix()), Height: 0, Account: account,
		Representative: account, Balance: primitives.NewAmountFromUint64(1),
	}
	if _, err := w.Ledger().Apply(genesis, true); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	router := Router(w)
	var dest primitives.Account
	dest[0] = 0x9
	body, _ := json.Marshal(sendRequest{Index: index, Destination: dest.Address(), Amount: "100"})
	req := httptest.NewRequest(http.MethodPost, "/send", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient balance, got %d body %s", rec.Code, rec.Body.String())
	}
}
