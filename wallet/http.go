package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"raichain/primitives"
)

// Router builds the wallet's HTTP API (spec §4.8 domain-stack wiring: "wallet
// HTTP API + /metrics" on a chi router). It exposes read access to accounts
// and balances and a send endpoint; the caller mounts it under its own
// prefix alongside /metrics and /healthz.
func Router(w *Wallet) chi.Router {
	r := chi.NewRouter()
	r.Get("/accounts", w.handleListAccounts)
	r.Post("/accounts", w.handleNewAccount)
	r.Get("/accounts/{index}/balance", w.handleBalance)
	r.Post("/send", w.handleSend)
	return r
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, err error) {
	writeJSON(rw, status, map[string]string{"error": err.Error()})
}

func (w *Wallet) handleListAccounts(rw http.ResponseWriter, r *http.Request) {
	accounts, err := w.Accounts()
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	out := make(map[string]string, len(accounts))
	for index, account := range accounts {
		out[strconv.FormatUint(uint64(index), 10)] = account.Address()
	}
	writeJSON(rw, http.StatusOK, out)
}

func (w *Wallet) handleNewAccount(rw http.ResponseWriter, r *http.Request) {
	index, account, err := w.NewAccount()
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, http.StatusCreated, map[string]interface{}{
		"index":   index,
		"account": account.Address(),
	})
}

func (w *Wallet) handleBalance(rw http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 32)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	accounts, err := w.Accounts()
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	account, ok := accounts[uint32(index)]
	if !ok {
		writeError(rw, http.StatusNotFound, errAccountNotRegistered)
		return
	}
	info, ok, err := w.ledger.Head(account)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeJSON(rw, http.StatusOK, map[string]string{"balance": "0"})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"balance": info.Balance.String()})
}

type sendRequest struct {
	Index       uint32 `json:"index"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

func (w *Wallet) handleSend(rw http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	accounts, err := w.Accounts()
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	account, ok := accounts[req.Index]
	if !ok {
		writeError(rw, http.StatusNotFound, errAccountNotRegistered)
		return
	}
	destAccount, err := primitives.ParseAddress(req.Destination)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	amount, err := primitives.ParseAmountDecimal(req.Amount)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	priv, err := w.Key(req.Index)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	b, err := w.builder.BuildSend(priv, account, destAccount, amount, defaultTransactionsPerCredit)
	if err != nil {
		writeError(rw, http.StatusConflict, err)
		return
	}
	writeJSON(rw, http.StatusOK, b)
}

// defaultTransactionsPerCredit mirrors process.DefaultParams().TransactionsPerCredit;
// the wallet does not import package process to avoid a dependency on the
// full node's admit queue for a single constant.
const defaultTransactionsPerCredit = 20

var errAccountNotRegistered = errors.New("wallet: account index not registered")
