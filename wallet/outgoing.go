package wallet

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"raichain/block"
	"raichain/primitives"
	"raichain/store"
)

// maxClockSkewSeconds bounds how far into the future an outgoing block's
// timestamp may sit (spec §4.7 "timestamp ≤ now+60s").
const maxClockSkewSeconds = 60

// Builder constructs and signs outgoing blocks against this wallet's local
// view of an account's head, applying the same rules the processor would
// enforce (spec §4.7): counter sequencing, credit-bounded daily throughput,
// balance arithmetic and bounded timestamp. It does not check the account's
// fork count against its allowance.
type Builder struct {
	ledger *Ledger
	now    func() uint64
}

// NewBuilder wraps ledger. now defaults to the wall clock if nil.
func NewBuilder(ledger *Ledger, now func() uint64) *Builder {
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Builder{ledger: ledger, now: now}
}

// head resolves the account's current local head, or reports whether no
// chain exists yet.
func (bd *Builder) head(account primitives.Account) (store.AccountInfo, *block.Block, bool, error) {
	info, ok, err := bd.ledger.Head(account)
	if err != nil || !ok {
		return store.AccountInfo{}, nil, false, err
	}
	var headBlock *block.Block
	err = bd.ledger.db.View(func(tx *store.Tx) error {
		b, ok, err := tx.GetBlock(info.Head)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("wallet: head block %s missing from local store", info.Head)
		}
		headBlock = b
		return nil
	})
	return info, headBlock, true, err
}

// nextCounter applies the same day/credit-bounded counter rule process.checkCounter
// enforces (spec §4.4.2), so locally constructed blocks never get rejected
// on resubmission.
func nextCounter(headCounter uint32, headTimestamp, ts uint64, credit uint16, transactionsPerCredit uint32) (uint32, error) {
	sameDay := headTimestamp/86400 == ts/86400
	if !sameDay {
		return 1, nil
	}
	counter := headCounter + 1
	if uint32(credit)*transactionsPerCredit < counter {
		return 0, fmt.Errorf("wallet: account exceeded its daily transaction budget")
	}
	return counter, nil
}

// BuildSend constructs a signed SEND block moving amount from account to
// destination.
func (bd *Builder) BuildSend(priv ed25519.PrivateKey, account, destination primitives.Account, amount primitives.Amount, transactionsPerCredit uint32) (*block.Block, error) {
	info, head, ok, err := bd.head(account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("wallet: no local chain for account, cannot send")
	}
	newBalance, err := info.Balance.Sub(amount)
	if err != nil {
		return nil, fmt.Errorf("wallet: insufficient balance: %w", err)
	}
	ts := bd.now()
	counter, err := nextCounter(head.Counter, head.Timestamp, ts, head.Credit, transactionsPerCredit)
	if err != nil {
		return nil, err
	}
	b := &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpSend,
		Credit:         head.Credit,
		Counter:        counter,
		Timestamp:      ts,
		Height:         info.Height + 1,
		Account:        account,
		Previous:       info.Head,
		Representative: info.Representative,
		Balance:        newBalance,
		Link:           destination,
	}
	return bd.sign(priv, b)
}

// BuildReceive constructs a signed RECEIVE block crediting account with the
// send recorded at sourceHash for amount.
func (bd *Builder) BuildReceive(priv ed25519.PrivateKey, account primitives.Account, sourceHash primitives.Hash, amount primitives.Amount, transactionsPerCredit uint32) (*block.Block, error) {
	info, head, ok, err := bd.head(account)
	ts := bd.now()
	if !ok {
		if err != nil {
			return nil, err
		}
		b := &block.Block{
			Kind:           block.KindTx,
			Opcode:         block.OpReceive,
			Credit:         1,
			Counter:        1,
			Timestamp:      ts,
			Height:         0,
			Account:        account,
			Representative: account,
			Balance:        amount,
			Link:           primitives.Account(sourceHash),
		}
		return bd.sign(priv, b)
	}
	newBalance := info.Balance.Add(amount)
	counter, err := nextCounter(head.Counter, head.Timestamp, ts, head.Credit, transactionsPerCredit)
	if err != nil {
		return nil, err
	}
	b := &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpReceive,
		Credit:         head.Credit,
		Counter:        counter,
		Timestamp:      ts,
		Height:         info.Height + 1,
		Account:        account,
		Previous:       info.Head,
		Representative: info.Representative,
		Balance:        newBalance,
		Link:           primitives.Account(sourceHash),
	}
	return bd.sign(priv, b)
}

// BuildChange constructs a signed CHANGE block switching account's
// representative to newRep.
func (bd *Builder) BuildChange(priv ed25519.PrivateKey, account, newRep primitives.Account, transactionsPerCredit uint32) (*block.Block, error) {
	info, head, ok, err := bd.head(account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("wallet: no local chain for account, cannot change representative")
	}
	if newRep == info.Representative {
		return nil, fmt.Errorf("wallet: representative unchanged")
	}
	ts := bd.now()
	counter, err := nextCounter(head.Counter, head.Timestamp, ts, head.Credit, transactionsPerCredit)
	if err != nil {
		return nil, err
	}
	b := &block.Block{
		Kind:           block.KindTx,
		Opcode:         block.OpChange,
		Credit:         head.Credit,
		Counter:        counter,
		Timestamp:      ts,
		Height:         info.Height + 1,
		Account:        account,
		Previous:       info.Head,
		Representative: newRep,
		Balance:        info.Balance,
	}
	return bd.sign(priv, b)
}

func (bd *Builder) sign(priv ed25519.PrivateKey, b *block.Block) (*block.Block, error) {
	if b.Timestamp > bd.now()+maxClockSkewSeconds {
		return nil, fmt.Errorf("wallet: block timestamp exceeds allowed skew")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.Sign(priv)
	return b, nil
}
