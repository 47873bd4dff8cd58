package process

import (
	"raichain/block"
	"raichain/primitives"
	"raichain/raierr"
	"raichain/store"
)

// Result is the outcome of a forced or admitted processor operation: either
// raierr.OK with the (possibly mutated) block, or a business-result code
// from spec §4.4.2/§4.4.3/§4.4.4 that is not itself a Go error — callers
// branch on Code the same way a Nano node branches on process_result.
type Result struct {
	Code  raierr.Code
	Block *block.Block
}

func ok(b *block.Block) *Result  { return &Result{Code: raierr.OK, Block: b} }
func fail(code raierr.Code) *Result { return &Result{Code: code} }

// Append runs common validation and the per-opcode rule for b, and on
// success commits the block plus every side effect spec §4.4.2 requires.
// It corresponds to the APPEND forced operation and to draining one entry
// from the admit queue.
func (p *Processor) Append(b *block.Block) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.appendNoLock(b)
}

// appendNoLock is Append's body without acquiring Processor.mu, for callers
// that already hold it — CONFIRM's dynamic stack pushes an APPEND dependency
// while still inside its own locked call (spec §4.4.6).
func (p *Processor) appendNoLock(b *block.Block) *Result {
	if err := b.Validate(); err != nil {
		return fail(raierr.UnknownBlockType)
	}
	if !b.VerifySignature() {
		return fail(raierr.BadSignature)
	}

	now := p.clock()
	if b.Timestamp > now+p.params.BoundedSkewSeconds {
		return fail(raierr.BadTimestamp)
	}

	var result *Result
	err := p.db.Update(func(tx *store.Tx) error {
		r, txErr := p.appendLocked(tx, b, now)
		if txErr != nil {
			return txErr
		}
		result = r
		if r.Code != raierr.OK {
			return errAbortBusinessResult
		}
		return nil
	})
	if err != nil && err != errAbortBusinessResult {
		p.log.WithError(err).Error("process: append transaction failed")
		result = fail(raierr.Unexpected)
	}
	if result.Code == raierr.OK {
		p.releaseGapsFor(result.Block.Hash())
	}
	p.notify(OpAppend, b, result.Code)
	return result
}

// errAbortBusinessResult is returned from inside a store.Update closure to
// force a rollback of the transaction for a business-result (not a true
// error): the write must not be visible, but the Result is still returned
// to the caller.
var errAbortBusinessResult = &sentinelErr{"process: business result, transaction aborted"}

type sentinelErr struct{ msg string }

func (e *sentinelErr) Error() string { return e.msg }

func (p *Processor) appendLocked(tx *store.Tx, b *block.Block, now uint64) (*Result, error) {
	hash := b.Hash()
	if _, exists, err := tx.GetBlock(hash); err != nil {
		return nil, err
	} else if exists {
		return fail(raierr.Exists), nil
	}

	info, exists, err := tx.GetAccountInfo(b.Account)
	if err != nil {
		return nil, err
	}

	if exists {
		if res, err := p.validateExtension(tx, b, info, now); err != nil || res.Code != raierr.OK {
			return res, err
		}
	} else {
		if res := p.validateGenesis(b); res.Code != raierr.OK {
			return res, nil
		}
	}

	res, consumed, err := p.applyOpcode(tx, b, info, exists, now)
	if err != nil || res.Code != raierr.OK {
		return res, err
	}

	if err := p.commitAppend(tx, b, info, exists, consumed); err != nil {
		return nil, err
	}
	return ok(b), nil
}

// validateExtension implements spec §4.4.2 step 5, common validation when
// the account already exists.
func (p *Processor) validateExtension(tx *store.Tx, b *block.Block, info store.AccountInfo, now uint64) (*Result, error) {
	head, exists, err := tx.GetBlock(info.Head)
	if err != nil {
		return nil, err
	}
	if !exists {
		return fail(raierr.LedgerInconsistent), nil
	}
	if b.Height != info.Height+1 {
		if b.Height < info.TailHeight {
			return fail(raierr.Pruned), nil
		}
		if b.Height <= info.Height {
			return fail(raierr.Fork), nil
		}
		return fail(raierr.GapPrevious), nil
	}
	if b.Previous != info.Head {
		return fail(raierr.GapPrevious), nil
	}
	if b.Kind != head.Kind {
		return fail(raierr.UnknownBlockType), nil
	}
	if b.Timestamp < head.Timestamp {
		return fail(raierr.BadTimestamp), nil
	}
	if code := p.checkCounter(b, head); code != raierr.OK {
		return fail(code), nil
	}
	if code := p.checkRepresentative(b, info.Representative); code != raierr.OK {
		return fail(code), nil
	}
	return ok(nil), nil
}

// validateGenesis implements spec §4.4.2 step 6.
func (p *Processor) validateGenesis(b *block.Block) *Result {
	if b.Height != 0 {
		return fail(raierr.GapPrevious)
	}
	if b.Previous != primitives.ZeroHash {
		return fail(raierr.GapPrevious)
	}
	wantCounter, ok := block.FirstBlockCounter(b.Opcode)
	if !ok {
		return fail(raierr.Counter)
	}
	if b.Counter != wantCounter {
		return fail(raierr.Counter)
	}
	return &Result{Code: raierr.OK}
}

// checkCounter implements spec §4.4.2 "Counter rule".
func (p *Processor) checkCounter(b *block.Block, head *block.Block) raierr.Code {
	sameDay := dayOf(b.Timestamp) == dayOf(head.Timestamp)
	if sameDay {
		if b.Counter != head.Counter+1 {
			return raierr.Counter
		}
		if uint32(b.Credit)*p.params.TransactionsPerCredit < b.Counter {
			return raierr.AccountExceedTransactions
		}
		return raierr.OK
	}
	if b.Opcode == block.OpReward {
		if b.Counter != head.Counter {
			return raierr.Counter
		}
		return raierr.OK
	}
	if b.Counter != 1 {
		return raierr.Counter
	}
	return raierr.OK
}

// checkRepresentative implements spec §4.4.2 "Representative rule".
func (p *Processor) checkRepresentative(b *block.Block, headRep primitives.Account) raierr.Code {
	if !b.Kind.HasRepresentative() {
		return raierr.OK
	}
	if b.Opcode == block.OpChange {
		if b.Representative == headRep {
			return raierr.BadRepresentative
		}
		return raierr.OK
	}
	if b.Representative != headRep {
		return raierr.BadRepresentative
	}
	return raierr.OK
}

// commitAppend performs spec §4.4.2's post-success side effects (i)-(iv) and
// stashes an Undo record so a later ROLLBACK can restore exactly what this
// APPEND changed without recomputing it from chain data.
func (p *Processor) commitAppend(tx *store.Tx, b *block.Block, prevInfo store.AccountInfo, hadAccount bool, consumed *consumedPending) error {
	hash := b.Hash()
	if err := tx.PutBlock(b); err != nil {
		return err
	}

	undo := store.Undo{HadAccount: hadAccount, PrevInfo: prevInfo}
	if consumed != nil {
		undo.RestorePending = true
		undo.PendingIsRewardable = consumed.IsRewardable
		undo.PendingAccount = consumed.Account
		undo.PendingSource = consumed.Source
		undo.PendingAmount = consumed.Amount
		undo.PendingTimestamp = consumed.Timestamp
	}
	if err := tx.PutUndo(hash, undo); err != nil {
		return err
	}
	if hadAccount {
		if err := tx.PutSuccessor(b.Previous, hash); err != nil {
			return err
		}
	}

	newInfo := store.AccountInfo{
		Head:              hash,
		Height:            b.Height,
		Balance:           b.Balance,
		ModifiedTimestamp: b.Timestamp,
		Counter:           b.Counter,
		BindingCount:      prevInfo.BindingCount,
		ConfirmedHeight:   prevInfo.ConfirmedHeight,
		ConfirmedValid:    prevInfo.ConfirmedValid,
		ForksCount:        prevInfo.ForksCount,
		TailHash:          prevInfo.TailHash,
		TailHeight:        prevInfo.TailHeight,
	}
	if !hadAccount {
		newInfo.TailHash = hash
		newInfo.TailHeight = 0
	}
	if b.Opcode == block.OpBind {
		newInfo.BindingCount++
	}
	if b.Kind.HasRepresentative() {
		newInfo.Representative = b.Representative
	} else {
		newInfo.Representative = prevInfo.Representative
	}
	if err := tx.PutAccountInfo(b.Account, newInfo); err != nil {
		return err
	}

	if b.Kind.HasRepresentative() {
		if err := p.adjustRepWeight(tx, prevInfo.Representative, prevInfo.Balance, false, hadAccount); err != nil {
			return err
		}
		if err := p.adjustRepWeight(tx, b.Representative, b.Balance, true, true); err != nil {
			return err
		}
		if hadAccount && prevInfo.Representative != primitives.ZeroAccount {
			if err := p.maybeCreateRewardable(tx, prevInfo, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// adjustRepWeight adds (add=true) or removes (add=false) amount from rep's
// delegated weight and keeps rep_weight_total in sync. present distinguishes
// "no prior representative to subtract from" (a brand new account) from a
// genuine zero-balance adjustment.
func (p *Processor) adjustRepWeight(tx *store.Tx, rep primitives.Account, amount primitives.Amount, add bool, present bool) error {
	if !present || amount.IsZero() {
		return nil
	}
	w, err := tx.GetRepWeight(rep)
	if err != nil {
		return err
	}
	total, err := tx.GetRepWeightTotal()
	if err != nil {
		return err
	}
	if add {
		w = w.Add(amount)
		total = total.Add(amount)
	} else {
		nw, err := w.Sub(amount)
		if err != nil {
			return raierr.Wrap(raierr.LedgerInconsistent, "rep weight underflow", err)
		}
		w = nw
		nt, err := total.Sub(amount)
		if err != nil {
			return raierr.Wrap(raierr.LedgerInconsistent, "rep weight total underflow", err)
		}
		total = nt
	}
	if w.IsZero() {
		if err := tx.DeleteRepWeight(rep); err != nil {
			return err
		}
	} else if err := tx.PutRepWeight(rep, w); err != nil {
		return err
	}
	return tx.PutRepWeightTotal(total)
}

// maybeCreateRewardable implements side effect (iv): the accrual window
// runs from the previous block's own timestamp to this one's, the same
// pairing rai's PutRewardableInfo passes to RewardAmount/RewardTimestamp.
// A rewardable is only parked when both come back non-zero — a window
// under a day wide closes the representative's accrual without paying it
// out, exactly as RewardTimestamp returning 0 suppresses creation upstream.
func (p *Processor) maybeCreateRewardable(tx *store.Tx, prevInfo store.AccountInfo, b *block.Block) error {
	ts1, ts2 := prevInfo.ModifiedTimestamp, b.Timestamp
	amount, err := rewardAmount(prevInfo.Balance, ts1, ts2, p.params.RewardRateBasisPoints)
	if err != nil {
		return err
	}
	closeTs := rewardTimestamp(ts1, ts2)
	if amount.IsZero() || closeTs == 0 {
		return nil
	}
	return tx.PutRewardable(prevInfo.Representative, b.Previous, store.RewardableInfo{Amount: amount, Timestamp: closeTs})
}
