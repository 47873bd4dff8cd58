package process

import (
	"raichain/block"
	"raichain/raierr"
	"raichain/store"
)

// stackAbort carries a business-result code out of a dynamic-stack step,
// distinct from a genuine store error, so runStack's error path can recover
// the right Result instead of collapsing every failure to Unexpected.
type stackAbort struct{ code raierr.Code }

func (e *stackAbort) Error() string { return "process: dynamic stack step failed" }

// Confirm marks b finalized (spec §4.4.5): account_info.confirmed_height
// advances to b.Height, idempotently. If b is not present locally yet, the
// dynamic operation stack pushes a dependent APPEND and retries the confirm
// once it lands (spec §4.4.6).
func (p *Processor) Confirm(b *block.Block) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	var final *Result
	var st *opStack

	confirmStep := func(p *Processor) (StepResult, error) {
		res, err := p.confirmTxn(b)
		if err != nil {
			return 0, err
		}
		if res.Code == raierr.GapPrevious {
			st.push(func(p *Processor) (StepResult, error) {
				ar := p.appendNoLock(b)
				if ar.Code != raierr.OK && ar.Code != raierr.Exists {
					return StepSuccess, &stackAbort{code: ar.Code}
				}
				return StepSuccess, nil
			})
			return StepContinue, nil
		}
		final = res
		return StepSuccess, nil
	}
	st = newOpStack(confirmStep)

	if err := p.runStack(st); err != nil {
		if abort, isAbort := err.(*stackAbort); isAbort {
			final = fail(abort.code)
		} else {
			p.log.WithError(err).Error("process: confirm failed")
			final = fail(raierr.Unexpected)
		}
	}
	if final == nil {
		final = fail(raierr.Unexpected)
	}
	p.notify(OpConfirm, b, final.Code)
	return final
}

// confirmTxn performs one attempt at advancing confirmed_height, reporting
// GapPrevious when b is not present in the store yet.
func (p *Processor) confirmTxn(b *block.Block) (*Result, error) {
	var result *Result
	err := p.db.Update(func(tx *store.Tx) error {
		hash := b.Hash()
		if _, exists, err := tx.GetBlock(hash); err != nil {
			return err
		} else if !exists {
			result = fail(raierr.GapPrevious)
			return nil
		}

		info, exists, err := tx.GetAccountInfo(b.Account)
		if err != nil {
			return err
		}
		if !exists {
			result = fail(raierr.LedgerInconsistent)
			return nil
		}
		if info.ConfirmedValid && info.ConfirmedHeight >= b.Height {
			result = ok(b)
			return nil
		}
		info.ConfirmedHeight = b.Height
		info.ConfirmedValid = true
		result = ok(b)
		return tx.PutAccountInfo(b.Account, info)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
