package process

import (
	"raichain/block"
	"raichain/raierr"
	"raichain/store"
)

// Prepend extends an account chain below its current tail during
// bootstrap-driven backfill (spec §4.4.3). Any mismatch is reported as
// PrependIgnore, a benign result the caller simply moves past rather than
// treating as an error.
func (p *Processor) Prepend(b *block.Block) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !b.VerifySignature() {
		return fail(raierr.BadSignature)
	}

	var result *Result
	err := p.db.Update(func(tx *store.Tx) error {
		r, txErr := p.prependLocked(tx, b)
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
		p.log.WithError(err).Error("process: prepend transaction failed")
		result = fail(raierr.Unexpected)
	}
	p.notify(OpPrepend, b, result.Code)
	return result
}

func (p *Processor) prependLocked(tx *store.Tx, b *block.Block) (*Result, error) {
	info, exists, err := tx.GetAccountInfo(b.Account)
	if err != nil {
		return nil, err
	}
	if !exists {
		return fail(raierr.PrependIgnore), nil
	}
	if b.Height+1 != info.TailHeight {
		return fail(raierr.PrependIgnore), nil
	}
	tail, tailExists, err := tx.GetBlock(info.TailHash)
	if err != nil {
		return nil, err
	}
	if !tailExists || tail.Previous != b.Hash() {
		return fail(raierr.PrependIgnore), nil
	}

	if err := tx.PutBlock(b); err != nil {
		return nil, err
	}
	if err := tx.PutSuccessor(b.Hash(), info.TailHash); err != nil {
		return nil, err
	}
	info.TailHash = b.Hash()
	info.TailHeight = b.Height
	if err := tx.PutAccountInfo(b.Account, info); err != nil {
		return nil, err
	}
	return ok(b), nil
}
