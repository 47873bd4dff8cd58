package process

import (
	"raichain/block"
	"raichain/primitives"
	"raichain/raierr"
	"raichain/store"
)

// ProcessBlockFork implements spec §4.4.7: record a/b as a fork record if
// capacity allows, then notify fork observers (the election manager) so
// voting can begin. It is a no-op unless a.ForkWith(b) (tested by invariant
// 9, spec §8).
func (p *Processor) ProcessBlockFork(a, b *block.Block) *Result {
	if !a.ForkWith(b) {
		return fail(raierr.Fork)
	}

	p.mu.Lock()
	var recorded bool
	err := p.db.Update(func(tx *store.Tx) error {
		ok, err := p.recordFork(tx, a, b)
		recorded = ok
		return err
	})
	p.mu.Unlock()
	if err != nil {
		p.log.WithError(err).Error("process: fork ingestion failed")
		return fail(raierr.Unexpected)
	}
	if recorded {
		p.notifyFork(a, b)
		return ok(nil)
	}
	return fail(raierr.Fork)
}

func (p *Processor) recordFork(tx *store.Tx, a, b *block.Block) (bool, error) {
	account, height := a.Account, a.Height

	existing, err := tx.GetForkSlot(account, height)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	info, exists, err := tx.GetAccountInfo(account)
	if err != nil {
		return false, err
	}
	if !exists || info.Height < height {
		return false, nil
	}

	cap := p.params.MaxAllowedForks(a.Timestamp, a.Credit) + 2
	if int(info.ForksCount) < cap {
		if err := tx.PutForkSlot(account, height, []primitives.Hash{a.Hash(), b.Hash()}); err != nil {
			return false, err
		}
		info.ForksCount++
		return true, tx.PutAccountInfo(account, info)
	}

	highest, ok, err := tx.HighestForkHeightForAccount(account)
	if err != nil {
		return false, err
	}
	if !ok || height >= highest {
		return false, nil
	}
	if err := tx.DeleteForkSlot(account, highest); err != nil {
		return false, err
	}
	return true, tx.PutForkSlot(account, height, []primitives.Hash{a.Hash(), b.Hash()})
}
