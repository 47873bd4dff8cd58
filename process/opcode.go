package process

import (
	"raichain/block"
	"raichain/primitives"
	"raichain/raierr"
	"raichain/store"
)

// consumedPending records the receivable/rewardable entry a RECEIVE or
// REWARD block just consumed, so commitAppend can stash it in the block's
// Undo record for ROLLBACK to restore exactly.
type consumedPending struct {
	IsRewardable bool
	Account      primitives.Account
	Source       primitives.Hash
	Amount       primitives.Amount
	// Timestamp is the rewardable's accrual-window-close timestamp; zero
	// and unused when IsRewardable is false.
	Timestamp uint64
}

// applyOpcode checks the per-opcode balance/link rule (spec §4.4.2 table)
// and performs that opcode's side effects (receivable/rewardable puts and
// deletes). It assumes common validation already passed.
func (p *Processor) applyOpcode(tx *store.Tx, b *block.Block, info store.AccountInfo, hadAccount bool, now uint64) (*Result, *consumedPending, error) {
	var head *block.Block
	if hadAccount {
		h, exists, err := tx.GetBlock(info.Head)
		if err != nil {
			return nil, nil, err
		}
		if !exists {
			return fail(raierr.LedgerInconsistent), nil, nil
		}
		head = h
	}

	switch b.Opcode {
	case block.OpSend:
		res, err := p.applySend(tx, b, info, hadAccount)
		return res, nil, err
	case block.OpReceive:
		return p.applyReceive(tx, b, info, hadAccount, now)
	case block.OpChange:
		res, err := p.applyChange(b, info)
		return res, nil, err
	case block.OpCredit:
		res, err := p.applyCredit(b, info, head, now)
		return res, nil, err
	case block.OpReward:
		return p.applyReward(tx, b, info, hadAccount, now)
	case block.OpDestroy:
		res, err := p.applyDestroy(b, info)
		return res, nil, err
	case block.OpBind:
		res, err := p.applyBind(tx, b, info)
		return res, nil, err
	default:
		return fail(raierr.UnknownBlockType), nil, nil
	}
}

func (p *Processor) applySend(tx *store.Tx, b *block.Block, info store.AccountInfo, hadAccount bool) (*Result, error) {
	if !hadAccount {
		return fail(raierr.GapPrevious), nil
	}
	if b.Balance.Cmp(info.Balance) >= 0 {
		return fail(raierr.BadBalance), nil
	}
	sent, err := info.Balance.Sub(b.Balance)
	if err != nil {
		return fail(raierr.BadBalance), nil
	}
	var dest primitives.Account
	copy(dest[:], b.Link[:])
	if err := tx.PutReceivable(dest, b.Hash(), store.Pending{Amount: sent}); err != nil {
		return nil, err
	}
	return ok(b), nil
}

func (p *Processor) applyReceive(tx *store.Tx, b *block.Block, info store.AccountInfo, hadAccount bool, now uint64) (*Result, *consumedPending, error) {
	var sourceHash primitives.Hash
	copy(sourceHash[:], b.Link[:])

	pending, exists, err := tx.GetReceivable(b.Account, sourceHash)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return fail(raierr.GapReceiveSource), nil, nil
	}
	source, sourceExists, err := tx.GetBlock(sourceHash)
	if err != nil {
		return nil, nil, err
	}
	if !sourceExists {
		return fail(raierr.GapReceiveSource), nil, nil
	}
	if b.Timestamp < source.Timestamp {
		return fail(raierr.BadTimestamp), nil, nil
	}

	if !hadAccount {
		price, err := p.params.CreditPrice(now).Mul(primitives.NewAmountFromUint64(uint64(b.Credit)))
		if err != nil {
			return fail(raierr.BadBalance), nil, nil
		}
		want, err := pending.Amount.Sub(price)
		if err != nil {
			return fail(raierr.BadBalance), nil, nil
		}
		if b.Balance.Cmp(want) != 0 {
			return fail(raierr.BadBalance), nil, nil
		}
	} else {
		delta, err := b.Balance.Sub(info.Balance)
		if err != nil || delta.Cmp(pending.Amount) != 0 {
			return fail(raierr.BadBalance), nil, nil
		}
	}

	if err := tx.DeleteReceivable(b.Account, sourceHash); err != nil {
		return nil, nil, err
	}
	if err := tx.PutSourceConsumer(sourceHash, b.Account); err != nil {
		return nil, nil, err
	}
	consumed := &consumedPending{
		IsRewardable: false,
		Account:      b.Account,
		Source:       sourceHash,
		Amount:       pending.Amount,
	}
	return ok(b), consumed, nil
}

func (p *Processor) applyChange(b *block.Block, info store.AccountInfo) (*Result, error) {
	if b.Balance.Cmp(info.Balance) != 0 {
		return fail(raierr.BadBalance), nil
	}
	if b.Link != (primitives.Hash{}) {
		return fail(raierr.BadLink), nil
	}
	return ok(b), nil
}

func (p *Processor) applyCredit(b *block.Block, info store.AccountInfo, head *block.Block, now uint64) (*Result, error) {
	if b.Link != (primitives.Hash{}) {
		return fail(raierr.BadLink), nil
	}
	if b.Credit <= head.Credit {
		return fail(raierr.BadBalance), nil
	}
	price := p.params.CreditPrice(now)
	units, err := price.Mul(primitives.NewAmountFromUint64(uint64(b.Credit - head.Credit)))
	if err != nil {
		return fail(raierr.BadBalance), nil
	}
	want, err := info.Balance.Sub(units)
	if err != nil {
		return fail(raierr.BadBalance), nil
	}
	if b.Balance.Cmp(want) != 0 {
		return fail(raierr.BadBalance), nil
	}
	return ok(b), nil
}

func (p *Processor) applyReward(tx *store.Tx, b *block.Block, info store.AccountInfo, hadAccount bool, now uint64) (*Result, *consumedPending, error) {
	var sourceHash primitives.Hash
	copy(sourceHash[:], b.Link[:])

	pending, exists, err := tx.GetRewardable(b.Account, sourceHash)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return fail(raierr.GapRewardSource), nil, nil
	}
	if b.Timestamp < pending.Timestamp {
		return fail(raierr.BadTimestamp), nil, nil
	}

	if !hadAccount {
		price, err := p.params.CreditPrice(now).Mul(primitives.NewAmountFromUint64(uint64(b.Credit)))
		if err != nil {
			return fail(raierr.BadBalance), nil, nil
		}
		sum := b.Balance.Add(price)
		if sum.Cmp(pending.Amount) != 0 {
			return fail(raierr.BadBalance), nil, nil
		}
	} else {
		delta, err := b.Balance.Sub(info.Balance)
		if err != nil || delta.Cmp(pending.Amount) != 0 {
			return fail(raierr.BadBalance), nil, nil
		}
	}

	if err := tx.DeleteRewardable(b.Account, sourceHash); err != nil {
		return nil, nil, err
	}
	if err := tx.PutSourceConsumer(sourceHash, b.Account); err != nil {
		return nil, nil, err
	}
	consumed := &consumedPending{
		IsRewardable: true,
		Account:      b.Account,
		Source:       sourceHash,
		Amount:       pending.Amount,
		Timestamp:    pending.Timestamp,
	}
	return ok(b), consumed, nil
}

func (p *Processor) applyDestroy(b *block.Block, info store.AccountInfo) (*Result, error) {
	if !b.Balance.IsZero() {
		return fail(raierr.BadBalance), nil
	}
	if info.Balance.IsZero() {
		return fail(raierr.BadBalance), nil
	}
	return ok(b), nil
}

func (p *Processor) applyBind(tx *store.Tx, b *block.Block, info store.AccountInfo) (*Result, error) {
	if b.Balance.Cmp(info.Balance) != 0 {
		return fail(raierr.BadBalance), nil
	}
	allowed := p.params.MaxAllowedForks(b.Timestamp, b.Credit)
	if int(info.BindingCount) >= allowed {
		return fail(raierr.BadLink), nil
	}
	return ok(b), nil
}
