package process

import (
	"raichain/block"
	"raichain/primitives"
	"raichain/raierr"
	"raichain/store"
)

// Rollback removes account's head block, provided it equals hash, undoing
// every side effect its APPEND performed (spec §4.4.4). Callers working
// down from a fork or a bad chain tip call Rollback repeatedly, one
// successor at a time; RollbackNonHead tells them to roll the current head
// back first rather than recursing inside this call.
func (p *Processor) Rollback(account primitives.Account, hash primitives.Hash) *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	var result *Result
	err := p.db.Update(func(tx *store.Tx) error {
		r, txErr := p.rollbackLocked(tx, account, hash, now)
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
		p.log.WithError(err).Error("process: rollback transaction failed")
		result = fail(raierr.Unexpected)
	}
	p.notify(OpRollback, result.Block, result.Code)
	return result
}

func (p *Processor) rollbackLocked(tx *store.Tx, account primitives.Account, hash primitives.Hash, now uint64) (*Result, error) {
	info, exists, err := tx.GetAccountInfo(account)
	if err != nil {
		return nil, err
	}
	if !exists {
		return fail(raierr.LedgerAccountNotFound), nil
	}
	if info.Head != hash {
		return fail(raierr.RollbackNonHead), nil
	}

	head, exists, err := tx.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	if !exists {
		return fail(raierr.LedgerInconsistent), nil
	}

	undo, hasUndo, err := tx.GetUndo(hash)
	if err != nil {
		return nil, err
	}
	if !hasUndo {
		return fail(raierr.LedgerInconsistent), nil
	}

	if head.Opcode == block.OpSend {
		if _, consumed, err := tx.GetSourceConsumer(hash); err != nil {
			return nil, err
		} else if consumed {
			return fail(raierr.RollbackReceived), nil
		}
	}

	var createdRewardKey primitives.Hash
	rewardCreated := undo.HadAccount && head.Kind.HasRepresentative() && undo.PrevInfo.Representative != primitives.ZeroAccount
	if rewardCreated {
		createdRewardKey = head.Previous
		if _, consumed, err := tx.GetSourceConsumer(createdRewardKey); err != nil {
			return nil, err
		} else if consumed {
			return fail(raierr.RollbackRewarded), nil
		}
	}

	if head.Opcode == block.OpReceive {
		var sourceHash primitives.Hash
		copy(sourceHash[:], head.Link[:])
		if _, sourceExists, err := tx.GetBlock(sourceHash); err != nil {
			return nil, err
		} else if !sourceExists {
			return fail(raierr.RollbackSourcePruned), nil
		}
	}

	if undo.RestorePending {
		if undo.PendingIsRewardable {
			r := store.RewardableInfo{Amount: undo.PendingAmount, Timestamp: undo.PendingTimestamp}
			if err := tx.PutRewardable(undo.PendingAccount, undo.PendingSource, r); err != nil {
				return nil, err
			}
		} else if err := tx.PutReceivable(undo.PendingAccount, undo.PendingSource, store.Pending{Amount: undo.PendingAmount}); err != nil {
			return nil, err
		}
		if err := tx.DeleteSourceConsumer(undo.PendingSource); err != nil {
			return nil, err
		}
	}

	if head.Opcode == block.OpSend {
		var dest primitives.Account
		copy(dest[:], head.Link[:])
		if err := tx.DeleteReceivable(dest, hash); err != nil {
			return nil, err
		}
	}
	if rewardCreated {
		if err := tx.DeleteRewardable(undo.PrevInfo.Representative, createdRewardKey); err != nil {
			return nil, err
		}
	}

	if head.Kind.HasRepresentative() {
		if err := p.adjustRepWeight(tx, head.Representative, head.Balance, false, true); err != nil {
			return nil, err
		}
		if err := p.adjustRepWeight(tx, undo.PrevInfo.Representative, undo.PrevInfo.Balance, true, undo.HadAccount); err != nil {
			return nil, err
		}
	}

	if err := tx.DeleteBlock(hash); err != nil {
		return nil, err
	}
	if undo.HadAccount {
		if err := tx.DeleteSuccessor(head.Previous); err != nil {
			return nil, err
		}
	}
	if undo.HadAccount {
		if err := tx.PutAccountInfo(account, undo.PrevInfo); err != nil {
			return nil, err
		}
	} else if err := tx.DeleteAccountInfo(account); err != nil {
		return nil, err
	}

	if _, err := tx.AppendRollback(store.RollbackRecord{
		Account:   account,
		Height:    head.Height,
		Hash:      hash,
		Timestamp: now,
	}); err != nil {
		return nil, err
	}
	if err := tx.DeleteUndo(hash); err != nil {
		return nil, err
	}

	return ok(head), nil
}
