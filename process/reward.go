package process

import (
	"math/big"

	"raichain/primitives"
)

var big10000 = big.NewInt(10000)

// rewardAmount and rewardTimestamp are grounded on the real Raicoin node's
// RewardAmount(balance, ts1, ts2) / RewardTimestamp(ts1, ts2), confirmed at
// three call sites in blockprocessor.cpp (PutRewardableInfo, the
// representative-block rollback check, and the REWARD-block rollback
// visitor) to take a balance plus the two timestamps bracketing an accrual
// window, not balance alone. The call sites recover the function
// signatures and the zero-timestamp-suppresses-creation behavior; the
// bodies themselves were not present in the retrieved source, so the
// per-day accrual divisor below is a reconstruction, not a transcription
// (see DESIGN.md).
//
// rewardAmount pays RewardRateBasisPoints/10000 of balance per full day
// that elapsed between ts1 (the rewarding block's own timestamp) and ts2
// (the timestamp that closed the accrual window), and nothing for a
// window shorter than a day.
func rewardAmount(balance primitives.Amount, ts1, ts2 uint64, rateBasisPoints uint64) (primitives.Amount, error) {
	days := accrualDays(ts1, ts2)
	if balance.IsZero() || rateBasisPoints == 0 || days == 0 {
		return primitives.ZeroAmount, nil
	}
	product := new(big.Int).Mul(balance.Big(), new(big.Int).SetUint64(rateBasisPoints))
	product.Mul(product, new(big.Int).SetUint64(days))
	product.Quo(product, big10000)
	return primitives.AmountFromBig(product)
}

// rewardTimestamp closes the accrual window at ts2, unless fewer than a
// full day elapsed since ts1, in which case it returns 0 to signal "no
// rewardable should be created" — mirroring RewardTimestamp's call-site
// contract (PutRewardableInfo only persists a rewardable when both the
// amount and this timestamp come back non-zero).
func rewardTimestamp(ts1, ts2 uint64) uint64 {
	if accrualDays(ts1, ts2) == 0 {
		return 0
	}
	return ts2
}

func accrualDays(ts1, ts2 uint64) uint64 {
	if ts2 <= ts1 {
		return 0
	}
	return (ts2 - ts1) / 86400
}
