package election

import (
	"math/big"
	"sync"

	"raichain/block"
	"raichain/primitives"
)

// Params tunes quorum termination, the reconfirmation rate limit, and the
// election worker pool (spec §4.5).
type Params struct {
	// QualifiedRepWeight is QUALIFIED_REP_WEIGHT: the assumed total weight
	// of representatives expected online, the quorum denominator.
	QualifiedRepWeight primitives.Amount
	// QuorumFactor scales QualifiedRepWeight down to the weight a single
	// candidate must accumulate to win an election.
	QuorumFactor float64
	// Workers bounds how many elections are serviced concurrently (spec
	// §4.5 "bounded concurrency (configurable worker count)").
	Workers int
	// TimeoutSeconds abandons a stalemated election after this long;
	// its fork record is left in place and retried later.
	TimeoutSeconds uint64
	// ReconfirmIntervalSeconds is the minimum gap a representative's vote
	// for a different block at the same (account, height) must keep from
	// its previous vote before the weight moves (spec §4.5 "rate control").
	ReconfirmIntervalSeconds uint64
}

// DefaultParams returns production defaults.
func DefaultParams() Params {
	return Params{
		QualifiedRepWeight:       primitives.NewAmountFromUint64(1_000_000),
		QuorumFactor:             0.67,
		Workers:                  4,
		TimeoutSeconds:           300,
		ReconfirmIntervalSeconds: 15,
	}
}

// quorumThreshold is the minimum weight a candidate must accumulate to win,
// QUALIFIED_REP_WEIGHT × quorum_factor (spec §4.5 "Termination").
func (p Params) quorumThreshold() *big.Int {
	f := new(big.Float).SetInt(p.QualifiedRepWeight.Big())
	f.Mul(f, big.NewFloat(p.QuorumFactor))
	out, _ := f.Int(nil)
	return out
}

// electionKey identifies one contested chain position.
type electionKey struct {
	account primitives.Account
	height  uint64
}

// ConflictReport records a representative casting two distinct votes at the
// same (account, height); both are retained so the pair can be gossiped as
// evidence of misbehavior (spec §4.5).
type ConflictReport struct {
	Representative primitives.Account
	First          Vote
	Second         Vote
	RateViolation  bool
}

// Election tracks every candidate block competing for one (account, height)
// chain position and the weighted votes each has accumulated.
type Election struct {
	mu sync.Mutex

	key electionKey

	candidates map[primitives.Hash]*block.Block
	tally      map[primitives.Hash]primitives.Amount
	lastVote   map[primitives.Account]Vote
	conflicts  []ConflictReport

	createdAt uint64
	done      bool
	winner    primitives.Hash
}

func newElection(a, b *block.Block, now uint64) *Election {
	e := &Election{
		key:        electionKey{account: a.Account, height: a.Height},
		candidates: map[primitives.Hash]*block.Block{a.Hash(): a, b.Hash(): b},
		tally:      make(map[primitives.Hash]primitives.Amount),
		lastVote:   make(map[primitives.Account]Vote),
		createdAt:  now,
	}
	return e
}

// AddCandidate registers a later-discovered block for this same
// (account, height) contest.
func (e *Election) AddCandidate(b *block.Block) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	if _, ok := e.candidates[b.Hash()]; !ok {
		e.candidates[b.Hash()] = b
	}
}

// Candidate reports the known block for hash, if any.
func (e *Election) Candidate(hash primitives.Hash) (*block.Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.candidates[hash]
	return b, ok
}

// AddVote records v, weighted by weight, and returns the conflict it
// produced, or nil if there was none (spec §4.5 "A representative's
// second vote for a different block at the same (account, height) is a
// conflict: both vote messages are retained and gossiped").
func (e *Election) AddVote(v Vote, weight primitives.Amount, minInterval uint64) *ConflictReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return nil
	}
	if _, known := e.candidates[v.BlockHash]; !known {
		return nil
	}

	prev, hadVote := e.lastVote[v.Representative]
	if !hadVote {
		e.addWeightLocked(v.BlockHash, weight)
		e.lastVote[v.Representative] = v
		return nil
	}
	if prev.BlockHash == v.BlockHash {
		// Idempotent reconfirmation of the same position: only the
		// freshest timestamp is worth remembering, weight already counted.
		if v.Timestamp > prev.Timestamp {
			e.lastVote[v.Representative] = v
		}
		return nil
	}

	// Switching position is always a conflict worth retaining and
	// gossiping, whether or not it respects the reconfirmation interval.
	report := &ConflictReport{Representative: v.Representative, First: prev, Second: v}
	onTime := v.Timestamp >= prev.Timestamp+minInterval
	report.RateViolation = !onTime
	e.conflicts = append(e.conflicts, *report)
	if onTime {
		e.subWeightLocked(prev.BlockHash, weight)
		e.addWeightLocked(v.BlockHash, weight)
		e.lastVote[v.Representative] = v
	}
	return report
}

func (e *Election) addWeightLocked(hash primitives.Hash, weight primitives.Amount) {
	e.tally[hash] = e.tally[hash].Add(weight)
}

func (e *Election) subWeightLocked(hash primitives.Hash, weight primitives.Amount) {
	cur, ok := e.tally[hash]
	if !ok {
		return
	}
	next, err := cur.Sub(weight)
	if err != nil {
		next = primitives.ZeroAmount
	}
	e.tally[hash] = next
}

// Winner reports the candidate whose accumulated weight has crossed
// threshold, if any (spec §4.5 "Termination").
func (e *Election) Winner(threshold *big.Int) (*block.Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		b, ok := e.candidates[e.winner]
		return b, ok
	}
	for hash, weight := range e.tally {
		if weight.Big().Cmp(threshold) >= 0 {
			e.done = true
			e.winner = hash
			return e.candidates[hash], true
		}
	}
	return nil, false
}

// Expired reports whether the election has run longer than timeoutSeconds
// without terminating (spec §4.5 "On stalemate past a timeout the election
// is abandoned").
func (e *Election) Expired(now, timeoutSeconds uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.done && now >= e.createdAt+timeoutSeconds
}

// Conflicts returns every retained conflicting-vote pair observed so far,
// for gossip.
func (e *Election) Conflicts() []ConflictReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ConflictReport, len(e.conflicts))
	copy(out, e.conflicts)
	return out
}
