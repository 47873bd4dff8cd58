package election

import (
	"sync"

	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/process"
	"raichain/raierr"
	"raichain/store"
)

// Clock returns the current unix time in seconds, injected the same way
// package process's Clock is (spec §9 "model as injected handles").
type Clock func() uint64

type jobKind int

const (
	jobStart jobKind = iota
	jobVote
	jobTick
)

type job struct {
	kind jobKind
	a, b *block.Block
	vote Vote
	key  electionKey
}

// Manager is the fork manager and election coordinator (spec §4.5). It
// registers as a process.ForkObserver: every fork process_block_fork
// records starts an election, and a candidate that reaches quorum is fed
// back into the Processor as a CONFIRM or a ROLLBACK-then-APPEND sequence.
type Manager struct {
	db     *store.DB
	proc   *process.Processor
	log    *logrus.Logger
	clock  Clock
	params Params

	mu        sync.Mutex
	elections map[electionKey]*Election

	jobs chan job
	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Manager over db and proc and starts its bounded worker pool
// (spec §4.5 "Elections run with bounded concurrency (configurable worker
// count)"; spec §5 "Long-lived threads: ... election workers (N)").
func New(db *store.DB, proc *process.Processor, log *logrus.Logger, clock Clock, params Params) *Manager {
	m := &Manager{
		db:        db,
		proc:      proc,
		log:       log,
		clock:     clock,
		params:    params,
		elections: make(map[electionKey]*Election),
		jobs:      make(chan job, 256),
		stop:      make(chan struct{}),
	}
	workers := params.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	proc.SubscribeFork(m)
	return m
}

// Close stops every worker goroutine and waits for them to drain.
func (m *Manager) Close() {
	close(m.stop)
	m.wg.Wait()
}

// ActiveCount reports how many elections are currently open, for status
// reporting (spec §4.9 "Status CLI... active election count").
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.elections)
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stop:
			return
		case j := <-m.jobs:
			m.handle(j)
		}
	}
}

// OnFork implements process.ForkObserver: it schedules a new election for
// the pair process.ProcessBlockFork just recorded.
func (m *Manager) OnFork(a, b *block.Block) {
	select {
	case m.jobs <- job{kind: jobStart, a: a, b: b}:
	default:
		m.log.Warn("election: job queue full, dropping fork start")
	}
}

// SubmitVote feeds a representative's vote for the (account, height)
// contest into its election, if one is active.
func (m *Manager) SubmitVote(account primitives.Account, height uint64, v Vote) {
	select {
	case m.jobs <- job{kind: jobVote, key: electionKey{account: account, height: height}, vote: v}:
	default:
		m.log.Warn("election: job queue full, dropping vote")
	}
}

// Tick drives timeout sweeps and fork-table GC; a long-lived alarm
// goroutine calls it periodically (spec §5 "alarm/timer thread").
func (m *Manager) Tick() {
	select {
	case m.jobs <- job{kind: jobTick}:
	default:
	}
}

func (m *Manager) handle(j job) {
	switch j.kind {
	case jobStart:
		m.handleStart(j.a, j.b)
	case jobVote:
		m.handleVote(j.key, j.vote)
	case jobTick:
		m.handleTick()
	}
}

func (m *Manager) handleStart(a, b *block.Block) {
	if !a.ForkWith(b) {
		return
	}
	key := electionKey{account: a.Account, height: a.Height}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, exists := m.elections[key]
	if !exists {
		m.elections[key] = newElection(a, b, m.clock())
		return
	}
	e.AddCandidate(b)
}

func (m *Manager) handleVote(key electionKey, v Vote) {
	if !v.Verify() {
		return
	}
	m.mu.Lock()
	e, ok := m.elections[key]
	m.mu.Unlock()
	if !ok {
		return
	}

	var weight primitives.Amount
	if err := m.db.View(func(tx *store.Tx) error {
		w, err := tx.GetRepWeight(v.Representative)
		weight = w
		return err
	}); err != nil {
		m.log.WithError(err).Error("election: rep weight lookup failed")
		return
	}
	if weight.IsZero() {
		return
	}

	if conflict := e.AddVote(v, weight, m.params.ReconfirmIntervalSeconds); conflict != nil {
		m.log.WithFields(logrus.Fields{
			"account":        key.account.Hex(),
			"height":         key.height,
			"representative": conflict.Representative.Hex(),
			"rate_violation": conflict.RateViolation,
		}).Warn("election: representative cast conflicting votes")
	}

	if winner, done := e.Winner(m.params.quorumThreshold()); done {
		m.resolve(key, winner)
	}
}

func (m *Manager) handleTick() {
	now := m.clock()
	m.mu.Lock()
	var expired []electionKey
	for key, e := range m.elections {
		if e.Expired(now, m.params.TimeoutSeconds) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		delete(m.elections, key)
	}
	m.mu.Unlock()
	if len(expired) > 0 {
		m.log.WithField("count", len(expired)).Info("election: abandoned stalemated elections")
	}
	m.gcForks()
}

// resolve feeds the winning candidate back into the processor, then
// retires the in-memory election. Its fork record is left in the store
// until a later GC pass confirms the account has moved past that height
// (spec §4.5 S3 "fork entry persists until both heights are below head,
// then garbage-collected").
func (m *Manager) resolve(key electionKey, winner *block.Block) {
	var headHash primitives.Hash
	var hasAccount bool
	if err := m.db.View(func(tx *store.Tx) error {
		info, exists, err := tx.GetAccountInfo(key.account)
		if err != nil {
			return err
		}
		hasAccount = exists
		if exists {
			headHash = info.Head
		}
		return nil
	}); err != nil {
		m.log.WithError(err).Error("election: account lookup failed during resolve")
		return
	}

	winnerHash := winner.Hash()
	switch {
	case hasAccount && headHash == winnerHash:
		if res := m.proc.Confirm(winner); res.Code != raierr.OK {
			m.logOutcome("confirm", key, res.Code)
		}
	case hasAccount:
		if res := m.proc.Rollback(key.account, headHash); res.Code != raierr.OK {
			m.logOutcome("rollback", key, res.Code)
			return
		}
		if res := m.proc.Append(winner); res.Code != raierr.OK {
			m.logOutcome("append", key, res.Code)
			return
		}
		m.proc.Confirm(winner)
	default:
		if res := m.proc.Append(winner); res.Code != raierr.OK {
			m.logOutcome("append", key, res.Code)
			return
		}
		m.proc.Confirm(winner)
	}

	m.mu.Lock()
	delete(m.elections, key)
	m.mu.Unlock()
}

func (m *Manager) logOutcome(step string, key electionKey, code raierr.Code) {
	m.log.WithFields(logrus.Fields{
		"account": key.account.Hex(),
		"height":  key.height,
		"step":    step,
		"code":    code.String(),
	}).Error("election: resolving winning candidate failed")
}

// gcForks deletes fork records whose contested height has fallen behind
// the account's current head height, the retention rule from spec §4.5
// S3.
func (m *Manager) gcForks() {
	err := m.db.Update(func(tx *store.Tx) error {
		var stale []store.ForkSlot
		var after *primitives.Account
		var afterHeight uint64
		for {
			slot, ok, err := tx.NextFork(after, afterHeight)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			info, exists, err := tx.GetAccountInfo(slot.Account)
			if err != nil {
				return err
			}
			if exists && info.Height > slot.Height {
				stale = append(stale, slot)
			}
			acc := slot.Account
			after = &acc
			afterHeight = slot.Height
		}
		for _, slot := range stale {
			if err := tx.DeleteForkSlot(slot.Account, slot.Height); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.log.WithError(err).Error("election: fork GC failed")
	}
}
