// Package process implements the validating block processor (spec §4.4):
// the state machine that applies, prepends, rolls back and confirms blocks
// against the ledger store under strict per-opcode invariants. It is the
// single point of mutation for account chains: elections (package election)
// change chains only through its Append, Rollback and Confirm, and the
// wallet's follower ledger is a separate store this package does not touch.
package process

import (
	"sync"

	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/raierr"
	"raichain/store"
)

// Clock returns the current unix time in seconds. Injected so tests control
// it instead of the processor reaching for time.Now() itself (spec §9
// "process-wide state... model as injected handles").
type Clock func() uint64

// Params holds every tunable the processor's validation rules depend on.
type Params struct {
	// TransactionsPerCredit bounds how many same-day blocks one credit buys.
	TransactionsPerCredit uint32
	// BoundedSkewSeconds is how far into the future a block timestamp may sit.
	BoundedSkewSeconds uint64
	// CreditPrice returns the cost of one credit, denominated in Amount, at
	// a given timestamp. Consulted by RECEIVE's first-block rule and by
	// CREDIT. Injected so the economic policy can evolve without touching
	// validation logic.
	CreditPrice func(ts uint64) primitives.Amount
	// MaxAllowedForks returns how many concurrent forks an account may hold
	// open at once, as a function of its current block's timestamp and
	// credit (spec §4.4.7 "max_allowed(timestamp, credit)").
	MaxAllowedForks func(ts uint64, credit uint16) int
	// RewardRateBasisPoints is the fraction (out of 10,000) of a
	// representative's delegated balance that becomes rewardable per full
	// day elapsed between a block and its successor; a gap under one day
	// earns nothing (spec §9 Open Question, pinned in DESIGN.md).
	RewardRateBasisPoints uint64
}

// DefaultParams returns the protocol defaults used in production.
func DefaultParams() Params {
	return Params{
		TransactionsPerCredit: 20,
		BoundedSkewSeconds:    300,
		CreditPrice:           func(uint64) primitives.Amount { return primitives.ZeroAmount },
		MaxAllowedForks:       func(ts uint64, credit uint16) int { return int(credit) },
		RewardRateBasisPoints: 100,
	}
}

// Observer is notified once per processed block, after its transaction has
// finished. OnBlock runs synchronously on the goroutine that called the
// processor, while Processor.mu is still held; there is no separate
// executor, so a handler that calls back into the Processor deadlocks.
type Observer interface {
	OnBlock(op Operation, b *block.Block, code raierr.Code)
}

// ForkObserver is notified when process_block_fork records a new fork
// (spec §4.4.7 "after write, broadcast the pair and start an election").
type ForkObserver interface {
	OnFork(a, b *block.Block)
}

// Operation identifies which processor entry point produced an Observer
// callback.
type Operation int

const (
	OpAppend Operation = iota
	OpPrepend
	OpRollback
	OpConfirm
)

// Processor is the single mutator of ledger state. Per spec §5 it behaves
// like a single-threaded worker: Mutex serializes every call so per-account
// ordering (APPEND/ROLLBACK/CONFIRM on one account never interleave) falls
// out trivially, at the cost of cross-account parallelism the real protocol
// does not strictly require either.
type Processor struct {
	db     *store.DB
	log    *logrus.Logger
	clock  Clock
	params Params

	mu sync.Mutex

	obsMu         sync.RWMutex
	observers     []Observer
	forkObservers []ForkObserver

	gap   *gapCache
	admit *admitQueue
}

// New builds a Processor over db. clock is used as given (New does not
// substitute a default for nil); tests pass a fixed Clock.
func New(db *store.DB, log *logrus.Logger, clock Clock, params Params) *Processor {
	return &Processor{
		db:     db,
		log:    log,
		clock:  clock,
		params: params,
		gap:    newGapCache(),
		admit:  newAdmitQueue(defaultAdmitQueueCap, defaultForkQueueCap),
	}
}

// Subscribe registers an Observer. Observers are only ever appended at
// startup (spec §9 "written once at startup, invoked many times
// concurrently"); obsMu's read lock during notification is enough.
func (p *Processor) Subscribe(o Observer) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.observers = append(p.observers, o)
}

// SubscribeFork registers a ForkObserver, typically the election manager.
func (p *Processor) SubscribeFork(o ForkObserver) {
	p.obsMu.Lock()
	defer p.obsMu.Unlock()
	p.forkObservers = append(p.forkObservers, o)
}

func (p *Processor) notify(op Operation, b *block.Block, code raierr.Code) {
	p.obsMu.RLock()
	obs := p.observers
	p.obsMu.RUnlock()
	for _, o := range obs {
		o.OnBlock(op, b, code)
	}
}

func (p *Processor) notifyFork(a, b *block.Block) {
	p.obsMu.RLock()
	obs := p.forkObservers
	p.obsMu.RUnlock()
	for _, o := range obs {
		o.OnFork(a, b)
	}
}

func dayOf(ts uint64) uint64 { return ts / 86400 }
