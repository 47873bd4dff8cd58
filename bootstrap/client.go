package bootstrap

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"raichain/block"
	"raichain/primitives"
	"raichain/process"
	"raichain/raierr"
	"raichain/store"
)

// Dialer opens a connection to one bootstrap peer.
type Dialer func(ctx context.Context, peer string) (net.Conn, error)

// DefaultDialer dials peer as a TCP address with the given timeout.
func DefaultDialer(timeout time.Duration) Dialer {
	return func(ctx context.Context, peer string) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		return d.DialContext(ctx, "tcp", peer)
	}
}

// Params tunes the client loop's batch size, throughput floor, and abort
// heuristics (spec §4.6).
type Params struct {
	// BatchMax is the max entries/pairs requested per message.
	BatchMax uint32
	// ThroughputFloorBytesPerSec is the minimum sustained rate after the
	// warm-up window; falling below it triggers a peer switch.
	ThroughputFloorBytesPerSec float64
	WarmupDuration             time.Duration
	// MismatchLimit is how many ordering/validation mismatches a single
	// session tolerates before the "attack heuristic" aborts it.
	MismatchLimit int
	RequestBurst  int
}

// DefaultParams returns production defaults.
func DefaultParams() Params {
	return Params{
		BatchMax:                   512,
		ThroughputFloorBytesPerSec: 4096,
		WarmupDuration:             5 * time.Second,
		MismatchLimit:              8,
		RequestBurst:               4,
	}
}

// Client drives the pull protocol against a rotating set of peers, checking
// account-head entries against the local ledger and feeding fork pairs into
// the processor (spec §4.6 "client loop"; §5 "bootstrap driver").
type Client struct {
	peers  []string
	dial   Dialer
	proc   *process.Processor
	db     *store.DB
	log    *logrus.Logger
	params Params
	limit  *rate.Limiter

	peerIdx  int
	restartC chan struct{}
}

// NewClient builds a Client over proc/db, cycling through peers in order and
// reconnecting to the next one whenever the current session aborts.
func NewClient(peers []string, dial Dialer, proc *process.Processor, db *store.DB, log *logrus.Logger, params Params) *Client {
	return &Client{
		peers:    peers,
		dial:     dial,
		proc:     proc,
		db:       db,
		log:      log,
		params:   params,
		limit:    rate.NewLimiter(rate.Limit(params.RequestBurst), params.RequestBurst),
		restartC: make(chan struct{}, 1),
	}
}

// Restart requests an out-of-schedule FULL+FORK cycle, the mechanism behind
// the bootstrap_restart admin command (spec §6). Run picks it up at the next
// scheduling decision; a pending request already queued is a no-op.
func (c *Client) Restart() {
	select {
	case c.restartC <- struct{}{}:
	default:
	}
}

func (c *Client) nextPeer() (string, error) {
	if len(c.peers) == 0 {
		return "", fmt.Errorf("bootstrap: no peers configured")
	}
	p := c.peers[c.peerIdx%len(c.peers)]
	c.peerIdx++
	return p, nil
}

// Run drives the scheduling policy of spec §4.6: an initial burst of FULL
// bootstraps, then alternating LIGHT pulls with a periodic FULL, running a
// FORK pull after every completed FULL cycle. It blocks until ctx is
// cancelled.
func (c *Client) Run(ctx context.Context, fullInterval time.Duration) error {
	for i := 0; i < 2; i++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		c.runCycle(ctx, ModeFull)
		c.runCycle(ctx, ModeFork)
	}

	ticker := time.NewTicker(fullInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.runCycle(ctx, ModeFull)
			c.runCycle(ctx, ModeFork)
		case <-c.restartC:
			c.runCycle(ctx, ModeFull)
			c.runCycle(ctx, ModeFork)
		default:
			c.runCycle(ctx, ModeLight)
			select {
			case <-ctx.Done():
				return nil
			case <-c.restartC:
				c.runCycle(ctx, ModeFull)
				c.runCycle(ctx, ModeFork)
			case <-time.After(time.Second):
			}
		}
	}
}

// runCycle pulls mode to exhaustion against the current peer, switching to
// the next peer on any abort condition and trying every configured peer at
// most once per call.
func (c *Client) runCycle(ctx context.Context, mode Mode) {
	for attempt := 0; attempt < len(c.peers); attempt++ {
		peer, err := c.nextPeer()
		if err != nil {
			return
		}
		if err := c.pullFrom(ctx, peer, mode); err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{"peer": peer, "mode": mode}).Warn("bootstrap: session aborted, switching peer")
			continue
		}
		return
	}
}

// pullFrom runs one mode's pull to completion against peer, validating
// ordering and throughput and aborting on any of spec §4.6's conditions:
// size limit, out-of-order data, slow throughput past warm-up, or the
// attack heuristic.
func (c *Client) pullFrom(ctx context.Context, peer string, mode Mode) error {
	conn, err := c.dial(ctx, peer)
	if err != nil {
		return raierr.Wrap(raierr.BootstrapSlowPeer, "dial", err)
	}
	defer conn.Close()

	var cursorAccount primitives.Account
	var cursorHeight uint64
	start := time.Now()
	var bytesRead int64
	mismatches := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := c.limit.Wait(ctx); err != nil {
			return nil
		}
		req := Request{Mode: mode, CursorAccount: cursorAccount, CursorHeight: cursorHeight, Max: c.params.BatchMax}
		if err := writeFrame(conn, encodeRequest(req)); err != nil {
			return raierr.Wrap(raierr.Stream, "write request", err)
		}

		finished, n, err := c.readBatch(conn, mode, &cursorAccount, &cursorHeight, &mismatches)
		bytesRead += n
		if err != nil {
			return err
		}
		if mismatches > c.params.MismatchLimit {
			return raierr.New(raierr.BootstrapAttackHeuristic, "too many mismatched entries")
		}
		if elapsed := time.Since(start); elapsed > c.params.WarmupDuration {
			rate := float64(bytesRead) / elapsed.Seconds()
			if rate < c.params.ThroughputFloorBytesPerSec {
				return raierr.New(raierr.BootstrapSlowPeer, fmt.Sprintf("%.1f bytes/sec below floor", rate))
			}
		}
		if finished {
			return nil
		}
	}
}

// readBatch reads exactly one response batch and feeds it to the syncer or
// processor, reporting whether the stream is fully finished.
func (c *Client) readBatch(conn net.Conn, mode Mode, cursorAccount *primitives.Account, cursorHeight *uint64, mismatches *int) (finished bool, bytesRead int64, err error) {
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	if mode == ModeFork {
		return c.readForkBatch(conn, cursorAccount, cursorHeight, mismatches)
	}

	first := true
	for {
		payload, err := readFrame(conn)
		if err != nil {
			return false, bytesRead, raierr.Wrap(raierr.Stream, "read account entry", err)
		}
		bytesRead += int64(len(payload)) + 4
		entry, err := decodeAccountEntry(payload)
		if err != nil {
			return false, bytesRead, raierr.Wrap(raierr.Stream, "decode account entry", err)
		}
		if entry.HeadHeight == InvalidHeight {
			return first, bytesRead, nil
		}
		if !first && lessAccount(entry.Account, *cursorAccount) {
			*mismatches++
			return false, bytesRead, raierr.New(raierr.BootstrapOutOfOrder, "cursor went backwards")
		}
		if err := c.applyAccountHead(entry); err != nil {
			*mismatches++
		}
		*cursorAccount = entry.Account
		first = false
	}
}

func (c *Client) readForkBatch(conn net.Conn, cursorAccount *primitives.Account, cursorHeight *uint64, mismatches *int) (finished bool, bytesRead int64, err error) {
	for {
		aPayload, err := readFrame(conn)
		if err != nil {
			return false, bytesRead, raierr.Wrap(raierr.Stream, "read fork block a", err)
		}
		bytesRead += int64(len(aPayload)) + 4
		if len(aPayload) == 0 {
			return true, bytesRead, nil
		}
		bPayload, err := readFrame(conn)
		if err != nil {
			return false, bytesRead, raierr.Wrap(raierr.Stream, "read fork block b", err)
		}
		bytesRead += int64(len(bPayload)) + 4

		a, errA := block.Decode(aPayload)
		b, errB := block.Decode(bPayload)
		if errA != nil || errB != nil {
			*mismatches++
			continue
		}
		if !a.ForkWith(b) {
			*mismatches++
			continue
		}
		*cursorAccount = a.Account
		*cursorHeight = a.Height
		c.proc.ProcessBlockFork(a, b)
	}
}

// applyAccountHead compares the remote's claimed head with the head stored
// locally for that account. It reads the ledger only and does not call the
// processor; an unknown account or a differing head is returned as an error,
// which the caller counts against the attack heuristic rather than
// aborting the session.
func (c *Client) applyAccountHead(entry AccountEntry) error {
	var local primitives.Hash
	var exists bool
	if err := c.db.View(func(tx *store.Tx) error {
		info, ok, err := tx.GetAccountInfo(entry.Account)
		if err != nil {
			return err
		}
		exists = ok
		if ok {
			local = info.Head
		}
		return nil
	}); err != nil {
		return err
	}
	if !exists {
		return raierr.New(raierr.GapPrevious, "account unknown locally")
	}
	if local != entry.HeadHash {
		return raierr.New(raierr.Fork, "remote head diverges from local head")
	}
	return nil
}

func lessAccount(a, b primitives.Account) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
