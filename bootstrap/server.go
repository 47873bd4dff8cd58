package bootstrap

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/process"
	"raichain/raierr"
	"raichain/store"
)

// activeSetCap bounds the LIGHT-mode working set (spec §4.6 "active
// accounts... recently touched on the server").
const activeSetCap = 4096

// ActiveSet tracks the accounts recently touched by local block processing,
// the working set a LIGHT pull iterates instead of every account (spec
// §4.6). It implements process.Observer so the processor feeds it directly.
type ActiveSet struct {
	mu    sync.Mutex
	order []primitives.Account
	seen  map[primitives.Account]struct{}
}

// NewActiveSet builds an empty active-accounts tracker.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{seen: make(map[primitives.Account]struct{})}
}

// OnBlock implements process.Observer, marking b.Account touched.
func (s *ActiveSet) OnBlock(op process.Operation, b *block.Block, code raierr.Code) {
	if code != raierr.OK {
		return
	}
	s.Touch(b.Account)
}

// Touch marks account recently active, evicting the oldest entry once the
// set is at capacity.
func (s *ActiveSet) Touch(account primitives.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[account]; ok {
		return
	}
	if len(s.order) >= activeSetCap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	s.order = append(s.order, account)
	s.seen[account] = struct{}{}
}

// Snapshot returns every currently tracked account, oldest first.
func (s *ActiveSet) Snapshot() []primitives.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]primitives.Account, len(s.order))
	copy(out, s.order)
	return out
}

// Server accepts bootstrap client connections and serves FULL, LIGHT and
// FORK pulls directly from the ledger store (spec §4.6, §5 "bootstrap
// acceptor plus per-connection server tasks").
type Server struct {
	db     *store.DB
	log    *logrus.Logger
	active *ActiveSet

	mu   sync.Mutex
	conn int
}

// NewServer builds a Server over db. active may be nil if LIGHT pulls are
// not served (callers relying only on FULL/FORK).
func NewServer(db *store.DB, log *logrus.Logger, active *ActiveSet) *Server {
	return &Server{db: db, log: log, active: active}
}

// Serve accepts connections on ln until ctx is cancelled, handling each on
// its own goroutine (spec §5 long-lived thread "bootstrap acceptor plus
// per-connection server tasks").
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			s.log.WithError(err).Warn("bootstrap: accept failed")
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.mu.Lock()
	s.conn++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn--
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		req, err := decodeRequest(payload)
		if err != nil {
			s.log.WithError(err).Warn("bootstrap: malformed request")
			return
		}
		if req.Max == 0 {
			continue // pause/resume heartbeat: nothing to send back
		}
		if err := s.serveOne(conn, req); err != nil {
			s.log.WithError(err).WithField("mode", req.Mode).Warn("bootstrap: serving pull failed")
			return
		}
	}
}

func (s *Server) serveOne(conn net.Conn, req Request) error {
	switch req.Mode {
	case ModeFull:
		return s.serveAccountBatch(conn, req, s.fullCursor)
	case ModeLight:
		return s.serveAccountBatch(conn, req, s.lightCursor)
	case ModeFork:
		return s.serveFork(conn, req)
	default:
		return writeFrame(conn, encodeAccountEntry(endOfAccountBatch))
	}
}

type cursorFunc func(tx *store.Tx, after *primitives.Account, afterHeight uint64) (AccountEntry, bool, error)

func (s *Server) fullCursor(tx *store.Tx, after *primitives.Account, _ uint64) (AccountEntry, bool, error) {
	account, info, ok, err := tx.NextAccountInfo(after)
	if err != nil || !ok {
		return AccountEntry{}, false, err
	}
	return AccountEntry{Account: account, HeadHash: info.Head, HeadHeight: info.Height}, true, nil
}

// lightCursor walks the in-memory active set rather than the full table,
// ignoring the store cursor entirely; it visits the set in account key order,
// resuming at the first account after the cursor, so the client's ordering
// check holds (spec §4.6 "active accounts" semantics).
func (s *Server) lightCursor(tx *store.Tx, after *primitives.Account, _ uint64) (AccountEntry, bool, error) {
	if s.active == nil {
		return AccountEntry{}, false, nil
	}
	accounts := s.active.Snapshot()
	sort.Slice(accounts, func(i, j int) bool { return lessAccount(accounts[i], accounts[j]) })
	var start int
	if after != nil {
		start = len(accounts)
		for i, a := range accounts {
			if lessAccount(*after, a) {
				start = i
				break
			}
		}
	}
	if start >= len(accounts) {
		return AccountEntry{}, false, nil
	}
	account := accounts[start]
	info, exists, err := tx.GetAccountInfo(account)
	if err != nil {
		return AccountEntry{}, false, err
	}
	if !exists {
		return AccountEntry{}, false, nil
	}
	return AccountEntry{Account: account, HeadHash: info.Head, HeadHeight: info.Height}, true, nil
}

func (s *Server) serveAccountBatch(conn net.Conn, req Request, next cursorFunc) error {
	after := req.CursorAccount
	count := uint32(0)
	return s.db.View(func(tx *store.Tx) error {
		for count < req.Max {
			entry, ok, err := next(tx, &after, req.CursorHeight)
			if err != nil {
				return err
			}
			if !ok {
				return writeFrame(conn, encodeAccountEntry(endOfAccountBatch))
			}
			if err := writeFrame(conn, encodeAccountEntry(entry)); err != nil {
				return err
			}
			after = entry.Account
			count++
		}
		return writeFrame(conn, encodeAccountEntry(endOfAccountBatch))
	})
}

func (s *Server) serveFork(conn net.Conn, req Request) error {
	after := req.CursorAccount
	afterHeight := req.CursorHeight
	count := uint32(0)
	return s.db.View(func(tx *store.Tx) error {
		for count < req.Max {
			slot, ok, err := tx.NextFork(&after, afterHeight)
			if err != nil {
				return err
			}
			if !ok || len(slot.Hashes) < 2 {
				return writeFrame(conn, nil)
			}
			a, existsA, err := tx.GetBlock(slot.Hashes[0])
			if err != nil {
				return err
			}
			b, existsB, err := tx.GetBlock(slot.Hashes[1])
			if err != nil {
				return err
			}
			if existsA && existsB {
				if err := writeFrame(conn, a.Encode()); err != nil {
					return err
				}
				if err := writeFrame(conn, b.Encode()); err != nil {
					return err
				}
			}
			after = slot.Account
			afterHeight = slot.Height
			count++
		}
		return nil
	})
}
