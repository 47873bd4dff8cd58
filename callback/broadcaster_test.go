package callback

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/primitives"
	"raichain/process"
	"raichain/raierr"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestOnBlockPostsToHTTPTargets(t *testing.T) {
	var mu sync.Mutex
	var got Envelope
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&got)
		close(done)
	}))
	defer srv.Close()

	b := NewBroadcaster([]string{srv.URL}, testLogger())
	blk := &block.Block{Kind: block.KindTx, Opcode: block.OpSend, Height: 1}
	b.OnBlock(process.OpAppend, blk, raierr.OK)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for callback POST")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Operation != "append" {
		t.Fatalf("expected operation %q, got %q", "append", got.Operation)
	}
	if got.ErrorCode != raierr.OK {
		t.Fatalf("expected error_code OK, got %v", got.ErrorCode)
	}
}

func TestOnBlockIgnoresUnmappedOperation(t *testing.T) {
	b := NewBroadcaster(nil, testLogger())
	// process.Operation has no value beyond OpConfirm; calling OnBlock with
	// an out-of-range value must not panic and must be a no-op.
	b.OnBlock(process.Operation(99), &block.Block{}, raierr.OK)
}

func TestServeWSStreamsEnvelope(t *testing.T) {
	b := NewBroadcaster(nil, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(b.ServeWS))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine a moment to register the subscriber before
	// the envelope is pushed.
	time.Sleep(50 * time.Millisecond)

	var account primitives.Account
	account[0] = 7
	blk := &block.Block{Kind: block.KindTx, Opcode: block.OpSend, Account: account, Height: 2}
	b.OnBlock(process.OpConfirm, blk, raierr.OK)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if env.Operation != "confirm" {
		t.Fatalf("expected operation %q, got %q", "confirm", env.Operation)
	}
	if env.Block == nil || env.Block.Account != account {
		t.Fatalf("expected pushed block to carry the confirmed account")
	}
}
