package callback

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"raichain/block"
	"raichain/process"
	"raichain/raierr"
)

// operationNames maps a process.Operation to the wire name spec §6 gives
// the callback envelope's "operation" field. APPEND and PREPEND both land
// on the ledger via an append-shaped write, so both read as "append".
var operationNames = map[process.Operation]string{
	process.OpAppend:   "append",
	process.OpPrepend:  "append",
	process.OpRollback: "rollback",
	process.OpConfirm:  "confirm",
}

// Broadcaster fans one Envelope out to every configured HTTP POST target
// and every attached websocket subscriber per processed block. It
// implements process.Observer, so wiring it in is a single Subscribe call
// alongside metrics.NewProcessObserver.
type Broadcaster struct {
	urls       []string
	httpClient *http.Client
	log        *logrus.Logger
	upgrader   websocket.Upgrader

	mu   sync.Mutex
	subs map[*websocket.Conn]chan Envelope
}

// NewBroadcaster builds a Broadcaster that POSTs to each of urls and
// serves websocket subscribers via ServeWS.
func NewBroadcaster(urls []string, log *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		urls:       urls,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        log,
		subs:       make(map[*websocket.Conn]chan Envelope),
	}
}

// OnBlock implements process.Observer.
func (b *Broadcaster) OnBlock(op process.Operation, blk *block.Block, code raierr.Code) {
	name, ok := operationNames[op]
	if !ok {
		return
	}
	env := Envelope{Notify: "block", Block: blk, Operation: name, ErrorCode: code}
	go b.postAll(env)
	b.pushAll(env)
}

func (b *Broadcaster) postAll(env Envelope) {
	if len(b.urls) == 0 {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		b.log.WithError(err).Warn("callback: marshal envelope")
		return
	}
	for _, url := range b.urls {
		resp, err := b.httpClient.Post(url, "application/json", bytes.NewReader(payload))
		if err != nil {
			b.log.WithError(err).WithField("url", url).Warn("callback: post failed")
			continue
		}
		resp.Body.Close()
	}
}

func (b *Broadcaster) pushAll(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn, ch := range b.subs {
		select {
		case ch <- env:
		default:
			b.log.WithField("remote", conn.RemoteAddr().String()).Warn("callback: subscriber lagging, dropping envelope")
		}
	}
}

// ServeWS upgrades r into a websocket subscriber and streams envelopes to
// it until the connection breaks.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithError(err).Warn("callback: websocket upgrade failed")
		return
	}
	ch := make(chan Envelope, 64)
	b.mu.Lock()
	b.subs[conn] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, conn)
		b.mu.Unlock()
		close(ch)
		conn.Close()
	}()

	for env := range ch {
		if err := conn.WriteJSON(env); err != nil {
			return
		}
	}
}
