package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"raichain/callback"
	"raichain/raierr"
)

// Envelope is the wallet-side alias for the node's callback wire shape
// (spec §6 "Callback surface"): `{notify, block, operation, error_code,
// last_confirm_height?}`.
type Envelope = callback.Envelope

// Notifier consumes the node's callback stream over a websocket connection
// and applies each envelope to the wallet's follower ledger (spec §4.7 "a
// wallet... receives canonical blocks and receivable notifications via an
// external websocket"). It reconnects with a fixed backoff on any I/O
// error.
type Notifier struct {
	url    string
	ledger *Ledger
	log    *logrus.Logger
	backoff time.Duration
}

// NewNotifier builds a Notifier that applies incoming envelopes to ledger.
func NewNotifier(url string, ledger *Ledger, log *logrus.Logger) *Notifier {
	return &Notifier{url: url, ledger: ledger, log: log, backoff: 2 * time.Second}
}

// Run connects and processes envelopes until ctx is cancelled, reconnecting
// after every dropped connection (spec §5 "wallet action thread").
func (n *Notifier) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := n.runOnce(ctx); err != nil {
			n.log.WithError(err).Warn("wallet: notification stream dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(n.backoff):
		}
	}
}

func (n *Notifier) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, n.url, nil)
	if err != nil {
		return fmt.Errorf("wallet: dial notification stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("wallet: read notification: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			n.log.WithError(err).Warn("wallet: malformed callback envelope")
			continue
		}
		if err := n.apply(env); err != nil {
			n.log.WithError(err).WithFields(logrus.Fields{
				"operation": env.Operation,
				"notify":    env.Notify,
			}).Warn("wallet: failed to apply notification")
		}
	}
}

func (n *Notifier) apply(env Envelope) error {
	if env.ErrorCode != raierr.OK || env.Block == nil {
		return nil
	}
	switch env.Operation {
	case "append":
		_, err := n.ledger.Apply(env.Block, false)
		return err
	case "confirm":
		_, err := n.ledger.Apply(env.Block, true)
		return err
	case "rollback", "drop":
		// The follower ledger only removes blocks in response to a
		// conflicting confirmed head (Ledger.resolveConflict); a bare
		// rollback/drop notification carries nothing actionable without
		// that conflicting block, so it is observed but not applied.
		return nil
	default:
		return fmt.Errorf("wallet: unknown callback operation %q", env.Operation)
	}
}
