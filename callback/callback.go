// Package callback implements the node's outbound callback surface (spec
// §6 "Callback surface"): one Envelope per processed block, delivered both
// as an HTTP POST and, to any attached websocket client, pushed over that
// connection. wallet.Notifier is the client-side counterpart that consumes
// the websocket stream.
package callback

import (
	"raichain/block"
	"raichain/raierr"
)

// Envelope is the wire shape of a single callback message:
// `{notify, block, operation, error_code, last_confirm_height?}`.
type Envelope struct {
	Notify            string       `json:"notify"`
	Block             *block.Block `json:"block"`
	Operation         string       `json:"operation"`
	ErrorCode         raierr.Code  `json:"error_code"`
	LastConfirmHeight *uint64      `json:"last_confirm_height,omitempty"`
}
