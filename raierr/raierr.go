// Package raierr defines the single tagged error enumeration shared across
// raichain: codecs, block validation, the processor, the ledger store and
// bootstrap all return a Code instead of ad-hoc error strings, so callers
// (RPC, callback bridge, CLI) can branch on a stable value per spec.
package raierr

import "fmt"

// Code is a stable, user-facing error identifier. The zero value OK never
// appears on a returned error.
type Code int

const (
	OK Code = iota

	// Codec errors
	Stream
	DecodeHex
	JSONBlockCredit
	JSONBlockCounter
	JSONBlockHeight
	JSONBlockBalance
	JSONBlockNoteLength
	JSONInvalidAddress

	// Block validation / field errors
	NoteLength
	Counter
	AccountExceedTransactions
	BadRepresentative
	BadBalance
	BadLink
	BadTimestamp
	BadSignature
	UnknownBlockType

	// Processor outcomes
	GapPrevious
	GapReceiveSource
	GapRewardSource
	Pruned
	Fork
	Exists
	NotEqualToHead
	RollbackReceived
	RollbackRewarded
	RollbackSourcePruned
	RollbackNonHead
	PrependIgnore

	// Ledger errors
	LedgerBlockGet
	LedgerInconsistent
	LedgerAccountNotFound

	// Bootstrap errors
	BootstrapOutOfOrder
	BootstrapSizeLimit
	BootstrapSlowPeer
	BootstrapAttackHeuristic

	// Crypto
	CryptoVerifyFailed
	CryptoKDFFailed

	// Catch-all
	Unexpected
)

var messages = map[Code]string{
	OK:                        "ok",
	Stream:                    "malformed binary stream",
	DecodeHex:                 "invalid hexadecimal encoding",
	JSONBlockCredit:           "invalid credit field",
	JSONBlockCounter:          "invalid counter field",
	JSONBlockHeight:           "invalid height field",
	JSONBlockBalance:          "invalid balance field",
	JSONBlockNoteLength:       "note length does not match encoded data",
	JSONInvalidAddress:        "invalid account address",
	NoteLength:                "note length does not match encoded data",
	Counter:                   "counter violates per-day sequencing rule",
	AccountExceedTransactions: "account exceeded its daily transaction budget",
	BadRepresentative:         "representative change not permitted on this opcode",
	BadBalance:                "balance violates opcode arithmetic rule",
	BadLink:                   "link field invalid for opcode",
	BadTimestamp:              "timestamp out of allowed range",
	BadSignature:              "signature verification failed",
	UnknownBlockType:          "unknown block type or opcode",
	GapPrevious:               "previous block not found locally",
	GapReceiveSource:          "receive source send not found locally",
	GapRewardSource:           "reward source not found locally",
	Pruned:                    "referenced height is below the account tail",
	Fork:                      "a different block already exists at this height",
	Exists:                    "block already present",
	NotEqualToHead:            "block does not match the stored head",
	RollbackReceived:          "rollback blocked: receivable already consumed elsewhere",
	RollbackRewarded:          "rollback blocked: rewardable already consumed elsewhere",
	RollbackSourcePruned:      "rollback blocked: receive source is pruned",
	RollbackNonHead:           "rollback must proceed to the successor first",
	PrependIgnore:             "prepend does not extend the current tail",
	LedgerBlockGet:            "failed to read block from ledger store",
	LedgerInconsistent:        "ledger store is in an inconsistent state",
	LedgerAccountNotFound:     "account not found",
	BootstrapOutOfOrder:       "bootstrap batch violates cursor ordering",
	BootstrapSizeLimit:        "bootstrap batch exceeded the size limit",
	BootstrapSlowPeer:         "bootstrap peer throughput below floor",
	BootstrapAttackHeuristic:  "bootstrap peer tripped the attack heuristic",
	CryptoVerifyFailed:        "cryptographic verification failed",
	CryptoKDFFailed:           "key derivation failed",
	Unexpected:                "unexpected internal error",
}

// String implements fmt.Stringer, returning the stable human message for a code.
func (c Code) String() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return "unknown error code"
}

// Err is the concrete error value carrying a Code plus optional context.
type Err struct {
	Code    Code
	Context string
	Wrapped error
}

func (e *Err) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s", e.Code.String(), e.Context)
	}
	return e.Code.String()
}

func (e *Err) Unwrap() error { return e.Wrapped }

// Kind reports the stable error code, satisfying any `Kind() Code` checker.
func (e *Err) Kind() Code { return e.Code }

// New constructs an *Err for the given code with optional free-form context.
func New(code Code, context string) *Err {
	return &Err{Code: code, Context: context}
}

// Wrap attaches a code to an underlying error without losing it (errors.Unwrap
// still reaches the original cause).
func Wrap(code Code, context string, err error) *Err {
	return &Err{Code: code, Context: context, Wrapped: err}
}

// Is reports whether err carries the given code, walking the Unwrap chain.
func Is(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Err); ok {
			if e.Code == code {
				return true
			}
			err = e.Wrapped
			continue
		}
		type kinder interface{ Kind() Code }
		if k, ok := err.(kinder); ok && k.Kind() == code {
			return true
		}
		break
	}
	return false
}
