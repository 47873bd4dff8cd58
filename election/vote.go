// Package election implements spec §4.5: the fork manager and the weighted
// representative voting that resolves each contested (account, height)
// chain position in favor of one candidate block, then feeds the winner
// back into package process as a CONFIRM or a ROLLBACK-then-APPEND
// sequence.
package election

import (
	"crypto/ed25519"

	"raichain/primitives"
)

// Vote is a representative's signed ballot for one candidate block at a
// single (account, height) contest (spec §4.5 "signed (representative,
// timestamp, signature, block_hash) votes").
type Vote struct {
	Representative primitives.Account
	BlockHash      primitives.Hash
	Timestamp      uint64
	Signature      primitives.Signature
}

// voteHash is the digest a representative signs: every vote field except
// the signature, the same exclude-the-signature convention block hashing
// uses (spec §4.2).
func voteHash(rep primitives.Account, blockHash primitives.Hash, ts uint64) primitives.Hash {
	var tsBuf [8]byte
	for i := 0; i < 8; i++ {
		tsBuf[7-i] = byte(ts >> (8 * i))
	}
	return primitives.BlakeHash256(rep[:], blockHash[:], tsBuf[:])
}

// SignVote produces a Vote for blockHash by rep, signed with priv.
func SignVote(rep primitives.Account, priv ed25519.PrivateKey, blockHash primitives.Hash, ts uint64) Vote {
	h := voteHash(rep, blockHash, ts)
	sig := ed25519.Sign(priv, h[:])
	var out primitives.Signature
	copy(out[:], sig)
	return Vote{Representative: rep, BlockHash: blockHash, Timestamp: ts, Signature: out}
}

// Verify reports whether the vote carries a valid signature from
// v.Representative.
func (v Vote) Verify() bool {
	h := voteHash(v.Representative, v.BlockHash, v.Timestamp)
	return ed25519.Verify(ed25519.PublicKey(v.Representative[:]), h[:], v.Signature[:])
}
