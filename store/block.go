package store

import (
	"fmt"

	"raichain/block"
	"raichain/primitives"
)

// GetBlock fetches a block by hash, decoding the binary wire format.
func (tx *Tx) GetBlock(h primitives.Hash) (*block.Block, bool, error) {
	v := tx.bucket(bucketBlocks).Get(h[:])
	if v == nil {
		return nil, false, nil
	}
	b, err := block.Decode(v)
	if err != nil {
		return nil, false, fmt.Errorf("store: decode block %x: %w", h, err)
	}
	return b, true, nil
}

// PutBlock stores a block keyed by its own hash.
func (tx *Tx) PutBlock(b *block.Block) error {
	h := b.Hash()
	return tx.bucket(bucketBlocks).Put(h[:], b.Encode())
}

// DeleteBlock removes a block record (ROLLBACK, spec §4.4.4).
func (tx *Tx) DeleteBlock(h primitives.Hash) error {
	return tx.bucket(bucketBlocks).Delete(h[:])
}

// GetSuccessor reports the hash of the block that follows h on its account
// chain, if the chain has been extended past it (spec §4.3 "successor
// table", used to walk a chain forward without re-deriving height links).
func (tx *Tx) GetSuccessor(h primitives.Hash) (primitives.Hash, bool, error) {
	v := tx.bucket(bucketSuccessor).Get(h[:])
	if v == nil {
		return primitives.Hash{}, false, nil
	}
	if len(v) != 32 {
		return primitives.Hash{}, false, fmt.Errorf("store: successor record length %d, want 32", len(v))
	}
	var out primitives.Hash
	copy(out[:], v)
	return out, true, nil
}

// PutSuccessor records that successor directly follows h.
func (tx *Tx) PutSuccessor(h, successor primitives.Hash) error {
	return tx.bucket(bucketSuccessor).Put(h[:], successor[:])
}

// DeleteSuccessor removes the successor link from h (ROLLBACK of the block
// that followed h).
func (tx *Tx) DeleteSuccessor(h primitives.Hash) error {
	return tx.bucket(bucketSuccessor).Delete(h[:])
}
