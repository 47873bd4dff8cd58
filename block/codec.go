package block

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"raichain/primitives"
)

// canonicalBytes serializes every field that participates in the block hash,
// in wire order, excluding the signature (spec §4.1 "hash covers all fields
// except signature").
func (b *Block) canonicalBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(b.Kind))
	buf.WriteByte(byte(b.Opcode))
	writeU16(&buf, b.Credit)
	writeU32(&buf, b.Counter)
	writeU64(&buf, b.Timestamp)
	writeU64(&buf, b.Height)
	buf.Write(b.Account[:])
	buf.Write(b.Previous[:])
	buf.Write(b.Representative[:])
	bal := b.Balance.Bytes16()
	buf.Write(bal[:])
	buf.Write(b.Link[:])
	switch b.Kind {
	case KindTx:
		writeNote(&buf, b.Note)
	case KindAd:
		price := b.Price.Bytes16()
		buf.Write(price[:])
		writeU64(&buf, b.ValidFrom)
		writeU64(&buf, b.ValidUntil)
	}
	return buf.Bytes()
}

// Hash computes the canonical BLAKE2b-256 hash of the block (spec §4.1).
func (b *Block) Hash() primitives.Hash {
	return primitives.BlakeHash256(b.canonicalBytes())
}

// Sign signs the block's hash with priv and stores the signature in place.
func (b *Block) Sign(priv ed25519.PrivateKey) {
	h := b.Hash()
	sig := ed25519.Sign(priv, h[:])
	copy(b.Signature[:], sig)
}

// VerifySignature reports whether the block's signature validates against
// its Account public key and its own hash (spec §4.4.2 "common validation").
func (b *Block) VerifySignature() bool {
	h := b.Hash()
	return ed25519.Verify(ed25519.PublicKey(b.Account[:]), h[:], b.Signature[:])
}

// Encode renders the block in the fixed binary wire format used by bootstrap
// streaming and the ledger store (spec §6, seed test S5).
func (b *Block) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(b.canonicalBytes())
	buf.Write(b.Signature[:])
	return buf.Bytes()
}

// Decode parses the binary wire format produced by Encode. It does not
// verify the signature; callers run common validation separately.
func Decode(data []byte) (*Block, error) {
	r := bytes.NewReader(data)
	b := &Block{}

	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("block: decode kind: %w", err)
	}
	b.Kind = Kind(kindByte)

	opByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("block: decode opcode: %w", err)
	}
	b.Opcode = Opcode(opByte)

	if b.Credit, err = readU16(r); err != nil {
		return nil, fmt.Errorf("block: decode credit: %w", err)
	}
	if b.Counter, err = readU32(r); err != nil {
		return nil, fmt.Errorf("block: decode counter: %w", err)
	}
	if b.Timestamp, err = readU64(r); err != nil {
		return nil, fmt.Errorf("block: decode timestamp: %w", err)
	}
	if b.Height, err = readU64(r); err != nil {
		return nil, fmt.Errorf("block: decode height: %w", err)
	}
	if err := readFixed(r, b.Account[:]); err != nil {
		return nil, fmt.Errorf("block: decode account: %w", err)
	}
	if err := readFixed(r, b.Previous[:]); err != nil {
		return nil, fmt.Errorf("block: decode previous: %w", err)
	}
	if err := readFixed(r, b.Representative[:]); err != nil {
		return nil, fmt.Errorf("block: decode representative: %w", err)
	}
	var bal [16]byte
	if err := readFixed(r, bal[:]); err != nil {
		return nil, fmt.Errorf("block: decode balance: %w", err)
	}
	b.Balance, err = primitives.NewAmountFromBigEndian(bal[:])
	if err != nil {
		return nil, fmt.Errorf("block: balance: %w", err)
	}
	if err := readFixed(r, b.Link[:]); err != nil {
		return nil, fmt.Errorf("block: decode link: %w", err)
	}

	switch b.Kind {
	case KindTx:
		note, err := readNote(r)
		if err != nil {
			return nil, fmt.Errorf("block: decode note: %w", err)
		}
		b.Note = note
	case KindAd:
		var price [16]byte
		if err := readFixed(r, price[:]); err != nil {
			return nil, fmt.Errorf("block: decode price: %w", err)
		}
		b.Price, err = primitives.NewAmountFromBigEndian(price[:])
		if err != nil {
			return nil, fmt.Errorf("block: price: %w", err)
		}
		if b.ValidFrom, err = readU64(r); err != nil {
			return nil, fmt.Errorf("block: decode valid_from: %w", err)
		}
		if b.ValidUntil, err = readU64(r); err != nil {
			return nil, fmt.Errorf("block: decode valid_until: %w", err)
		}
	}

	if err := readFixed(r, b.Signature[:]); err != nil {
		return nil, fmt.Errorf("block: decode signature: %w", err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("block: %d trailing bytes after decode", r.Len())
	}
	return b, nil
}

func writeNote(buf *bytes.Buffer, n *Note) {
	if n == nil {
		writeU32(buf, 0)
		return
	}
	writeU32(buf, uint32(2+len(n.Data)))
	buf.WriteByte(n.Type)
	buf.WriteByte(n.Encode)
	buf.Write(n.Data)
}

func readNote(r *bytes.Reader) (*Note, error) {
	length, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	if length < 2 {
		return nil, fmt.Errorf("note length %d shorter than header", length)
	}
	if length > MaxNoteLen+2 {
		return nil, fmt.Errorf("note length %d exceeds max", length)
	}
	typ, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	enc, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	data := make([]byte, length-2)
	if err := readFixed(r, data); err != nil {
		return nil, err
	}
	return &Note{Type: typ, Encode: enc, Data: data}, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if err := readFixed(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if err := readFixed(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if err := readFixed(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readFixed(r *bytes.Reader, out []byte) error {
	n, err := r.Read(out)
	if err != nil {
		return err
	}
	if n != len(out) {
		return fmt.Errorf("short read: got %d want %d", n, len(out))
	}
	return nil
}
