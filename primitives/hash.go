package primitives

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Hash is a 256-bit BLAKE2b digest (spec §3 "BlockHash").
type Hash [32]byte

// Account is a 256-bit Ed25519 public key, also used as a representative
// identity and receive destination (spec §3 "Account").
type Account [32]byte

// Signature is a 512-bit Ed25519 signature over a block's Hash (spec §3).
type Signature [64]byte

var ZeroHash = Hash{}
var ZeroAccount = Account{}

// BlakeHash256 hashes the concatenation of parts with BLAKE2b-256, the
// algorithm spec §4.1 pins for block hashing.
func BlakeHash256(parts ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on an oversized key, which we never pass.
		panic(fmt.Sprintf("primitives: blake2b init: %v", err))
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Blake2bVar hashes parts into an output of size n bytes, used by the wallet
// key derivation scheme (spec §4.7, n=32 or n=64).
func Blake2bVar(n int, parts ...[]byte) ([]byte, error) {
	h, err := blake2b.New(n, nil)
	if err != nil {
		return nil, fmt.Errorf("primitives: blake2b init: %w", err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil), nil
}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Hex returns the fixed-length uppercase hex form spec §4.1 requires for
// on-the-wire hash/account/signature text encoding.
func (h Hash) Hex() string { return upperHex(h[:]) }

func (a Account) String() string { return a.Address() }

// Hex returns the fixed-length uppercase hex encoding of the raw public key.
func (a Account) Hex() string { return upperHex(a[:]) }

func (s Signature) Hex() string { return upperHex(s[:]) }

func upperHex(b []byte) string {
	const hexDigits = "0123456789ABCDEF"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

// HashFromHex decodes a fixed-length hex string into a Hash, rejecting any
// length or alphabet mismatch (spec §4.1).
func HashFromHex(s string) (Hash, error) {
	b, err := decodeFixedHex(s, 32)
	if err != nil {
		return Hash{}, err
	}
	var out Hash
	copy(out[:], b)
	return out, nil
}

// AccountFromHex decodes a fixed-length hex public key.
func AccountFromHex(s string) (Account, error) {
	b, err := decodeFixedHex(s, 32)
	if err != nil {
		return Account{}, err
	}
	var out Account
	copy(out[:], b)
	return out, nil
}

// SignatureFromHex decodes a fixed-length hex signature.
func SignatureFromHex(s string) (Signature, error) {
	b, err := decodeFixedHex(s, 64)
	if err != nil {
		return Signature{}, err
	}
	var out Signature
	copy(out[:], b)
	return out, nil
}

func decodeFixedHex(s string, n int) ([]byte, error) {
	if len(s) != n*2 {
		return nil, fmt.Errorf("primitives: expected %d hex characters, got %d", n*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("primitives: %w", err)
	}
	return b, nil
}
