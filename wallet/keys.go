// Package wallet implements the light follower ledger (spec §4.7): an
// observe-only account-chain store fed by server notifications, plus local
// signing of outgoing blocks. Keys derive deterministically from a single
// 256-bit seed, which is kept encrypted at rest. An imported key registers
// only its public account under ImportedKeyIndex; its private key is not
// stored, so it cannot be used for signing later.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"raichain/primitives"
)

// ImportedKeyIndex is the reserved derivation index ad-hoc imported keys are
// registered under; no deterministically-derived key ever uses it (spec
// §4.7 "ad-hoc imported keys use a reserved sentinel index").
const ImportedKeyIndex = 0xFFFFFFFF

// DeriveKey derives the Ed25519 private key at index from seed via
// blake2b(seed ‖ be32(index)) (spec §4.7). The digest is used directly as an
// Ed25519 seed.
func DeriveKey(seed [32]byte, index uint32) (ed25519.PrivateKey, error) {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	digest, err := primitives.Blake2bVar(ed25519.SeedSize, seed[:], idx[:])
	if err != nil {
		return nil, fmt.Errorf("wallet: derive key at index %d: %w", index, err)
	}
	return ed25519.NewKeyFromSeed(digest), nil
}

// AccountAt returns the account (public key) deterministically derived at
// index.
func AccountAt(seed [32]byte, index uint32) (primitives.Account, error) {
	priv, err := DeriveKey(seed, index)
	if err != nil {
		return primitives.Account{}, err
	}
	var acc primitives.Account
	copy(acc[:], priv.Public().(ed25519.PublicKey))
	return acc, nil
}

// scryptN/R/P are the memory-hard KDF cost parameters for deriving an
// AES-256 key from a wallet password (spec §4.7 "a memory-hard KDF").
// SealSeed and OpenSeed always use these constants; the scrypt_n/r/p
// fields of config.Wallet are not read by this package.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltLen      = 16
)

// sealedSeed is the on-disk layout of a wallet's encrypted seed record
// (spec §4.7 "AES-CTR encrypted seed storage"). The store package only
// ever sees these bytes as an opaque blob.
type sealedSeed struct {
	Salt       [saltLen]byte
	IV         [aes.BlockSize]byte
	Ciphertext []byte
}

func encodeSealed(s sealedSeed) []byte {
	out := make([]byte, 0, saltLen+aes.BlockSize+len(s.Ciphertext))
	out = append(out, s.Salt[:]...)
	out = append(out, s.IV[:]...)
	out = append(out, s.Ciphertext...)
	return out
}

func decodeSealed(b []byte) (sealedSeed, error) {
	if len(b) < saltLen+aes.BlockSize {
		return sealedSeed{}, fmt.Errorf("wallet: encrypted seed record too short")
	}
	var s sealedSeed
	copy(s.Salt[:], b[:saltLen])
	copy(s.IV[:], b[saltLen:saltLen+aes.BlockSize])
	s.Ciphertext = append([]byte(nil), b[saltLen+aes.BlockSize:]...)
	return s, nil
}

// SealSeed encrypts seed under a key derived from password via scrypt,
// returning the opaque blob store.PutWalletBlob persists.
func SealSeed(seed [32]byte, password []byte) ([]byte, error) {
	var salt [saltLen]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, fmt.Errorf("wallet: generate salt: %w", err)
	}
	key, err := scrypt.Key(password, salt[:], scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("wallet: scrypt: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: new cipher: %w", err)
	}
	var iv [aes.BlockSize]byte
	if _, err := rand.Read(iv[:]); err != nil {
		return nil, fmt.Errorf("wallet: generate iv: %w", err)
	}
	ciphertext := make([]byte, len(seed))
	cipher.NewCTR(block, iv[:]).XORKeyStream(ciphertext, seed[:])
	return encodeSealed(sealedSeed{Salt: salt, IV: iv, Ciphertext: ciphertext}), nil
}

// OpenSeed decrypts a blob produced by SealSeed. It returns an error only
// when the record is malformed (too short, or ciphertext not 32 bytes) or
// scrypt fails. AES-CTR offers no authentication, so a wrong password is
// not detected: it yields 32 bytes that differ from the original seed.
func OpenSeed(blob []byte, password []byte) ([32]byte, error) {
	s, err := decodeSealed(blob)
	if err != nil {
		return [32]byte{}, err
	}
	key, err := scrypt.Key(password, s.Salt[:], scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return [32]byte{}, fmt.Errorf("wallet: scrypt: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return [32]byte{}, fmt.Errorf("wallet: new cipher: %w", err)
	}
	if len(s.Ciphertext) != 32 {
		return [32]byte{}, fmt.Errorf("wallet: decrypted seed has wrong length %d", len(s.Ciphertext))
	}
	var seed [32]byte
	cipher.NewCTR(block, s.IV[:]).XORKeyStream(seed[:], s.Ciphertext)
	return seed, nil
}

// NewSeed generates a fresh random 256-bit wallet seed.
func NewSeed() ([32]byte, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("wallet: generate seed: %w", err)
	}
	return seed, nil
}
