package wallet

import (
	"bytes"
	"crypto/ed25519"
	"testing"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	k1, err := DeriveKey(seed, 0)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	k2, err := DeriveKey(seed, 0)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("same seed+index produced different keys")
	}
	k3, err := DeriveKey(seed, 1)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatalf("different indices produced the same key")
	}
}

func TestAccountAtMatchesDerivedKey(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	priv, err := DeriveKey(seed, 5)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	account, err := AccountAt(seed, 5)
	if err != nil {
		t.Fatalf("AccountAt: %v", err)
	}
	if !bytes.Equal(account[:], priv.Public().(ed25519.PublicKey)) {
		t.Fatalf("AccountAt does not match DeriveKey's public key")
	}
}

func TestSealOpenSeedRoundTrip(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	password := []byte("correct horse battery staple")
	blob, err := SealSeed(seed, password)
	if err != nil {
		t.Fatalf("SealSeed: %v", err)
	}
	got, err := OpenSeed(blob, password)
	if err != nil {
		t.Fatalf("OpenSeed: %v", err)
	}
	if got != seed {
		t.Fatalf("OpenSeed did not recover the original seed")
	}
}

func TestOpenSeedWrongPassword(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	blob, err := SealSeed(seed, []byte("password-a"))
	if err != nil {
		t.Fatalf("SealSeed: %v", err)
	}
	// A wrong password recovers 32 bytes of garbage rather than erroring
	// (AES-CTR has no authentication tag), so this just checks the seed
	// it hands back does not match the original.
	got, err := OpenSeed(blob, []byte("password-b"))
	if err != nil {
		return
	}
	if got == seed {
		t.Fatalf("wrong password recovered the original seed")
	}
}
