package wallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// NewMnemonic generates a 24-word recovery phrase and the 256-bit seed it
// encodes (spec §4.8 domain-stack wiring: "recovery mnemonic for the
// wallet seed").
func NewMnemonic() (phrase string, seed [32]byte, err error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", seed, fmt.Errorf("wallet: generate entropy: %w", err)
	}
	phrase, err = bip39.NewMnemonic(entropy)
	if err != nil {
		return "", seed, fmt.Errorf("wallet: build mnemonic: %w", err)
	}
	copy(seed[:], entropy)
	return phrase, seed, nil
}

// SeedFromMnemonic recovers the 256-bit seed a mnemonic phrase encodes,
// validating its checksum.
func SeedFromMnemonic(phrase string) ([32]byte, error) {
	var seed [32]byte
	if !bip39.IsMnemonicValid(phrase) {
		return seed, fmt.Errorf("wallet: invalid mnemonic")
	}
	entropy, err := bip39.EntropyFromMnemonic(phrase)
	if err != nil {
		return seed, fmt.Errorf("wallet: recover entropy: %w", err)
	}
	if len(entropy) != 32 {
		return seed, fmt.Errorf("wallet: mnemonic entropy length %d, want 32", len(entropy))
	}
	copy(seed[:], entropy)
	return seed, nil
}
