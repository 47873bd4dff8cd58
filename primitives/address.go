package primitives

import (
	"fmt"
	"math/big"
	"strings"
)

// addressAlphabet is the protocol's base-32 alphabet. It deliberately
// excludes visually ambiguous characters (0, 2, l, v) the way the
// Nano/RaiBlocks address encoding this format is modeled on does.
const addressAlphabet = "13456789abcdefghijkmnopqrstuwxyz"

// AddressPrefix is the fixed human-readable prefix for every textual address
// (spec §4.1 "fixed-prefix, base-32-with-checksum form").
const AddressPrefix = "rai_"

var addressAlphabetIndex [256]int8

func init() {
	for i := range addressAlphabetIndex {
		addressAlphabetIndex[i] = -1
	}
	for i, c := range addressAlphabet {
		addressAlphabetIndex[byte(c)] = int8(i)
	}
}

// Address renders the account as the checksummed base-32 textual address:
// prefix + 52 characters encoding the 256-bit key + 8 characters encoding a
// 5-byte BLAKE2b checksum of the key, reversed.
func (a Account) Address() string {
	body := encodeBase32(a[:], 52)
	check, err := Blake2bVar(5, a[:])
	if err != nil {
		panic(fmt.Sprintf("primitives: address checksum: %v", err))
	}
	reverse(check)
	checkEnc := encodeBase32(check, 8)
	return AddressPrefix + body + checkEnc
}

// ParseAddress decodes and validates a textual address, rejecting wrong
// prefix, wrong length, wrong alphabet, or a bad checksum (spec §4.1).
func ParseAddress(s string) (Account, error) {
	if !strings.HasPrefix(s, AddressPrefix) {
		return Account{}, fmt.Errorf("primitives: address missing %q prefix", AddressPrefix)
	}
	rest := s[len(AddressPrefix):]
	if len(rest) != 60 {
		return Account{}, fmt.Errorf("primitives: address has %d body characters, want 60", len(rest))
	}
	body, checkPart := rest[:52], rest[52:]

	keyBytes, err := decodeBase32(body, 32)
	if err != nil {
		return Account{}, err
	}
	var acc Account
	copy(acc[:], keyBytes)

	check, err := decodeBase32(checkPart, 5)
	if err != nil {
		return Account{}, err
	}
	want, err := Blake2bVar(5, acc[:])
	if err != nil {
		return Account{}, err
	}
	reverse(want)
	if string(check) != string(want) {
		return Account{}, fmt.Errorf("primitives: address checksum mismatch")
	}
	return acc, nil
}

// encodeBase32 encodes data (big-endian, unsigned) as exactly nChars
// characters of the address alphabet, most significant digit first.
func encodeBase32(data []byte, nChars int) string {
	v := new(big.Int).SetBytes(data)
	digits := make([]byte, nChars)
	base := big.NewInt(32)
	rem := new(big.Int)
	for i := nChars - 1; i >= 0; i-- {
		v.DivMod(v, base, rem)
		digits[i] = addressAlphabet[rem.Int64()]
	}
	return string(digits)
}

// decodeBase32 decodes nChars alphabet characters into exactly outBytes
// bytes (big-endian, zero padded at the top), rejecting any value that
// would not fit or any character outside the alphabet.
func decodeBase32(s string, outBytes int) ([]byte, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("primitives: empty address field")
	}
	v := new(big.Int)
	base := big.NewInt(32)
	for _, c := range []byte(s) {
		idx := addressAlphabetIndex[c]
		if idx < 0 {
			return nil, fmt.Errorf("primitives: invalid address character %q", c)
		}
		v.Mul(v, base)
		v.Add(v, big.NewInt(int64(idx)))
	}
	raw := v.Bytes()
	if len(raw) > outBytes {
		return nil, fmt.Errorf("primitives: address field overflows %d bytes", outBytes)
	}
	out := make([]byte, outBytes)
	copy(out[outBytes-len(raw):], raw)
	return out, nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
