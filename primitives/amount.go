// Package primitives implements the fixed-width integer, account, hash and
// signature types that every other raichain package builds on (spec §4.1).
package primitives

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// maxAmount is 2^128 - 1, the ceiling for a canonical Amount value.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Amount is a 128-bit unsigned integer denominated in the smallest unit of
// the currency (spec §3 "Amount"). It is backed by holiman/uint256.Int (the
// same fixed-width-arithmetic type erigon uses for account balances).
// Constructors and parsers reject values above 128 bits; Add does not check
// its result (see Add), so a sum can grow into the unused upper half of the
// register.
type Amount struct {
	v uint256.Int
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

// NewAmountFromUint64 builds an Amount from a machine integer.
func NewAmountFromUint64(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// NewAmountFromBigEndian decodes a big-endian byte slice (up to 16 bytes) into
// an Amount.
func NewAmountFromBigEndian(b []byte) (Amount, error) {
	if len(b) > 16 {
		return Amount{}, fmt.Errorf("amount: %d bytes exceeds 128 bits", len(b))
	}
	var a Amount
	a.v.SetBytes(b)
	return a, nil
}

// ParseAmountDecimal parses a canonical decimal string with the restrictions
// spec §4.1 requires of every JSON numeric field: no empty string, no leading
// zero except "0" itself, no sign, no hex prefix, and it must fit in 128 bits.
func ParseAmountDecimal(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("amount: empty string")
	}
	if s != "0" && s[0] == '0' {
		return Amount{}, fmt.Errorf("amount: leading zero")
	}
	if s[0] == '-' {
		return Amount{}, fmt.Errorf("amount: negative sign not permitted")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return Amount{}, fmt.Errorf("amount: hex prefix not permitted")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Amount{}, fmt.Errorf("amount: non-decimal character %q", r)
		}
	}
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("amount: invalid decimal %q", s)
	}
	if bi.Cmp(maxAmount) > 0 {
		return Amount{}, fmt.Errorf("amount: %s overflows 128 bits", s)
	}
	var a Amount
	a.v.SetFromBig(bi)
	return a, nil
}

// String renders the canonical decimal form used on the wire (spec §4.1,
// §6 "numeric fields are transmitted as decimal strings").
func (a Amount) String() string {
	return a.v.ToBig().String()
}

// Bytes16 returns the big-endian 16-byte encoding used by the block binary
// format (spec §6, balance field width 16).
func (a Amount) Bytes16() [16]byte {
	var out [16]byte
	b := a.v.Bytes()
	copy(out[16-len(b):], b)
	return out
}

// Uint64 reports the low 64 bits; callers must already know the value fits.
func (a Amount) Uint64() uint64 { return a.v.Uint64() }

// Cmp compares two amounts the same way big.Int.Cmp does.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Add returns a+b; it is the caller's responsibility to keep callers from
// legitimately producing a sum larger than 128 bits, since that can only
// happen if an invariant elsewhere has already been violated.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.v.Add(&a.v, &b.v)
	return out
}

// Sub returns a-b. Reports an error if b > a (amounts never go negative).
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Amount{}, fmt.Errorf("amount: subtraction underflow")
	}
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out, nil
}

// Mul returns a*b as a big.Int-checked product, erroring on 128-bit overflow.
func (a Amount) Mul(b Amount) (Amount, error) {
	prod := new(big.Int).Mul(a.v.ToBig(), b.v.ToBig())
	if prod.Cmp(maxAmount) > 0 {
		return Amount{}, fmt.Errorf("amount: multiplication overflows 128 bits")
	}
	var out Amount
	out.v.SetFromBig(prod)
	return out, nil
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Big returns the value as a math/big.Int, for callers doing ratio math
// (e.g. reward-rate basis points) that uint256 does not expose directly.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// AmountFromBig builds an Amount from a big.Int, rejecting negative values
// and anything wider than 128 bits.
func AmountFromBig(v *big.Int) (Amount, error) {
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount: negative value")
	}
	if v.Cmp(maxAmount) > 0 {
		return Amount{}, fmt.Errorf("amount: %s overflows 128 bits", v)
	}
	var a Amount
	a.v.SetFromBig(v)
	return a, nil
}
