// Package target implements the 256-bit unsigned values used as proof of
// work targets and as accumulated chain work.
package target

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Target is a 256-bit unsigned integer. The zero value is zero and is ready
// to use. Targets are values: arithmetic methods return a new Target and
// never modify the receiver. Overflowing arithmetic wraps modulo 2^256.
type Target struct {
	value uint256.Int
}

// FromUint64 returns the target holding n.
func FromUint64(n uint64) Target {
	var t Target
	t.value.SetUint64(n)
	return t
}

// FromBytesBE interprets b as a big-endian 256-bit integer.
func FromBytesBE(b [32]byte) Target {
	var t Target
	t.value.SetBytes32(b[:])
	return t
}

// FromBytesLE interprets b as a little-endian 256-bit integer.
func FromBytesLE(b [32]byte) Target {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return FromBytesBE(b)
}

// FromHash interprets a header hash as a number. Hashes are stored in
// little-endian byte order.
func FromHash(hash *chainhash.Hash) Target {
	return FromBytesLE(*hash)
}

// FromBig converts a non-negative big.Int of at most 256 bits.
func FromBig(n *big.Int) (Target, error) {
	if n.Sign() < 0 {
		return Target{}, errors.Errorf("cannot convert negative number %s to a target", n)
	}
	value, overflow := uint256.FromBig(n)
	if overflow {
		return Target{}, errors.Errorf("number %s does not fit in 256 bits", n)
	}
	return Target{value: *value}, nil
}

// FromHex parses a hexadecimal number with an optional 0x prefix.
func FromHex(s string) (Target, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if trimmed == "" {
		return Target{}, errors.Errorf("empty hex number %q", s)
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return Target{}, errors.Errorf("invalid hex number %q", s)
	}
	return FromBig(n)
}

// Cmp compares t and other and returns -1, 0 or +1.
func (t Target) Cmp(other Target) int {
	return t.value.Cmp(&other.value)
}

// Equal returns whether t == other.
func (t Target) Equal(other Target) bool {
	return t.value.Eq(&other.value)
}

// LessThan returns whether t < other.
func (t Target) LessThan(other Target) bool {
	return t.value.Lt(&other.value)
}

// GreaterThan returns whether t > other.
func (t Target) GreaterThan(other Target) bool {
	return t.value.Gt(&other.value)
}

// IsZero returns whether t == 0.
func (t Target) IsZero() bool {
	return t.value.IsZero()
}

// Add returns t + other.
func (t Target) Add(other Target) Target {
	var result Target
	result.value.Add(&t.value, &other.value)
	return result
}

// MulUint64 returns t * n.
func (t Target) MulUint64(n uint64) Target {
	var result Target
	result.value.Mul(&t.value, uint256.NewInt(n))
	return result
}

// DivUint64 returns t / n. It panics if n is zero.
func (t Target) DivUint64(n uint64) Target {
	if n == 0 {
		panic("target: division by zero")
	}
	var result Target
	result.value.Div(&t.value, uint256.NewInt(n))
	return result
}

// MulDivUint64 returns t * mul / div computed without intermediate
// truncation. The boolean reports whether the result does not fit in 256
// bits, in which case the returned target must not be used. It panics if div
// is zero.
func (t Target) MulDivUint64(mul uint64, div uint64) (Target, bool) {
	if div == 0 {
		panic("target: division by zero")
	}
	result := t.value.ToBig()
	result.Mul(result, new(big.Int).SetUint64(mul))
	result.Quo(result, new(big.Int).SetUint64(div))
	value, overflow := uint256.FromBig(result)
	if overflow {
		return Target{}, true
	}
	return Target{value: *value}, false
}

// BitLen returns the number of bits required to represent t.
func (t Target) BitLen() int {
	return t.value.BitLen()
}

// BytesBE returns the big-endian representation of t.
func (t Target) BytesBE() [32]byte {
	return t.value.Bytes32()
}

// Big returns t as a newly allocated big.Int.
func (t Target) Big() *big.Int {
	return t.value.ToBig()
}

// String returns t as 64 hexadecimal digits.
func (t Target) String() string {
	b := t.value.Bytes32()
	return hex.EncodeToString(b[:])
}
