package target

import "github.com/holiman/uint256"

const (
	compactMantissaMask = 0x007fffff
	compactSignBit      = 0x00800000
)

// FromCompact decodes the compact representation used in the bits field of
// block headers.
//
// The compact form is a 32-bit floating point number: the most significant
// byte is the number of bytes of the represented number (the exponent), bit
// 23 is the sign and the low 23 bits are the mantissa:
//
//	N = (-1^sign) * mantissa * 256^(exponent-3)
//
// Negative numbers are reported through isNegative and numbers that do not
// fit in 256 bits through isOverflow. In both cases the returned target only
// holds the truncated magnitude and must not be used.
func FromCompact(compact uint32) (t Target, isNegative bool, isOverflow bool) {
	exponent := compact >> 24
	mantissa := compact & compactMantissaMask

	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		t.value.SetUint64(uint64(mantissa))
	} else {
		t.value.SetUint64(uint64(mantissa))
		t.value.Lsh(&t.value, uint(8*(exponent-3)))
	}

	isNegative = mantissa != 0 && compact&compactSignBit != 0
	isOverflow = mantissa != 0 && (exponent > 34 ||
		(mantissa > 0xff && exponent > 33) ||
		(mantissa > 0xffff && exponent > 32))
	return t, isNegative, isOverflow
}

// Compact encodes t in the compact form of FromCompact. The encoding is lossy
// when t has more than three significant bytes.
func (t Target) Compact() uint32 {
	exponent := uint32((t.value.BitLen() + 7) / 8)

	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(t.value.Uint64() << (8 * (3 - exponent)))
	} else {
		var shifted uint256.Int
		shifted.Rsh(&t.value, uint(8*(exponent-3)))
		mantissa = uint32(shifted.Uint64())
	}

	// The sign bit must stay clear, so a mantissa using it is moved one
	// byte down.
	if mantissa&compactSignBit != 0 {
		mantissa >>= 8
		exponent++
	}
	return exponent<<24 | mantissa
}
