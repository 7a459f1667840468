package target

// Work returns the expected number of hashes required to produce a hash
// satisfying the target encoded in bits, that is 2^256 / (target + 1).
// Zero, negative and overflowing targets carry no work.
func Work(bits uint32) Target {
	t, isNegative, isOverflow := FromCompact(bits)
	if isNegative || isOverflow || t.IsZero() {
		return Target{}
	}

	// 2^256 does not fit in 256 bits, so compute the equivalent
	// (2^256 - target - 1) / (target + 1) + 1 instead.
	var denominator, work Target
	denominator.value.AddUint64(&t.value, 1)
	work.value.Not(&t.value)
	work.value.Div(&work.value, &denominator.value)
	work.value.AddUint64(&work.value, 1)
	return work
}
