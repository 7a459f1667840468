package headertree

// invertLowestOne turns the lowest set bit of n off.
func invertLowestOne(n int32) int32 {
	return n & (n - 1)
}

// SkipHeight returns the height the skip pointer of a node at the given
// height points to.
func SkipHeight(height int32) int32 {
	if height < 2 {
		return 0
	}

	// Determine which height to jump back to. Any number strictly lower
	// than height is acceptable, but the following expression seems to
	// perform well in simulations (max 110 steps to go back up to 2**18
	// blocks).
	if height&1 == 1 {
		return invertLowestOne(invertLowestOne(height-1)) + 1
	}
	return invertLowestOne(height)
}

// LastCommonAncestor returns the highest node that is an ancestor of both a
// and b. It returns nil if either is nil or they belong to different trees.
func LastCommonAncestor(a, b *HeaderNode) *HeaderNode {
	if a == nil || b == nil {
		return nil
	}
	if a.height > b.height {
		a = a.Ancestor(b.height)
	} else if b.height > a.height {
		b = b.Ancestor(a.height)
	}
	for a != b && a != nil && b != nil {
		a = a.previous
		b = b.previous
	}
	if a != b {
		return nil
	}
	return a
}
