package headertree

import (
	"math/bits"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// locatorLinearEntries is the number of entries a locator lists one height
// apart before the step starts doubling.
const locatorLinearEntries = 10

// BuildLocator returns the block locator of node: the hashes of node and of
// its ancestors, densely for the first locatorLinearEntries entries and then
// at exponentially increasing distances, always ending with genesis.
//
// For a node at height h the locator has at most
// locatorLinearEntries + ceil(log2(h)) entries.
func BuildLocator(node *HeaderNode) []chainhash.Hash {
	if node == nil {
		return nil
	}

	locator := make([]chainhash.Hash, 0, locatorLinearEntries+log2Ceil(node.height)+1)
	step := int32(1)
	for iterNode := node; ; {
		locator = append(locator, iterNode.hash)
		if iterNode.height == 0 {
			break
		}

		height := iterNode.height - step
		if height < 0 {
			height = 0
		}
		iterNode = iterNode.Ancestor(height)

		if len(locator) >= locatorLinearEntries {
			step *= 2
		}
	}
	return locator
}

func log2Ceil(n int32) int {
	if n <= 1 {
		return 0
	}
	return bits.Len32(uint32(n - 1))
}
