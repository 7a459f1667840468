package chainstate

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
)

// GetTipLocator returns the block locator of the best chain tip.
func (cs *chainState) GetTipLocator() []chainhash.Hash {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return headertree.BuildLocator(cs.tree.Tip())
}

// GetLocator returns the block locator of the header of hash. The boolean is
// false if the header is not known.
func (cs *chainState) GetLocator(hash *chainhash.Hash) ([]chainhash.Hash, bool) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	node, ok := cs.tree.TryGet(hash)
	if !ok {
		return nil, false
	}
	return headertree.BuildLocator(node), true
}

// GetLocatorAtHeight returns the block locator of the best chain node at
// height.
func (cs *chainState) GetLocatorAtHeight(height int32) ([]chainhash.Hash, bool) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	node, ok := cs.tree.TryGetAtHeight(height)
	if !ok {
		return nil, false
	}
	return headertree.BuildLocator(node), true
}

// FindForkInGlobalIndex returns the highest best chain node among the
// locator entries. An entry descending from the tip resolves to the tip,
// and genesis is returned when no entry is known.
func (cs *chainState) FindForkInGlobalIndex(locator []chainhash.Hash) *headertree.HeaderNode {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.findForkInGlobalIndexNoLock(locator)
}

// BestChainAfter returns the best chain nodes following the fork point of
// locator, up to and including the node of hashStop, and at most maxNodes
// of them. All nodes come from the same best chain.
func (cs *chainState) BestChainAfter(locator []chainhash.Hash, hashStop *chainhash.Hash,
	maxNodes int) []*headertree.HeaderNode {

	cs.lock.RLock()
	defer cs.lock.RUnlock()

	node := cs.findForkInGlobalIndexNoLock(locator)
	nodes := make([]*headertree.HeaderNode, 0)
	for len(nodes) < maxNodes {
		next, ok := cs.tree.TryGetNext(node)
		if !ok {
			break
		}
		nodes = append(nodes, next)
		if hashStop != nil && next.Hash() == *hashStop {
			break
		}
		node = next
	}
	return nodes
}

// This function MUST be called with the chain state lock held (for reads).
func (cs *chainState) findForkInGlobalIndexNoLock(locator []chainhash.Hash) *headertree.HeaderNode {
	tip := cs.tree.Tip()
	for i := range locator {
		node, ok := cs.tree.TryGet(&locator[i])
		if !ok {
			continue
		}
		if cs.tree.IsInBestChain(node) {
			return node
		}
		if node.Ancestor(tip.Height()) == tip {
			return tip
		}
	}
	return cs.tree.Genesis()
}
