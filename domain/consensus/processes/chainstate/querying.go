package chainstate

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
)

func (cs *chainState) Genesis() *headertree.HeaderNode {
	return cs.tree.Genesis()
}

func (cs *chainState) Tip() *headertree.HeaderNode {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.tree.Tip()
}

// BestHeader returns the valid header with the most chain work. It may be
// ahead of the tip until the best chain is moved to it.
func (cs *chainState) BestHeader() *headertree.HeaderNode {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.bestHeader
}

func (cs *chainState) Height() int32 {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.tree.Height()
}

func (cs *chainState) HeadersCount() int {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.tree.Count()
}

func (cs *chainState) TryGetNode(hash *chainhash.Hash) (*headertree.HeaderNode, bool) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.tree.TryGet(hash)
}

func (cs *chainState) TryGetAtHeight(height int32) (*headertree.HeaderNode, bool) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.tree.TryGetAtHeight(height)
}

func (cs *chainState) TryGetNext(node *headertree.HeaderNode) (*headertree.HeaderNode, bool) {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.tree.TryGetNext(node)
}

func (cs *chainState) IsInBestChain(node *headertree.HeaderNode) bool {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return cs.tree.IsInBestChain(node)
}
