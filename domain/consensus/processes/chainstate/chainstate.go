package chainstate

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/domain/consensus/ruleerrors"
	"github.com/pkg/errors"
)

// chainState owns the header tree. A single RWMutex guards the tree, the
// best chain and the best header: every exported method takes it, and the
// NoLock helpers expect it to be held already so they can be composed.
type chainState struct {
	params *chainparams.Params

	lock       sync.RWMutex
	tree       *headertree.HeadersTree
	bestHeader *headertree.HeaderNode
}

// New instantiates a new ChainState whose only node is the genesis of params
func New(params *chainparams.Params) model.ChainState {
	genesis := headertree.NewHeaderNode(&params.GenesisHeader, nil)
	genesis.RaiseValidity(headertree.StatusValidScripts)
	genesis.AddStatusFlags(headertree.StatusHasBlockData)
	genesis.SetTransactionCount(1)
	genesis.SetChainTxCount(1)

	return &chainState{
		params:     params,
		tree:       headertree.NewHeadersTree(genesis),
		bestHeader: genesis,
	}
}

// AddToBlockIndex adds the node of header to the header tree. Adding a known
// header returns its existing node. The previous header must already be in
// the tree.
func (cs *chainState) AddToBlockIndex(header *wire.BlockHeader) (*headertree.HeaderNode, error) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	hash := header.BlockHash()
	if node, ok := cs.tree.TryGet(&hash); ok {
		return node, nil
	}

	previous, ok := cs.tree.TryGet(&header.PrevBlock)
	if !ok {
		return nil, ruleerrors.WrapInIndexCorruption(ruleerrors.NewErrMissingPreviousHeader(&header.PrevBlock),
			"cannot add header %s", hash)
	}

	node := headertree.NewHeaderNode(header, previous)
	if previous.IsFailed() {
		node.AddStatusFlags(headertree.StatusFailedChild)
	} else {
		node.RaiseValidity(headertree.StatusValidTree)
	}
	cs.tree.Add(node)

	if !node.IsFailed() && node.ChainWork().GreaterThan(cs.bestHeader.ChainWork()) {
		cs.bestHeader = node
	}
	log.Tracef("Added header %s to the block index", node)
	return node, nil
}

// SetTip moves the best chain to end at node. node must carry more work than
// the current tip. Readers never observe a partially moved best chain.
func (cs *chainState) SetTip(node *headertree.HeaderNode) (*headertree.ChainChange, error) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	tip := cs.tree.Tip()
	if node == tip {
		return &headertree.ChainChange{ForkPoint: tip}, nil
	}
	if node.IsFailed() {
		return nil, errors.Wrapf(ruleerrors.ErrKnownInvalid, "cannot set %s as tip", node)
	}
	if !node.ChainWork().GreaterThan(tip.ChainWork()) {
		return nil, errors.Wrapf(ruleerrors.ErrInsufficientChainWork,
			"%s has chain work %s, the current tip %s has %s", node, node.ChainWork(), tip, tip.ChainWork())
	}
	return cs.setTipNoLock(node)
}

// setTipNoLock moves the best chain without any work check.
//
// This function MUST be called with the chain state lock held (for writes).
func (cs *chainState) setTipNoLock(node *headertree.HeaderNode) (*headertree.ChainChange, error) {
	change, err := cs.tree.SetTip(node)
	if err != nil {
		return nil, err
	}
	if change.IsReorganization() {
		log.Infof("Reorganized the best chain at %s: %d headers disconnected, %d connected",
			change.ForkPoint, len(change.Disconnected), len(change.Connected))
	}
	log.Debugf("New best chain tip %s", node)
	return change, nil
}

// MarkBlockDataReceived records that the full block of hash arrived.
func (cs *chainState) MarkBlockDataReceived(hash *chainhash.Hash, txCount uint64,
	hasWitness bool) (*headertree.HeaderNode, error) {

	cs.lock.Lock()
	defer cs.lock.Unlock()

	node, ok := cs.tree.TryGet(hash)
	if !ok {
		return nil, errors.Errorf("block data received for unknown header %s", hash)
	}
	if node.HasBlockData() {
		return node, nil
	}

	flags := headertree.StatusHasBlockData
	if hasWitness {
		flags |= headertree.StatusOptWitness
	}
	node.SetTransactionCount(txCount)
	node.AddStatusFlags(flags)
	node.RaiseValidity(headertree.StatusValidTransactions)

	previous := node.Previous()
	if previous == nil || previous.ChainTxCount() > 0 {
		cs.propagateChainTxCountNoLock(node)
	}
	return node, nil
}

// propagateChainTxCountNoLock sets the chain transaction count of node and
// of every descendant whose block data is already present.
//
// This function MUST be called with the chain state lock held (for writes).
func (cs *chainState) propagateChainTxCountNoLock(node *headertree.HeaderNode) {
	queue := []*headertree.HeaderNode{node}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		previousChainTxCount := uint64(0)
		if current.Previous() != nil {
			previousChainTxCount = current.Previous().ChainTxCount()
		}
		current.SetChainTxCount(previousChainTxCount + current.TransactionCount())

		currentHash := current.Hash()
		for _, child := range cs.tree.Children(&currentHash) {
			if child.HasBlockData() {
				queue = append(queue, child)
			}
		}
	}
}

// InvalidateBlock marks the node of hash as failed and all of its
// descendants as failed children, then moves the best chain to the valid
// header with the most work.
func (cs *chainState) InvalidateBlock(hash *chainhash.Hash) (*headertree.ChainChange, error) {
	cs.lock.Lock()
	defer cs.lock.Unlock()

	node, ok := cs.tree.TryGet(hash)
	if !ok {
		return nil, errors.Errorf("cannot invalidate unknown header %s", hash)
	}
	if node == cs.tree.Genesis() {
		return nil, errors.New("cannot invalidate the genesis header")
	}

	node.AddStatusFlags(headertree.StatusFailed)
	cs.tree.ForEachDescendant(node, func(descendant *headertree.HeaderNode) {
		descendant.AddStatusFlags(headertree.StatusFailedChild)
	})
	log.Infof("Invalidated header %s", node)

	if cs.bestHeader.IsFailed() {
		cs.bestHeader = cs.findBestValidHeaderNoLock()
	}
	if cs.tree.IsInBestChain(node) || cs.bestHeader.ChainWork().GreaterThan(cs.tree.Tip().ChainWork()) {
		return cs.setTipNoLock(cs.bestHeader)
	}
	return &headertree.ChainChange{ForkPoint: cs.tree.Tip()}, nil
}

// findBestValidHeaderNoLock returns the non-failed node with the most chain
// work, preferring the deepest valid best chain node on ties.
//
// This function MUST be called with the chain state lock held (for reads).
func (cs *chainState) findBestValidHeaderNoLock() *headertree.HeaderNode {
	best := cs.tree.Tip()
	for best.IsFailed() {
		best = best.Previous()
	}
	cs.tree.ForEachNode(func(node *headertree.HeaderNode) {
		if !node.IsFailed() && node.ChainWork().GreaterThan(best.ChainWork()) {
			best = node
		}
	})
	return best
}

// HasMinimumChainWork returns whether the best header carries at least the
// minimum chain work of the network.
func (cs *chainState) HasMinimumChainWork() bool {
	cs.lock.RLock()
	defer cs.lock.RUnlock()

	return !cs.bestHeader.ChainWork().LessThan(cs.params.MinimumChainWork)
}
