package headertree

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/domain/consensus/ruleerrors"
)

// HeadersTree indexes every known header node and tracks the best chain, a
// dense height-indexed sequence from genesis to the tip.
//
// HeadersTree is not safe for concurrent use; its owner is expected to
// serialize access.
type HeadersTree struct {
	genesis   *HeaderNode
	nodes     map[chainhash.Hash]*HeaderNode
	children  map[chainhash.Hash][]*HeaderNode
	bestChain []*HeaderNode
}

// ChainChange describes how the best chain moved during SetTip.
type ChainChange struct {
	// ForkPoint is the last node shared by the old and the new best
	// chain.
	ForkPoint *HeaderNode

	// Disconnected holds the nodes removed from the best chain, from the
	// old tip down.
	Disconnected []*HeaderNode

	// Connected holds the nodes added to the best chain, in height order.
	Connected []*HeaderNode
}

// IsReorganization returns whether nodes were removed from the best chain.
func (change *ChainChange) IsReorganization() bool {
	return len(change.Disconnected) > 0
}

// NewHeadersTree creates a tree whose best chain is the genesis node alone.
func NewHeadersTree(genesis *HeaderNode) *HeadersTree {
	return &HeadersTree{
		genesis:   genesis,
		nodes:     map[chainhash.Hash]*HeaderNode{genesis.hash: genesis},
		children:  make(map[chainhash.Hash][]*HeaderNode),
		bestChain: []*HeaderNode{genesis},
	}
}

// Add registers node in the tree. It returns false if a node with the same
// hash is already known. The best chain is not affected.
func (tree *HeadersTree) Add(node *HeaderNode) bool {
	if _, exists := tree.nodes[node.hash]; exists {
		return false
	}
	tree.nodes[node.hash] = node
	if node.previous != nil {
		tree.children[node.previous.hash] = append(tree.children[node.previous.hash], node)
	}
	return true
}

// TryGet returns the node of the given hash.
func (tree *HeadersTree) TryGet(hash *chainhash.Hash) (*HeaderNode, bool) {
	node, ok := tree.nodes[*hash]
	return node, ok
}

// Contains returns whether a node of the given hash is known.
func (tree *HeadersTree) Contains(hash *chainhash.Hash) bool {
	_, ok := tree.nodes[*hash]
	return ok
}

// Count returns the number of known nodes, genesis included.
func (tree *HeadersTree) Count() int {
	return len(tree.nodes)
}

// Children returns the known nodes whose previous node has the given hash.
func (tree *HeadersTree) Children(hash *chainhash.Hash) []*HeaderNode {
	children := tree.children[*hash]
	result := make([]*HeaderNode, len(children))
	copy(result, children)
	return result
}

// ForEachDescendant calls fn for every known descendant of node, parents
// before children.
func (tree *HeadersTree) ForEachDescendant(node *HeaderNode, fn func(descendant *HeaderNode)) {
	queue := append([]*HeaderNode(nil), tree.children[node.hash]...)
	for len(queue) > 0 {
		descendant := queue[0]
		queue = queue[1:]
		fn(descendant)
		queue = append(queue, tree.children[descendant.hash]...)
	}
}

// ForEachNode calls fn for every known node in no particular order.
func (tree *HeadersTree) ForEachNode(fn func(node *HeaderNode)) {
	for _, node := range tree.nodes {
		fn(node)
	}
}

// Genesis returns the genesis node.
func (tree *HeadersTree) Genesis() *HeaderNode {
	return tree.genesis
}

// Tip returns the last node of the best chain.
func (tree *HeadersTree) Tip() *HeaderNode {
	return tree.bestChain[len(tree.bestChain)-1]
}

// Height returns the height of the tip.
func (tree *HeadersTree) Height() int32 {
	return int32(len(tree.bestChain) - 1)
}

// TryGetAtHeight returns the best chain node at the given height.
func (tree *HeadersTree) TryGetAtHeight(height int32) (*HeaderNode, bool) {
	if height < 0 || height > tree.Height() {
		return nil, false
	}
	return tree.bestChain[height], true
}

// IsInBestChain returns whether node is part of the best chain.
func (tree *HeadersTree) IsInBestChain(node *HeaderNode) bool {
	if node == nil || node.height > tree.Height() {
		return false
	}
	return tree.bestChain[node.height] == node
}

// TryGetNext returns the best chain successor of node. It returns false if
// node is not in the best chain or is the tip.
func (tree *HeadersTree) TryGetNext(node *HeaderNode) (*HeaderNode, bool) {
	if !tree.IsInBestChain(node) {
		return nil, false
	}
	return tree.TryGetAtHeight(node.height + 1)
}

// SetTip makes node the tip of the best chain, disconnecting the nodes
// above the fork point with the current best chain and connecting the
// branch leading to node.
func (tree *HeadersTree) SetTip(node *HeaderNode) (*ChainChange, error) {
	if known, ok := tree.nodes[node.hash]; !ok || known != node {
		return nil, ruleerrors.NewErrIndexCorruption("cannot set unknown node %s as tip", node)
	}

	forkPoint := LastCommonAncestor(tree.Tip(), node)
	if forkPoint == nil || !tree.IsInBestChain(forkPoint) {
		return nil, ruleerrors.NewErrIndexCorruption("node %s does not share an ancestor with the best chain", node)
	}

	change := &ChainChange{ForkPoint: forkPoint}
	for height := tree.Height(); height > forkPoint.height; height-- {
		change.Disconnected = append(change.Disconnected, tree.bestChain[height])
	}

	connected := make([]*HeaderNode, node.height-forkPoint.height)
	for iterNode := node; iterNode != forkPoint; iterNode = iterNode.previous {
		connected[iterNode.height-forkPoint.height-1] = iterNode
	}
	change.Connected = connected

	tree.bestChain = append(tree.bestChain[:forkPoint.height+1], connected...)
	return change, nil
}
