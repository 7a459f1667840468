package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
)

// ChainState owns the header tree and the best chain. All of its methods are
// safe for concurrent use.
type ChainState interface {
	AddToBlockIndex(header *wire.BlockHeader) (*headertree.HeaderNode, error)
	SetTip(node *headertree.HeaderNode) (*headertree.ChainChange, error)
	InvalidateBlock(hash *chainhash.Hash) (*headertree.ChainChange, error)
	MarkBlockDataReceived(hash *chainhash.Hash, txCount uint64, hasWitness bool) (*headertree.HeaderNode, error)

	GetTipLocator() []chainhash.Hash
	GetLocator(hash *chainhash.Hash) ([]chainhash.Hash, bool)
	GetLocatorAtHeight(height int32) ([]chainhash.Hash, bool)
	FindForkInGlobalIndex(locator []chainhash.Hash) *headertree.HeaderNode
	BestChainAfter(locator []chainhash.Hash, hashStop *chainhash.Hash, maxNodes int) []*headertree.HeaderNode

	Genesis() *headertree.HeaderNode
	Tip() *headertree.HeaderNode
	BestHeader() *headertree.HeaderNode
	Height() int32
	HeadersCount() int
	TryGetNode(hash *chainhash.Hash) (*headertree.HeaderNode, bool)
	TryGetAtHeight(height int32) (*headertree.HeaderNode, bool)
	TryGetNext(node *headertree.HeaderNode) (*headertree.HeaderNode, bool)
	IsInBestChain(node *headertree.HeaderNode) bool
	HasMinimumChainWork() bool
}
