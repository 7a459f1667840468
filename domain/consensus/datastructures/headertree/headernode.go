// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headertree

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/consensus/utils/target"
)

// medianTimeHeaders is the number of previous headers which should be used
// to calculate the median time past.
const medianTimeHeaders = 11

// HeaderNode represents a header within the header tree. Everything except
// the status and transaction counters is immutable once the node is
// created, so nodes may be read concurrently. The mutable parts are updated
// atomically.
type HeaderNode struct {
	hash chainhash.Hash

	// previous is the node of the previous header, nil for genesis.
	previous *HeaderNode

	// skip points to the ancestor at SkipHeight(height), nil for genesis.
	skip *HeaderNode

	height int32

	// chainWork is the total amount of work in the chain from genesis up
	// to and including this node. Genesis carries no work.
	chainWork target.Target

	// Header fields.
	version    int32
	merkleRoot chainhash.Hash
	timestamp  int64
	bits       uint32
	nonce      uint32

	status       atomic.Uint32
	txCount      atomic.Uint64
	chainTxCount atomic.Uint64
}

// NewHeaderNode creates the node of header, linked to previous. previous is
// nil only for the genesis header and must otherwise be the node of
// header.PrevBlock.
func NewHeaderNode(header *wire.BlockHeader, previous *HeaderNode) *HeaderNode {
	node := &HeaderNode{
		hash:       header.BlockHash(),
		previous:   previous,
		version:    header.Version,
		merkleRoot: header.MerkleRoot,
		timestamp:  header.Timestamp.Unix(),
		bits:       header.Bits,
		nonce:      header.Nonce,
	}
	if previous != nil {
		node.height = previous.height + 1
		node.skip = previous.Ancestor(SkipHeight(node.height))
		node.chainWork = previous.chainWork.Add(target.Work(header.Bits))
	}
	return node
}

// Hash returns the hash of the header.
func (node *HeaderNode) Hash() chainhash.Hash {
	return node.hash
}

// Height returns the height of the node. Genesis is at height 0.
func (node *HeaderNode) Height() int32 {
	return node.height
}

// Previous returns the node of the previous header, nil for genesis.
func (node *HeaderNode) Previous() *HeaderNode {
	return node.previous
}

// Skip returns the skip list ancestor of the node.
func (node *HeaderNode) Skip() *HeaderNode {
	return node.skip
}

// ChainWork returns the accumulated work from genesis up to this node.
func (node *HeaderNode) ChainWork() target.Target {
	return node.chainWork
}

// Bits returns the compact target of the header.
func (node *HeaderNode) Bits() uint32 {
	return node.bits
}

// Timestamp returns the header timestamp.
func (node *HeaderNode) Timestamp() time.Time {
	return time.Unix(node.timestamp, 0)
}

// UnixTimestamp returns the header timestamp in seconds since the epoch.
func (node *HeaderNode) UnixTimestamp() int64 {
	return node.timestamp
}

// Version returns the header version.
func (node *HeaderNode) Version() int32 {
	return node.version
}

// PreviousHash returns the hash of the previous header, or the zero hash for
// genesis.
func (node *HeaderNode) PreviousHash() chainhash.Hash {
	if node.previous == nil {
		return chainhash.Hash{}
	}
	return node.previous.hash
}

// Header reconstructs the block header of the node.
func (node *HeaderNode) Header() *wire.BlockHeader {
	previousHash := node.PreviousHash()
	return &wire.BlockHeader{
		Version:    node.version,
		PrevBlock:  previousHash,
		MerkleRoot: node.merkleRoot,
		Timestamp:  time.Unix(node.timestamp, 0),
		Bits:       node.bits,
		Nonce:      node.nonce,
	}
}

// Ancestor returns the ancestor of the node at the provided height by
// following the skip list. It returns nil when height is negative or above
// the height of the node.
func (node *HeaderNode) Ancestor(height int32) *HeaderNode {
	ancestor, _ := node.ancestorWithSteps(height)
	return ancestor
}

// ancestorWithSteps is Ancestor that also returns the number of links
// followed.
func (node *HeaderNode) ancestorWithSteps(height int32) (*HeaderNode, int) {
	if height < 0 || height > node.height {
		return nil, 0
	}

	walk := node
	steps := 0
	for walk.height > height {
		steps++
		skipHeight := SkipHeight(walk.height)
		skipHeightPrevious := SkipHeight(walk.height - 1)
		// Take the skip pointer when it lands exactly, or when it
		// overshoots less than the skip pointer of the previous node
		// would.
		if walk.skip != nil && (skipHeight == height ||
			(skipHeight > height && !(skipHeightPrevious < skipHeight-2 && skipHeightPrevious >= height))) {

			walk = walk.skip
		} else {
			walk = walk.previous
		}
	}
	return walk, steps
}

// RelativeAncestor returns the ancestor distance blocks before this node.
func (node *HeaderNode) RelativeAncestor(distance int32) *HeaderNode {
	return node.Ancestor(node.height - distance)
}

// CalcPastMedianTime returns the median timestamp of the last
// medianTimeHeaders headers up to and including this node.
func (node *HeaderNode) CalcPastMedianTime() time.Time {
	timestamps := make([]int64, 0, medianTimeHeaders)
	for iterNode := node; iterNode != nil && len(timestamps) < medianTimeHeaders; iterNode = iterNode.previous {
		timestamps = append(timestamps, iterNode.timestamp)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return time.Unix(timestamps[len(timestamps)/2], 0)
}

// Status returns the current status of the node.
func (node *HeaderNode) Status() BlockStatus {
	return BlockStatus(node.status.Load())
}

// IsValid returns whether the node reaches the given validity level and
// has not failed.
func (node *HeaderNode) IsValid(upTo BlockStatus) bool {
	return node.Status().IsValid(upTo)
}

// IsFailed returns whether the node or one of its ancestors failed
// validation.
func (node *HeaderNode) IsFailed() bool {
	return node.Status().IsFailed()
}

// HasBlockData returns whether the full block of the node was received.
func (node *HeaderNode) HasBlockData() bool {
	return node.Status().HasFlags(StatusHasBlockData)
}

// RaiseValidity raises the validity level of the node to upTo. It returns
// false when the node is failed or already at that level or above.
func (node *HeaderNode) RaiseValidity(upTo BlockStatus) bool {
	if upTo&^StatusValidityMask != 0 {
		panic(fmt.Sprintf("%s is not a validity level", upTo))
	}
	for {
		old := node.status.Load()
		status := BlockStatus(old)
		if status.IsFailed() || status.Validity() >= upTo {
			return false
		}
		raised := (status &^ StatusValidityMask) | upTo
		if node.status.CompareAndSwap(old, uint32(raised)) {
			return true
		}
	}
}

// AddStatusFlags sets availability or failure flags on the node and
// returns the resulting status. Validity levels are changed through
// RaiseValidity only.
func (node *HeaderNode) AddStatusFlags(flags BlockStatus) BlockStatus {
	if flags&StatusValidityMask != 0 {
		panic(fmt.Sprintf("validity levels cannot be added as flags: %s", flags))
	}
	for {
		old := node.status.Load()
		updated := BlockStatus(old) | flags
		if node.status.CompareAndSwap(old, uint32(updated)) {
			return updated
		}
	}
}

// TransactionCount returns the number of transactions of the block, zero
// when the block data was not received.
func (node *HeaderNode) TransactionCount() uint64 {
	return node.txCount.Load()
}

// SetTransactionCount records the number of transactions of the block.
func (node *HeaderNode) SetTransactionCount(txCount uint64) {
	node.txCount.Store(txCount)
}

// ChainTxCount returns the number of transactions from genesis up to and
// including this block, zero while some block data on the way is missing.
func (node *HeaderNode) ChainTxCount() uint64 {
	return node.chainTxCount.Load()
}

// SetChainTxCount records the number of transactions from genesis up to
// and including this block.
func (node *HeaderNode) SetChainTxCount(chainTxCount uint64) {
	node.chainTxCount.Store(chainTxCount)
}

func (node *HeaderNode) String() string {
	return fmt.Sprintf("%s (height %d)", node.hash, node.height)
}
