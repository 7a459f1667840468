package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
)

// NewHeadersValidatedEvent is published when headers were validated and
// added to the header tree.
type NewHeadersValidatedEvent struct {
	// LastValidatedHeaderNode is the highest node of the batch.
	LastValidatedHeaderNode *headertree.HeaderNode

	// NewHeadersFoundCount is the number of nodes ending at
	// LastValidatedHeaderNode that are new to the best chain.
	NewHeadersFoundCount int
}

// BlockReceivedEvent is published when the data of a block arrived.
type BlockReceivedEvent struct {
	BlockHash chainhash.Hash

	// Fetcher is the fetcher the block came from, nil if unknown.
	Fetcher Fetcher
}

// OnNewHeadersValidatedHandler is a handler function that's triggered
// when new headers are validated
type OnNewHeadersValidatedHandler func(event *NewHeadersValidatedEvent)
