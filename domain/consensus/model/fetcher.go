package model

import (
	"context"

	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
)

// Fetcher is a source blocks can be downloaded from, usually a connected
// peer. Implementations are used as map keys, so they must be comparable;
// pointer types are.
type Fetcher interface {
	// Score is the general quality of the fetcher, higher is better.
	Score() uint32

	// FetchBlockScore returns how suitable the fetcher is to download the
	// block of node. Zero means it cannot serve it.
	FetchBlockScore(node *headertree.HeaderNode) uint32

	// TryFetch issues the request for the block of node without waiting
	// for the block. minimumScore is the score the fetcher was selected
	// with; a fetcher whose score dropped below it should refuse.
	// Returning false or an error lets the next candidate try.
	TryFetch(ctx context.Context, node *headertree.HeaderNode, minimumScore uint32) (bool, error)
}

// StallAwareFetcher is a Fetcher that wants to know when a block it was
// asked for did not arrive in time.
type StallAwareFetcher interface {
	Fetcher
	OnFetchStalled(node *headertree.HeaderNode)
}
