// Package testutils provides helpers shared by the consensus tests.
package testutils

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/consensus/utils/target"
)

// NextHeader returns a header building on previous, timestamped spacing
// after it. The nonce makes sibling headers distinct.
func NextHeader(previous *wire.BlockHeader, spacing time.Duration, bits uint32, nonce uint32) *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:    1,
		PrevBlock:  previous.BlockHash(),
		MerkleRoot: chainhash.Hash{byte(nonce), byte(nonce >> 8), byte(nonce >> 16), byte(nonce >> 24)},
		Timestamp:  previous.Timestamp.Add(spacing),
		Bits:       bits,
		Nonce:      nonce,
	}
}

// HeaderChain returns count headers building on start, one spacing apart.
// branchID is mixed into every header so chains built from the same start
// with different IDs do not share hashes.
func HeaderChain(start *wire.BlockHeader, count int, spacing time.Duration, bits uint32,
	branchID uint32) []*wire.BlockHeader {

	headers := make([]*wire.BlockHeader, 0, count)
	previous := start
	for i := 0; i < count; i++ {
		header := NextHeader(previous, spacing, bits, branchID)
		headers = append(headers, header)
		previous = header
	}
	return headers
}

// SolveHeader increments the nonce of header until its hash satisfies its
// own bits. It is meant for easy targets such as the regression network
// limit.
func SolveHeader(header *wire.BlockHeader) {
	headerTarget, _, _ := target.FromCompact(header.Bits)
	for {
		hash := header.BlockHash()
		if !target.FromHash(&hash).GreaterThan(headerTarget) {
			return
		}
		header.Nonce++
	}
}

// SolvedHeaderChain is HeaderChain with every header solved.
func SolvedHeaderChain(start *wire.BlockHeader, count int, spacing time.Duration, bits uint32,
	branchID uint32) []*wire.BlockHeader {

	headers := make([]*wire.BlockHeader, 0, count)
	previous := start
	for i := 0; i < count; i++ {
		header := NextHeader(previous, spacing, bits, branchID)
		SolveHeader(header)
		headers = append(headers, header)
		previous = header
	}
	return headers
}
