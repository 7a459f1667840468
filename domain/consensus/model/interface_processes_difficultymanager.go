package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
)

// DifficultyManager provides methods to resolve the difficulty a header
// must carry and to verify its proof of work
type DifficultyManager interface {
	NextWorkRequired(previous *headertree.HeaderNode, candidate *wire.BlockHeader) (uint32, error)
	CheckProofOfWork(hash *chainhash.Hash, bits uint32) error
}
