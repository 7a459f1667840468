package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
)

// HeaderValidationContext is the input of a header validation run.
type HeaderValidationContext struct {
	Header *wire.BlockHeader
	Hash   chainhash.Hash

	// Previous is the node of the previous header, nil when it is not
	// known.
	Previous *headertree.HeaderNode
}

// HeaderValidator validates headers before they enter the header tree
type HeaderValidator interface {
	ValidateHeader(validationContext *HeaderValidationContext) error
}
