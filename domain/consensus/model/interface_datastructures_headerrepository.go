package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// HeaderRepository stores the headers accepted into the header tree
type HeaderRepository interface {
	// TryGet returns the header of the given hash. The boolean is false
	// when the header is not stored.
	TryGet(hash *chainhash.Hash) (*wire.BlockHeader, bool, error)

	// TryAdd stores header. It returns false if it was already stored.
	TryAdd(header *wire.BlockHeader) (bool, error)
}
