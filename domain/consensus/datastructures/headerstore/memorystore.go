package headerstore

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/kaspanet/chaincore/domain/consensus/model"
)

type memoryStore struct {
	mtx     sync.RWMutex
	headers map[chainhash.Hash]wire.BlockHeader
}

// NewMemoryStore returns a HeaderRepository that keeps headers in memory.
func NewMemoryStore() model.HeaderRepository {
	return &memoryStore{headers: make(map[chainhash.Hash]wire.BlockHeader)}
}

func (ms *memoryStore) TryGet(hash *chainhash.Hash) (*wire.BlockHeader, bool, error) {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	header, ok := ms.headers[*hash]
	if !ok {
		return nil, false, nil
	}
	return &header, true, nil
}

func (ms *memoryStore) TryAdd(header *wire.BlockHeader) (bool, error) {
	hash := header.BlockHash()

	ms.mtx.Lock()
	defer ms.mtx.Unlock()

	if _, exists := ms.headers[hash]; exists {
		return false, nil
	}
	ms.headers[hash] = *header
	return true, nil
}
