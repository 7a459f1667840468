package headerstore

import (
	"bytes"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/infrastructure/db/ldb"
	"github.com/pkg/errors"
)

var bucket = []byte("header/")

// levelDBStore stores serialized headers in leveldb, keyed by hash, and
// keeps the recently used ones in a cache.
type levelDBStore struct {
	db    *ldb.LevelDB
	cache *lru.Cache[chainhash.Hash, wire.BlockHeader]

	// addLock serializes TryAdd so that the existence check and the write
	// are atomic.
	addLock sync.Mutex
}

// NewLevelDBStore returns a HeaderRepository persisting headers in db.
func NewLevelDBStore(db *ldb.LevelDB, cacheSize int) (model.HeaderRepository, error) {
	cache, err := lru.New[chainhash.Hash, wire.BlockHeader](cacheSize)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create a header cache of size %d", cacheSize)
	}
	return &levelDBStore{db: db, cache: cache}, nil
}

func (ls *levelDBStore) TryGet(hash *chainhash.Hash) (*wire.BlockHeader, bool, error) {
	if header, ok := ls.cache.Get(*hash); ok {
		return &header, true, nil
	}

	headerBytes, err := ls.db.Get(ls.hashAsKey(hash))
	if err != nil {
		return nil, false, err
	}
	if headerBytes == nil {
		return nil, false, nil
	}

	header, err := ls.deserializeHeader(headerBytes)
	if err != nil {
		return nil, false, errors.Wrapf(err, "could not deserialize stored header %s", hash)
	}
	ls.cache.Add(*hash, *header)
	return header, true, nil
}

func (ls *levelDBStore) TryAdd(header *wire.BlockHeader) (bool, error) {
	hash := header.BlockHash()

	ls.addLock.Lock()
	defer ls.addLock.Unlock()

	if ls.cache.Contains(hash) {
		return false, nil
	}
	key := ls.hashAsKey(&hash)
	exists, err := ls.db.Has(key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	headerBytes, err := ls.serializeHeader(header)
	if err != nil {
		return false, err
	}
	err = ls.db.Put(key, headerBytes)
	if err != nil {
		return false, err
	}
	ls.cache.Add(hash, *header)
	return true, nil
}

func (ls *levelDBStore) hashAsKey(hash *chainhash.Hash) []byte {
	key := make([]byte, 0, len(bucket)+chainhash.HashSize)
	key = append(key, bucket...)
	return append(key, hash[:]...)
}

func (ls *levelDBStore) serializeHeader(header *wire.BlockHeader) ([]byte, error) {
	var buf bytes.Buffer
	err := header.Serialize(&buf)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

func (ls *levelDBStore) deserializeHeader(headerBytes []byte) (*wire.BlockHeader, error) {
	header := &wire.BlockHeader{}
	err := header.Deserialize(bytes.NewReader(headerBytes))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return header, nil
}
