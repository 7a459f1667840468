package app

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/domain/consensus"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headerstore"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/domain/consensus/processes/blockfetcher"
	"github.com/kaspanet/chaincore/infrastructure/config"
	"github.com/kaspanet/chaincore/infrastructure/db/ldb"
	"github.com/kaspanet/chaincore/util/panics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// ComponentManager is a wrapper for all the chaincore services
type ComponentManager struct {
	cfg          *config.Config
	headerDB     *ldb.LevelDB
	consensus    consensus.Consensus
	blockFetcher *blockfetcher.Manager
	registry     *prometheus.Registry

	started, shutdown int32
}

// NewComponentManager returns a new ComponentManager instance.
// Use Start() to begin all services within this ComponentManager
func NewComponentManager(cfg *config.Config) (*ComponentManager, error) {
	headerDB, repository, err := openHeaderRepository(cfg)
	if err != nil {
		return nil, err
	}

	componentManager, err := newComponentManager(cfg, headerDB, repository)
	if err != nil {
		if headerDB != nil {
			headerDB.Close()
		}
		return nil, err
	}
	return componentManager, nil
}

func newComponentManager(cfg *config.Config, headerDB *ldb.LevelDB,
	repository model.HeaderRepository) (*ComponentManager, error) {

	consensusInstance, err := consensus.NewFactory().NewConsensus(&consensus.Config{
		Params:     cfg.NetParams(),
		Repository: repository,
	})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	fetcherConfig := cfg.BlockFetcherConfig()
	fetcherConfig.MetricsRegisterer = registry
	blockFetcher, err := blockfetcher.New(consensusInstance.ChainState(), fetcherConfig)
	if err != nil {
		return nil, err
	}
	consensusInstance.SetOnNewHeadersValidatedHandler(blockFetcher.OnNewHeadersValidated)

	return &ComponentManager{
		cfg:          cfg,
		headerDB:     headerDB,
		consensus:    consensusInstance,
		blockFetcher: blockFetcher,
		registry:     registry,
	}, nil
}

// openHeaderRepository opens the header database of cfg, or returns an
// in-memory repository and a nil database if the header database is
// disabled.
func openHeaderRepository(cfg *config.Config) (*ldb.LevelDB, model.HeaderRepository, error) {
	if cfg.NoHeaderDB {
		log.Infof("Keeping headers in memory")
		return nil, headerstore.NewMemoryStore(), nil
	}

	dbPath := cfg.HeaderDBPath()
	err := os.MkdirAll(dbPath, 0700)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "could not create the header database directory")
	}
	doesVersionFileExist, err := checkHeaderDBVersion(dbPath)
	if err != nil {
		return nil, nil, err
	}

	log.Infof("Loading header database from '%s'", dbPath)
	headerDB, err := ldb.NewLevelDB(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if !doesVersionFileExist {
		err := createHeaderDBVersionFile(dbPath)
		if err != nil {
			headerDB.Close()
			return nil, nil, err
		}
	}

	repository, err := headerstore.NewLevelDBStore(headerDB, cfg.HeaderCacheSize)
	if err != nil {
		headerDB.Close()
		return nil, nil, err
	}
	return headerDB, repository, nil
}

// Start launches all the chaincore services.
func (a *ComponentManager) Start(ctx context.Context) {
	// Already started?
	if atomic.AddInt32(&a.started, 1) != 1 {
		return
	}

	log.Trace("Starting chaincore")

	err := a.blockFetcher.Start(ctx)
	if err != nil {
		panics.Exit(log, fmt.Sprintf("Error starting the block fetcher: %+v", err))
	}
}

// Stop gracefully shuts down all the chaincore services.
func (a *ComponentManager) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&a.shutdown, 1) != 1 {
		log.Infof("Chaincore is already in the process of shutting down")
		return
	}

	log.Warnf("Chaincore shutting down")

	err := a.blockFetcher.Stop()
	if err != nil {
		log.Errorf("Error stopping the block fetcher: %+v", err)
	}

	if a.headerDB != nil {
		err := a.headerDB.Close()
		if err != nil {
			log.Errorf("Error closing the header database: %+v", err)
		}
	}
}

// HandleBlockData records that the data of a block arrived from fetcher,
// which may be nil when the source is unknown, and frees its download slot.
func (a *ComponentManager) HandleBlockData(hash *chainhash.Hash, txCount uint64, hasWitness bool,
	fetcher model.Fetcher) error {

	_, err := a.consensus.OnBlockDataReceived(hash, txCount, hasWitness)
	if err != nil {
		return err
	}
	a.blockFetcher.OnBlockReceived(&model.BlockReceivedEvent{BlockHash: *hash, Fetcher: fetcher})
	return nil
}

// RegisterFetcher makes fetcher eligible for block downloads. The fetcher
// is unregistered once ctx is done.
func (a *ComponentManager) RegisterFetcher(ctx context.Context, fetcher model.Fetcher) {
	a.blockFetcher.RegisterFetcher(fetcher)
	spawn(func() {
		<-ctx.Done()
		a.blockFetcher.UnregisterFetcher(fetcher)
	})
}

// Consensus returns the Consensus associated with this ComponentManager
func (a *ComponentManager) Consensus() consensus.Consensus {
	return a.consensus
}

// BlockFetcher returns the block fetcher manager associated with this ComponentManager
func (a *ComponentManager) BlockFetcher() *blockfetcher.Manager {
	return a.blockFetcher
}

// MetricsGatherer returns the gatherer of the metrics exported by this ComponentManager
func (a *ComponentManager) MetricsGatherer() prometheus.Gatherer {
	return a.registry
}
