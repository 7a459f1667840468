package app

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/app/protocol/peerfetcher"
	"github.com/kaspanet/chaincore/domain/chainparams"
	"github.com/kaspanet/chaincore/domain/consensus/utils/testutils"
	"github.com/kaspanet/chaincore/infrastructure/config"
)

type fakeRequester struct {
	lock      sync.Mutex
	requested []chainhash.Hash
}

func (r *fakeRequester) RequestBlock(_ context.Context, hash *chainhash.Hash) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.requested = append(r.requested, *hash)
	return nil
}

func (r *fakeRequester) requestCount() int {
	r.lock.Lock()
	defer r.lock.Unlock()

	return len(r.requested)
}

func newTestConfig(t *testing.T, dataDir string, noHeaderDB bool) *config.Config {
	params := *chainparams.RegressionNetParams
	return &config.Config{Flags: &config.Flags{
		DataDir:              dataDir,
		LogDir:               t.TempDir(),
		DebugLevel:           "info",
		MaxBlocksInFlight:    200,
		ScoreRefreshInterval: time.Minute,
		StallCheckInterval:   time.Minute,
		StallTimeoutBase:     1.0,
		StallTimeoutPerPeer:  0.5,
		NoHeaderDB:           noHeaderDB,
		HeaderCacheSize:      100,
		NetworkFlags: config.NetworkFlags{
			RegressionTest:  true,
			ActiveNetParams: &params,
		},
	}}
}

func waitFor(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", description)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestComponentManagerFetchesNewHeaders(t *testing.T) {
	for _, noHeaderDB := range []bool{true, false} {
		cfg := newTestConfig(t, t.TempDir(), noHeaderDB)
		componentManager, err := NewComponentManager(cfg)
		if err != nil {
			t.Fatalf("TestComponentManagerFetchesNewHeaders: NewComponentManager: %s", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		componentManager.Start(ctx)

		params := cfg.NetParams()
		headers := testutils.SolvedHeaderChain(&params.GenesisHeader, 5, 10*time.Minute, params.PowLimitBits, 0)
		result, err := componentManager.Consensus().ValidateAndInsertHeaders(headers)
		if err != nil {
			t.Fatalf("TestComponentManagerFetchesNewHeaders: ValidateAndInsertHeaders: %s", err)
		}

		requester := &fakeRequester{}
		fetcher := peerfetcher.New(requester, peerfetcher.Config{ID: "test peer", SupportsWitness: true})
		fetcher.UpdateBestKnownHeader(result.LastNode)
		componentManager.RegisterFetcher(ctx, fetcher)

		waitFor(t, "the blocks to be requested", func() bool {
			return requester.requestCount() == len(headers)
		})

		for _, header := range headers {
			hash := header.BlockHash()
			err := componentManager.HandleBlockData(&hash, 1, true, fetcher)
			if err != nil {
				t.Fatalf("TestComponentManagerFetchesNewHeaders: HandleBlockData: %s", err)
			}
		}
		if componentManager.BlockFetcher().InFlightCount() != 0 {
			t.Fatalf("TestComponentManagerFetchesNewHeaders: blocks are still in flight")
		}
		if !result.LastNode.HasBlockData() || result.LastNode.ChainTxCount() != 6 {
			t.Fatalf("TestComponentManagerFetchesNewHeaders: the block data was not recorded")
		}

		families, err := componentManager.MetricsGatherer().Gather()
		if err != nil || len(families) == 0 {
			t.Fatalf("TestComponentManagerFetchesNewHeaders: no metrics gathered: %v", err)
		}

		cancel()
		waitFor(t, "the fetcher to be unregistered", func() bool {
			return componentManager.BlockFetcher().FetcherCount() == 0
		})
		componentManager.Stop()
	}
}

func TestHeaderDBPersistsHeaders(t *testing.T) {
	dataDir := t.TempDir()
	cfg := newTestConfig(t, dataDir, false)
	componentManager, err := NewComponentManager(cfg)
	if err != nil {
		t.Fatalf("TestHeaderDBPersistsHeaders: NewComponentManager: %s", err)
	}
	params := cfg.NetParams()
	headers := testutils.SolvedHeaderChain(&params.GenesisHeader, 3, 10*time.Minute, params.PowLimitBits, 0)
	_, err = componentManager.Consensus().ValidateAndInsertHeaders(headers)
	if err != nil {
		t.Fatalf("TestHeaderDBPersistsHeaders: ValidateAndInsertHeaders: %s", err)
	}
	componentManager.Stop()

	reopened, err := NewComponentManager(newTestConfig(t, dataDir, false))
	if err != nil {
		t.Fatalf("TestHeaderDBPersistsHeaders: NewComponentManager after a restart: %s", err)
	}
	defer reopened.Stop()

	hash := headers[2].BlockHash()
	header, found, err := reopened.Consensus().GetHeader(&hash)
	if err != nil || !found || header.BlockHash() != hash {
		t.Fatalf("TestHeaderDBPersistsHeaders: header %s was not persisted", hash)
	}
}

func TestHeaderDBVersionMismatch(t *testing.T) {
	dataDir := t.TempDir()
	cfg := newTestConfig(t, dataDir, false)
	err := os.MkdirAll(cfg.HeaderDBPath(), 0700)
	if err != nil {
		t.Fatalf("TestHeaderDBVersionMismatch: MkdirAll: %s", err)
	}
	err = os.WriteFile(versionFilePath(cfg.HeaderDBPath()), []byte("2"), 0600)
	if err != nil {
		t.Fatalf("TestHeaderDBVersionMismatch: WriteFile: %s", err)
	}

	_, err = NewComponentManager(cfg)
	if err == nil {
		t.Fatalf("TestHeaderDBVersionMismatch: expected an error for an unknown header database version")
	}
}
