package blockfetcher

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// queueBufferSize is the size of the channels in front of and behind the
// unbounded to-download queue.
const queueBufferSize = 64

// blockState is the place of a tracked block hash in the download pipeline.
type blockState int

const (
	stateQueued blockState = iota
	stateInFlight
	stateFailed
)

// PendingDownload is a block requested from a fetcher and not yet received.
type PendingDownload struct {
	Node    *headertree.HeaderNode
	Fetcher model.Fetcher

	// StartTimeMicros is the clock time the request was issued at, in
	// microseconds since the unix epoch.
	StartTimeMicros int64
}

// ScoreSnapshot summarizes the scores of the registered fetchers.
type ScoreSnapshot struct {
	Min          uint32
	Max          uint32
	Average      float64
	FetcherCount int
}

// Manager assigns the download of missing blocks of the best chain to
// registered fetchers.
type Manager struct {
	chainState model.ChainState
	cfg        *Config
	metrics    *metrics

	fetchersLock sync.RWMutex
	fetchers     []model.Fetcher

	toDownload *queue.ConcurrentQueue

	// stateLock protects tracked, queuedCount, pending and failed.
	stateLock   sync.Mutex
	tracked     map[chainhash.Hash]blockState
	queuedCount int
	pending     map[chainhash.Hash]*PendingDownload
	failed      []*headertree.HeaderNode

	scoreLock     sync.RWMutex
	scoreSnapshot ScoreSnapshot

	slotFreed   chan struct{}
	retryFailed chan struct{}

	started int32
	stopped int32
	quit    chan struct{}
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New creates a Manager fetching the blocks of the best chain of chainState.
func New(chainState model.ChainState, cfg *Config) (*Manager, error) {
	err := cfg.validate()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		chainState:  chainState,
		cfg:         cfg,
		toDownload:  queue.NewConcurrentQueue(queueBufferSize),
		tracked:     make(map[chainhash.Hash]blockState),
		pending:     make(map[chainhash.Hash]*PendingDownload),
		slotFreed:   make(chan struct{}, 1),
		retryFailed: make(chan struct{}, 1),
		quit:        make(chan struct{}),
	}
	m.metrics = newMetrics(m)
	if cfg.MetricsRegisterer != nil {
		err := m.metrics.register(cfg.MetricsRegisterer)
		if err != nil {
			return nil, err
		}
	}

	m.toDownload.Start()
	return m, nil
}

// Start runs the assignment, score and stall loops until ctx is done or
// Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&m.started, 0, 1) {
		return errors.New("block fetcher manager already started")
	}
	log.Infof("Starting the block fetcher manager with at most %d blocks in flight", m.cfg.MaxBlocksInFlight)

	ctx, m.cancel = context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(ctx)
	m.group = group

	m.cfg.ScoreRefreshTicker.Resume()
	m.cfg.StallCheckTicker.Resume()

	group.Go(func() error { return m.assignmentLoop(groupCtx) })
	group.Go(func() error { return m.scoreLoop(groupCtx) })
	group.Go(func() error { return m.stallLoop(groupCtx) })
	return nil
}

// Stop terminates the loops and waits for them to exit.
func (m *Manager) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.stopped, 0, 1) {
		return nil
	}
	log.Infof("Stopping the block fetcher manager")

	close(m.quit)
	var err error
	if m.cancel != nil {
		m.cancel()
		err = m.group.Wait()
	}
	m.cfg.ScoreRefreshTicker.Stop()
	m.cfg.StallCheckTicker.Stop()
	m.toDownload.Stop()
	return err
}

// RegisterFetcher adds fetcher to the fetchers blocks are assigned to.
// Registering a fetcher twice has no effect.
func (m *Manager) RegisterFetcher(fetcher model.Fetcher) {
	m.fetchersLock.Lock()
	defer m.fetchersLock.Unlock()

	for _, registered := range m.fetchers {
		if registered == fetcher {
			return
		}
	}
	m.fetchers = append(m.fetchers, fetcher)
	log.Debugf("Registered a fetcher, %d fetchers registered", len(m.fetchers))

	signal(m.retryFailed)
}

// UnregisterFetcher removes fetcher. Blocks it was asked for stay pending
// until they arrive or stall.
func (m *Manager) UnregisterFetcher(fetcher model.Fetcher) {
	m.fetchersLock.Lock()
	defer m.fetchersLock.Unlock()

	for i, registered := range m.fetchers {
		if registered == fetcher {
			m.fetchers = append(m.fetchers[:i], m.fetchers[i+1:]...)
			log.Debugf("Unregistered a fetcher, %d fetchers registered", len(m.fetchers))
			return
		}
	}
}

// FetcherCount returns the number of registered fetchers.
func (m *Manager) FetcherCount() int {
	m.fetchersLock.RLock()
	defer m.fetchersLock.RUnlock()

	return len(m.fetchers)
}

// InFlightCount returns the number of pending downloads.
func (m *Manager) InFlightCount() int {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	return len(m.pending)
}

// QueuedCount returns the number of blocks waiting for assignment.
func (m *Manager) QueuedCount() int {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	return m.queuedCount
}

// FailedCount returns the number of blocks that no fetcher accepted.
func (m *Manager) FailedCount() int {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	return len(m.failed)
}

// PendingDownloads returns a copy of the pending downloads ordered by
// height.
func (m *Manager) PendingDownloads() []PendingDownload {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	pendingDownloads := make([]PendingDownload, 0, len(m.pending))
	for _, pendingDownload := range m.pending {
		pendingDownloads = append(pendingDownloads, *pendingDownload)
	}
	sort.Slice(pendingDownloads, func(i, j int) bool {
		return pendingDownloads[i].Node.Height() < pendingDownloads[j].Node.Height()
	})
	return pendingDownloads
}

// ScoreSnapshot returns the fetcher scores as of the last score refresh.
func (m *Manager) ScoreSnapshot() ScoreSnapshot {
	m.scoreLock.RLock()
	defer m.scoreLock.RUnlock()

	return m.scoreSnapshot
}

// setStateNoLock moves hash to state.
// This function MUST be called with the state lock held
func (m *Manager) setStateNoLock(hash chainhash.Hash, state blockState) {
	previous, ok := m.tracked[hash]
	if ok && previous == stateQueued {
		m.queuedCount--
	}
	m.tracked[hash] = state
	if state == stateQueued {
		m.queuedCount++
	}
}

// untrackNoLock forgets hash.
// This function MUST be called with the state lock held
func (m *Manager) untrackNoLock(hash chainhash.Hash) {
	state, ok := m.tracked[hash]
	if !ok {
		return
	}
	switch state {
	case stateQueued:
		m.queuedCount--
	case stateInFlight:
		delete(m.pending, hash)
	case stateFailed:
		m.removeFailedNoLock(hash)
	}
	delete(m.tracked, hash)
}

// This function MUST be called with the state lock held
func (m *Manager) removeFailedNoLock(hash chainhash.Hash) {
	for i, node := range m.failed {
		if node.Hash() == hash {
			m.failed = append(m.failed[:i], m.failed[i+1:]...)
			return
		}
	}
}

// signal wakes up a waiter of channel without blocking. Signals sent while
// one is already pending are merged.
func signal(channel chan struct{}) {
	select {
	case channel <- struct{}{}:
	default:
	}
}
