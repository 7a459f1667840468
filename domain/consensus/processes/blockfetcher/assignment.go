package blockfetcher

import (
	"context"
	"sort"

	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/util/panics"
)

type candidate struct {
	fetcher model.Fetcher
	score   uint32
}

// assignmentLoop is the single consumer of the to-download queue. Blocks
// in the failed set are retried before the queue whenever a retry is
// signalled.
func (m *Manager) assignmentLoop(ctx context.Context) error {
	defer panics.HandlePanic(log, nil)

	for {
		if !m.waitForFreeSlot(ctx) {
			return nil
		}

		select {
		case <-m.retryFailed:
			m.retryFailedBlocks(ctx)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case <-m.retryFailed:
			m.retryFailedBlocks(ctx)
		case item, ok := <-m.toDownload.ChanOut():
			if !ok {
				return nil
			}
			pendingDownload, ok := m.takeQueued(item.(*headertree.HeaderNode))
			if ok {
				m.assign(ctx, pendingDownload)
			}
		}
	}
}

// waitForFreeSlot blocks while the in-flight cap is reached. It returns
// false once ctx is done.
func (m *Manager) waitForFreeSlot(ctx context.Context) bool {
	for m.InFlightCount() >= m.cfg.MaxBlocksInFlight {
		select {
		case <-ctx.Done():
			return false
		case <-m.slotFreed:
		}
	}
	return ctx.Err() == nil
}

// takeQueued reserves a pending download slot for a dequeued node. It
// returns false if the block was received or its data became available
// while it was queued.
func (m *Manager) takeQueued(node *headertree.HeaderNode) (*PendingDownload, bool) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	hash := node.Hash()
	if state, ok := m.tracked[hash]; !ok || state != stateQueued {
		return nil, false
	}
	if node.HasBlockData() {
		m.untrackNoLock(hash)
		return nil, false
	}
	return m.reserveNoLock(node), true
}

// This function MUST be called with the state lock held
func (m *Manager) reserveNoLock(node *headertree.HeaderNode) *PendingDownload {
	pendingDownload := &PendingDownload{Node: node}
	hash := node.Hash()
	m.pending[hash] = pendingDownload
	m.setStateNoLock(hash, stateInFlight)
	return pendingDownload
}

// retryFailedBlocks tries every block of the failed set once, oldest first,
// as long as there is room in flight.
func (m *Manager) retryFailedBlocks(ctx context.Context) {
	for count := m.FailedCount(); count > 0; count-- {
		if ctx.Err() != nil {
			return
		}
		if m.InFlightCount() >= m.cfg.MaxBlocksInFlight {
			signal(m.retryFailed)
			return
		}
		pendingDownload, ok := m.takeFailed()
		if !ok {
			return
		}
		m.assign(ctx, pendingDownload)
	}
}

func (m *Manager) takeFailed() (*PendingDownload, bool) {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	if len(m.failed) == 0 {
		return nil, false
	}
	node := m.failed[0]
	m.failed = m.failed[1:]
	return m.reserveNoLock(node), true
}

// assign asks the eligible fetchers for the block of pendingDownload, best
// score first, until one of them sends the request. The block moves to the
// failed set if none does.
func (m *Manager) assign(ctx context.Context, pendingDownload *PendingDownload) {
	node := pendingDownload.Node
	for _, candidate := range m.rankFetchers(node) {
		if !m.setPendingFetcher(pendingDownload, candidate.fetcher) {
			return
		}

		sent, err := candidate.fetcher.TryFetch(ctx, node, candidate.score)
		if err != nil {
			log.Debugf("Fetcher failed to request block %s: %s", node, err)
			continue
		}
		if sent {
			log.Tracef("Requested block %s with score %d", node, candidate.score)
			return
		}
	}

	if m.moveToFailed(pendingDownload) {
		log.Debugf("No fetcher could request block %s", node)
	}
}

// rankFetchers returns the fetchers able to serve node by descending
// FetchBlockScore. Equal scores keep the registration order.
func (m *Manager) rankFetchers(node *headertree.HeaderNode) []candidate {
	m.fetchersLock.RLock()
	defer m.fetchersLock.RUnlock()

	candidates := make([]candidate, 0, len(m.fetchers))
	for _, fetcher := range m.fetchers {
		score := fetcher.FetchBlockScore(node)
		if score == 0 {
			continue
		}
		candidates = append(candidates, candidate{fetcher: fetcher, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates
}

// setPendingFetcher records fetcher as the one serving pendingDownload. It
// returns false once pendingDownload is no longer pending.
func (m *Manager) setPendingFetcher(pendingDownload *PendingDownload, fetcher model.Fetcher) bool {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	if m.pending[pendingDownload.Node.Hash()] != pendingDownload {
		return false
	}
	pendingDownload.Fetcher = fetcher
	pendingDownload.StartTimeMicros = m.cfg.Clock.Now().UnixMicro()
	return true
}

// moveToFailed releases the slot of pendingDownload and appends its block
// to the failed set.
func (m *Manager) moveToFailed(pendingDownload *PendingDownload) bool {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	hash := pendingDownload.Node.Hash()
	if m.pending[hash] != pendingDownload {
		return false
	}
	delete(m.pending, hash)
	m.setStateNoLock(hash, stateFailed)
	m.failed = append(m.failed, pendingDownload.Node)
	signal(m.slotFreed)
	return true
}
