package blockfetcher

import (
	"github.com/kaspanet/chaincore/domain/consensus/datastructures/headertree"
	"github.com/kaspanet/chaincore/domain/consensus/model"
)

// OnNewHeadersValidated queues the blocks of the newly found headers that
// belong to the best chain and lack block data, oldest first. Headers of
// other branches are not requested until they join the best chain.
func (m *Manager) OnNewHeadersValidated(event *model.NewHeadersValidatedEvent) {
	nodes := make([]*headertree.HeaderNode, 0, event.NewHeadersFoundCount)
	for node := event.LastValidatedHeaderNode; node != nil && len(nodes) < event.NewHeadersFoundCount; node = node.Previous() {
		nodes = append(nodes, node)
	}

	queued := 0
	for i := len(nodes) - 1; i >= 0; i-- {
		node := nodes[i]
		if node.HasBlockData() || !m.chainState.IsInBestChain(node) {
			continue
		}
		if !m.markQueued(node) {
			continue
		}
		select {
		case m.toDownload.ChanIn() <- node:
			queued++
		case <-m.quit:
			return
		}
	}
	if queued > 0 {
		log.Debugf("Queued %d blocks for download, up to %s", queued, event.LastValidatedHeaderNode)
	}
}

// markQueued starts tracking node as queued. It returns false if its hash is
// already tracked.
func (m *Manager) markQueued(node *headertree.HeaderNode) bool {
	m.stateLock.Lock()
	defer m.stateLock.Unlock()

	hash := node.Hash()
	if _, ok := m.tracked[hash]; ok {
		return false
	}
	m.setStateNoLock(hash, stateQueued)
	return true
}

// OnBlockReceived stops tracking the received block and lets the assignment
// loop use the freed slot.
func (m *Manager) OnBlockReceived(event *model.BlockReceivedEvent) {
	m.stateLock.Lock()
	pendingDownload, wasPending := m.pending[event.BlockHash]
	if wasPending && event.Fetcher != nil && pendingDownload.Fetcher != event.Fetcher {
		log.Debugf("Block %s was received from another fetcher than the one it was requested from",
			event.BlockHash)
	}
	m.untrackNoLock(event.BlockHash)
	m.stateLock.Unlock()

	signal(m.slotFreed)
	signal(m.retryFailed)
}
