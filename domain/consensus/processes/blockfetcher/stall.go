package blockfetcher

import (
	"context"
	"time"

	"github.com/kaspanet/chaincore/domain/consensus/model"
	"github.com/kaspanet/chaincore/util/panics"
)

// stallLoop releases stalled downloads on every tick.
func (m *Manager) stallLoop(ctx context.Context) error {
	defer panics.HandlePanic(log, nil)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.cfg.StallCheckTicker.Ticks():
			m.releaseStalledDownloads()
		}
	}
}

// releaseStalledDownloads moves the downloads pending for longer than the
// stall timeout to the failed set and notifies their fetchers.
func (m *Manager) releaseStalledDownloads() []PendingDownload {
	now := m.cfg.Clock.Now().UnixMicro()

	m.stateLock.Lock()
	timeoutMicros := m.stallTimeoutNoLock().Microseconds()
	var stalled []PendingDownload
	for hash, pendingDownload := range m.pending {
		if pendingDownload.Fetcher == nil || now-pendingDownload.StartTimeMicros <= timeoutMicros {
			continue
		}
		stalled = append(stalled, *pendingDownload)
		delete(m.pending, hash)
		m.setStateNoLock(hash, stateFailed)
		m.failed = append(m.failed, pendingDownload.Node)
	}
	m.stateLock.Unlock()

	if len(stalled) == 0 {
		return nil
	}
	log.Infof("Released %d stalled block downloads", len(stalled))

	for _, pendingDownload := range stalled {
		stallAwareFetcher, ok := pendingDownload.Fetcher.(model.StallAwareFetcher)
		if !ok {
			continue
		}
		node := pendingDownload.Node
		spawn(func() {
			stallAwareFetcher.OnFetchStalled(node)
		})
	}

	signal(m.slotFreed)
	signal(m.retryFailed)
	return stalled
}

// stallTimeoutNoLock returns the age at which a pending download stalls.
// It grows with the number of fetchers that have blocks in flight.
// This function MUST be called with the state lock held
func (m *Manager) stallTimeoutNoLock() time.Duration {
	fetchersInFlight := make(map[model.Fetcher]struct{})
	for _, pendingDownload := range m.pending {
		if pendingDownload.Fetcher != nil {
			fetchersInFlight[pendingDownload.Fetcher] = struct{}{}
		}
	}
	additionalFetchers := len(fetchersInFlight) - 1
	if additionalFetchers < 0 {
		additionalFetchers = 0
	}

	factor := m.cfg.StallTimeoutBase + m.cfg.StallTimeoutPerPeer*float64(additionalFetchers)
	return time.Duration(float64(m.cfg.TargetSpacing) * factor)
}
