package blockfetcher

import (
	"context"

	"github.com/kaspanet/chaincore/util/panics"
)

// scoreLoop recomputes the score snapshot on every tick. It does not
// reassign work.
func (m *Manager) scoreLoop(ctx context.Context) error {
	defer panics.HandlePanic(log, nil)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.cfg.ScoreRefreshTicker.Ticks():
			m.refreshScores()
		}
	}
}

func (m *Manager) refreshScores() {
	m.fetchersLock.RLock()
	snapshot := ScoreSnapshot{FetcherCount: len(m.fetchers)}
	var total uint64
	for i, fetcher := range m.fetchers {
		score := fetcher.Score()
		if i == 0 || score < snapshot.Min {
			snapshot.Min = score
		}
		if score > snapshot.Max {
			snapshot.Max = score
		}
		total += uint64(score)
	}
	m.fetchersLock.RUnlock()

	if snapshot.FetcherCount > 0 {
		snapshot.Average = float64(total) / float64(snapshot.FetcherCount)
	}

	m.scoreLock.Lock()
	m.scoreSnapshot = snapshot
	m.scoreLock.Unlock()

	m.metrics.setScores(snapshot)
	log.Debugf("Fetcher scores: %d fetchers, min %d, max %d, average %.2f",
		snapshot.FetcherCount, snapshot.Min, snapshot.Max, snapshot.Average)
}
