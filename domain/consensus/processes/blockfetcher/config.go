package blockfetcher

import (
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultMaxBlocksInFlight is the maximum number of blocks requested
	// from all fetchers together.
	DefaultMaxBlocksInFlight = 200

	// DefaultScoreRefreshInterval is how often the fetcher score snapshot
	// is recomputed.
	DefaultScoreRefreshInterval = time.Minute

	// DefaultStallCheckInterval is how often pending downloads are checked
	// for stalls.
	DefaultStallCheckInterval = time.Minute

	// DefaultStallTimeoutBase is the stall timeout of a download, in target
	// block spacings, when a single fetcher has blocks in flight.
	DefaultStallTimeoutBase = 1.0

	// DefaultStallTimeoutPerPeer is added to the stall timeout, in target
	// block spacings, for every additional fetcher with blocks in flight.
	DefaultStallTimeoutPerPeer = 0.5
)

// Config holds the configuration of a Manager.
type Config struct {
	// MaxBlocksInFlight caps the number of pending downloads.
	MaxBlocksInFlight int

	// ScoreRefreshTicker drives the score snapshot loop.
	ScoreRefreshTicker ticker.Ticker

	// StallCheckTicker drives the stall detection loop.
	StallCheckTicker ticker.Ticker

	// Clock stamps pending downloads and decides when they stall.
	Clock clock.Clock

	StallTimeoutBase    float64
	StallTimeoutPerPeer float64

	// TargetSpacing is the expected time between two blocks.
	TargetSpacing time.Duration

	// MetricsRegisterer receives the fetcher gauges. Metrics are not
	// exported when it is nil.
	MetricsRegisterer prometheus.Registerer
}

// DefaultConfig returns a Config with the default limits, real tickers and
// the wall clock.
func DefaultConfig(targetSpacing time.Duration) *Config {
	return &Config{
		MaxBlocksInFlight:   DefaultMaxBlocksInFlight,
		ScoreRefreshTicker:  ticker.New(DefaultScoreRefreshInterval),
		StallCheckTicker:    ticker.New(DefaultStallCheckInterval),
		Clock:               clock.NewDefaultClock(),
		StallTimeoutBase:    DefaultStallTimeoutBase,
		StallTimeoutPerPeer: DefaultStallTimeoutPerPeer,
		TargetSpacing:       targetSpacing,
	}
}

func (cfg *Config) validate() error {
	if cfg.MaxBlocksInFlight <= 0 {
		return errors.Errorf("max blocks in flight must be positive, got %d", cfg.MaxBlocksInFlight)
	}
	if cfg.ScoreRefreshTicker == nil || cfg.StallCheckTicker == nil {
		return errors.New("score refresh and stall check tickers are required")
	}
	if cfg.Clock == nil {
		return errors.New("a clock is required")
	}
	if cfg.TargetSpacing <= 0 {
		return errors.Errorf("target spacing must be positive, got %s", cfg.TargetSpacing)
	}
	if cfg.StallTimeoutBase <= 0 || cfg.StallTimeoutPerPeer < 0 {
		return errors.Errorf("invalid stall timeout factors %f and %f",
			cfg.StallTimeoutBase, cfg.StallTimeoutPerPeer)
	}
	return nil
}
