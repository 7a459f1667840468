package blockfetcher

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "chaincore"
	metricsSubsystem = "blockfetcher"
)

type metrics struct {
	minScore     prometheus.Gauge
	maxScore     prometheus.Gauge
	averageScore prometheus.Gauge
	fetchers     prometheus.Gauge

	inFlight prometheus.GaugeFunc
	queued   prometheus.GaugeFunc
	failed   prometheus.GaugeFunc
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	})
}

func newGaugeFunc(name, help string, function func() int) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	}, func() float64 {
		return float64(function())
	})
}

func newMetrics(m *Manager) *metrics {
	return &metrics{
		minScore:     newGauge("fetcher_score_min", "Lowest score among registered fetchers."),
		maxScore:     newGauge("fetcher_score_max", "Highest score among registered fetchers."),
		averageScore: newGauge("fetcher_score_average", "Average score of registered fetchers."),
		fetchers:     newGauge("fetchers", "Number of registered fetchers."),

		inFlight: newGaugeFunc("blocks_in_flight", "Blocks requested and not yet received.", m.InFlightCount),
		queued:   newGaugeFunc("blocks_queued", "Blocks waiting to be requested.", m.QueuedCount),
		failed:   newGaugeFunc("blocks_failed", "Blocks no fetcher could be found for.", m.FailedCount),
	}
}

func (ms *metrics) register(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ms.minScore, ms.maxScore, ms.averageScore, ms.fetchers, ms.inFlight, ms.queued, ms.failed,
	}
	for _, collector := range collectors {
		err := registerer.Register(collector)
		if err != nil {
			return errors.Wrap(err, "could not register block fetcher metrics")
		}
	}
	return nil
}

func (ms *metrics) setScores(snapshot ScoreSnapshot) {
	ms.minScore.Set(float64(snapshot.Min))
	ms.maxScore.Set(float64(snapshot.Max))
	ms.averageScore.Set(snapshot.Average)
	ms.fetchers.Set(float64(snapshot.FetcherCount))
}
