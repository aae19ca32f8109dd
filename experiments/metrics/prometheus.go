package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tqa",
			Subsystem: "search",
			Name:      "events_total",
			Help:      "MCTS search events by kind",
		},
		[]string{"event"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tqa",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall time of one MCTS search run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	searchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tqa",
			Subsystem: "search",
			Name:      "candidates",
			Help:      "Candidate paths collected per search run",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		},
	)
)

// prometheusCollector counts into a wrapped collector and mirrors every event
// to the process-wide Prometheus registry.
type prometheusCollector struct {
	inner Collector
}

func NewPrometheusCollector() Collector {
	return &prometheusCollector{inner: NewCollector()}
}

func (p *prometheusCollector) Start(iterations int, exploration float64, maxDepth int) {
	p.inner.Start(iterations, exploration, maxDepth)
}

func (p *prometheusCollector) AddEpisode() {
	p.inner.AddEpisode()
	searchEvents.WithLabelValues("episode").Inc()
}

func (p *prometheusCollector) AddExpansion() {
	p.inner.AddExpansion()
	searchEvents.WithLabelValues("expansion").Inc()
}

func (p *prometheusCollector) AddDeadEnd() {
	p.inner.AddDeadEnd()
	searchEvents.WithLabelValues("dead_end").Inc()
}

func (p *prometheusCollector) AddPruned() {
	p.inner.AddPruned()
	searchEvents.WithLabelValues("pruned").Inc()
}

func (p *prometheusCollector) AddFailure() {
	p.inner.AddFailure()
	searchEvents.WithLabelValues("failure").Inc()
}

func (p *prometheusCollector) AddCandidate() {
	p.inner.AddCandidate()
	searchEvents.WithLabelValues("candidate").Inc()
}

func (p *prometheusCollector) Complete() SearchMetric {
	m := p.inner.Complete()
	searchDuration.Observe(m.Duration.Seconds())
	searchCandidates.Observe(float64(m.Candidates))
	return m
}
