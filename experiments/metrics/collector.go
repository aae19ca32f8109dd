package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	Iterations  int // configured budget
	Exploration float64
	MaxDepth    int
	Duration    time.Duration
	Episodes    int // iterations actually run
	Expansions  int
	DeadEnds    int
	Pruned      int
	Failures    int // failed action executions
	Candidates  int
}

type Collector interface {
	Start(iterations int, exploration float64, maxDepth int)
	AddEpisode()
	AddExpansion()
	AddDeadEnd()
	AddPruned()
	AddFailure()
	AddCandidate()
	Complete() SearchMetric
}

type collector struct {
	iterations  int
	exploration float64
	maxDepth    int
	startTime   time.Time
	episodes    atomic.Int32
	expansions  atomic.Int32
	deadEnds    atomic.Int32
	pruned      atomic.Int32
	failures    atomic.Int32
	candidates  atomic.Int32
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start(iterations int, exploration float64, maxDepth int) {
	m.startTime = time.Now()
	m.iterations = iterations
	m.exploration = exploration
	m.maxDepth = maxDepth
}

func (m *collector) AddEpisode()   { m.episodes.Add(1) }
func (m *collector) AddExpansion() { m.expansions.Add(1) }
func (m *collector) AddDeadEnd()   { m.deadEnds.Add(1) }
func (m *collector) AddPruned()    { m.pruned.Add(1) }
func (m *collector) AddFailure()   { m.failures.Add(1) }
func (m *collector) AddCandidate() { m.candidates.Add(1) }

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		Iterations:  m.iterations,
		Exploration: m.exploration,
		MaxDepth:    m.maxDepth,
		Duration:    time.Since(m.startTime),
		Episodes:    int(m.episodes.Load()),
		Expansions:  int(m.expansions.Load()),
		DeadEnds:    int(m.deadEnds.Load()),
		Pruned:      int(m.pruned.Load()),
		Failures:    int(m.failures.Load()),
		Candidates:  int(m.candidates.Load()),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(iterations int, exploration float64, maxDepth int) {}
func (m *dummyCollector) AddEpisode()                                             {}
func (m *dummyCollector) AddExpansion()                                           {}
func (m *dummyCollector) AddDeadEnd()                                             {}
func (m *dummyCollector) AddPruned()                                              {}
func (m *dummyCollector) AddFailure()                                             {}
func (m *dummyCollector) AddCandidate()                                           {}
func (m *dummyCollector) Complete() SearchMetric                                  { return SearchMetric{} }
