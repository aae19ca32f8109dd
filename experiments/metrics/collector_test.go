package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Run("Should count events", func(t *testing.T) {
		c := NewCollector()
		c.Start(10, 1.4, 12)
		c.AddEpisode()
		c.AddEpisode()
		c.AddExpansion()
		c.AddDeadEnd()
		c.AddPruned()
		c.AddFailure()
		c.AddCandidate()

		m := c.Complete()
		require.Equal(t, 10, m.Iterations)
		require.Equal(t, 1.4, m.Exploration)
		require.Equal(t, 12, m.MaxDepth)
		require.Equal(t, 2, m.Episodes)
		require.Equal(t, 1, m.Expansions)
		require.Equal(t, 1, m.DeadEnds)
		require.Equal(t, 1, m.Pruned)
		require.Equal(t, 1, m.Failures)
		require.Equal(t, 1, m.Candidates)
	})

	t.Run("Should return zero metrics from the dummy", func(t *testing.T) {
		c := NewDummyCollector()
		c.Start(10, 1.4, 12)
		c.AddEpisode()
		require.Equal(t, SearchMetric{}, c.Complete())
	})

	t.Run("Should mirror events to prometheus", func(t *testing.T) {
		before := testutil.ToFloat64(searchEvents.WithLabelValues("candidate"))
		c := NewPrometheusCollector()
		c.Start(1, 1, 1)
		c.AddCandidate()
		c.AddCandidate()

		require.Equal(t, 2, c.Complete().Candidates)
		require.Equal(t, before+2, testutil.ToFloat64(searchEvents.WithLabelValues("candidate")))
	})
}
