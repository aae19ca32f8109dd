package searcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"tqa/experiments/metrics"
	"tqa/reasoning"
)

type mockPlanner struct {
	propose func(s *reasoning.State) []reasoning.ActionSpec
	err     error
	calls   int
}

func (m *mockPlanner) Propose(_ context.Context, s *reasoning.State) ([]reasoning.ActionSpec, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.propose(s), nil
}

// mockExecutor finishes the state when the spec carries an "answer" and
// reports a failure when it carries "fail".
type mockExecutor struct{}

func (mockExecutor) Execute(_ context.Context, s *reasoning.State, spec reasoning.ActionSpec) (*reasoning.State, reasoning.Observation) {
	if _, ok := spec["fail"]; ok {
		return s, reasoning.FailureObservation("ExecutionError", "boom", -0.25)
	}
	next := s.Fork()
	if answer, ok := spec["answer"]; ok {
		next.Done = true
		next.Answer = answer
	}
	return next, reasoning.Observation{"ok": true}
}

// recordingExecutor remembers the type of every executed spec.
type recordingExecutor struct {
	mockExecutor
	types []string
}

func (r *recordingExecutor) Execute(ctx context.Context, s *reasoning.State, spec reasoning.ActionSpec) (*reasoning.State, reasoning.Observation) {
	r.types = append(r.types, spec.Type())
	return r.mockExecutor.Execute(ctx, s, spec)
}

type mockEvaluator struct {
	score func(s *reasoning.State) float64
	extra map[string]any
	err   error
	calls int
}

func (m *mockEvaluator) Evaluate(_ context.Context, s *reasoning.State) (Evaluation, error) {
	m.calls++
	if m.err != nil {
		return Evaluation{}, m.err
	}
	score := 0.5
	if m.score != nil {
		score = m.score(s)
	}
	return Evaluation{Score: score, Critique: "ok", Extra: m.extra}, nil
}

func finishSpecs(answers ...string) func(*reasoning.State) []reasoning.ActionSpec {
	return func(*reasoning.State) []reasoning.ActionSpec {
		specs := make([]reasoning.ActionSpec, len(answers))
		for i, a := range answers {
			specs[i] = reasoning.ActionSpec{"type": "Finish", "answer": a}
		}
		return specs
	}
}

func TestNewMCTS(t *testing.T) {
	t.Run("Should panic without collaborators", func(t *testing.T) {
		require.Panics(t, func() { NewMCTS(nil, mockExecutor{}, &mockEvaluator{}) })
	})

	t.Run("Should apply defaults and ignore invalid options", func(t *testing.T) {
		m := NewMCTS(&mockPlanner{}, mockExecutor{}, &mockEvaluator{}, WithIterations(-1), WithExploration(-2))
		require.Equal(t, Iterations, m.iterations)
		require.Equal(t, Exploration, m.exploration)
		require.Equal(t, Candidates, m.quota)
	})
}

func TestSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("Should collect a single terminal path once", func(t *testing.T) {
		planner := &mockPlanner{propose: finishSpecs("42")}
		evaluator := &mockEvaluator{score: func(*reasoning.State) float64 { return 1 }}
		m := NewMCTS(planner, mockExecutor{}, evaluator, WithIterations(10), WithCandidates(3))

		paths, metric, err := m.Search(ctx, newTestRoot())
		require.NoError(t, err)
		require.Len(t, paths, 1, "Should not re-collect the same terminal node")
		require.Equal(t, "42", paths[0].FinalAnswer)
		require.True(t, paths[0].Terminal)
		require.Equal(t, 1.0, paths[0].TotalScore)
		require.Len(t, paths[0].Steps, 1)
		require.Equal(t, 1, planner.calls)
		require.Equal(t, 1, evaluator.calls, "Should not evaluate revisited nodes")
		require.Equal(t, metrics.SearchMetric{}, metric, "Should use the dummy collector by default")
	})

	t.Run("Should only execute the top-ranked proposal of a leaf", func(t *testing.T) {
		planner := &mockPlanner{propose: func(*reasoning.State) []reasoning.ActionSpec {
			return []reasoning.ActionSpec{{"type": "Step"}, {"type": "Finish", "answer": "b"}}
		}}
		executor := &recordingExecutor{}
		m := NewMCTS(planner, executor, &mockEvaluator{}, WithIterations(12),
			WithHeuristics(Heuristics{MaxDepth: 3, MinScoreToExpand: MinScoreToExpand}))

		paths, _, _ := m.Search(ctx, newTestRoot())
		require.NotEmpty(t, executor.types)
		for _, typ := range executor.types {
			require.Equal(t, "Step", typ)
		}
		for _, p := range paths {
			require.Nil(t, p.FinalAnswer)
		}
	})

	t.Run("Should stop at the candidate quota", func(t *testing.T) {
		planner := &mockPlanner{propose: func(*reasoning.State) []reasoning.ActionSpec { return nil }}
		collector := metrics.NewCollector()
		m := NewMCTS(planner, mockExecutor{}, &mockEvaluator{}, WithIterations(50), WithCandidates(2), WithMetrics(collector))

		paths, metric, err := m.Search(ctx, newTestRoot())
		require.NoError(t, err)
		require.Len(t, paths, 2)
		require.Equal(t, 2, metric.Episodes, "Should stop as soon as the quota is reached")
		require.Equal(t, 2, metric.Candidates)
		require.Equal(t, 2, planner.calls)
	})

	t.Run("Should sort candidates by score", func(t *testing.T) {
		// One step, then every proposal at depth 1 is a dead end.
		planner := &mockPlanner{propose: func(s *reasoning.State) []reasoning.ActionSpec {
			if s.Depth == 0 {
				return []reasoning.ActionSpec{{"type": "Step"}}
			}
			return nil
		}}
		scores := []float64{0.3, 0.1, 0.9, 0.5}
		evaluator := &mockEvaluator{}
		evaluator.score = func(*reasoning.State) float64 { return scores[evaluator.calls-1] }
		m := NewMCTS(planner, mockExecutor{}, evaluator, WithIterations(4), WithCandidates(3))

		paths, _, err := m.Search(ctx, newTestRoot())
		require.NoError(t, err)
		require.Len(t, paths, 3)
		require.Equal(t, 0.9, paths[0].TotalScore)
		require.Equal(t, 0.5, paths[1].TotalScore)
		require.Equal(t, 0.1, paths[2].TotalScore)
		for _, p := range paths {
			require.Len(t, p.Steps, 1)
		}
	})

	t.Run("Should handle dead ends without creating nodes", func(t *testing.T) {
		planner := &mockPlanner{propose: func(*reasoning.State) []reasoning.ActionSpec { return nil }}
		evaluator := &mockEvaluator{score: func(*reasoning.State) float64 { return -0.2 }}
		collector := metrics.NewCollector()
		m := NewMCTS(planner, mockExecutor{}, evaluator, WithIterations(10), WithCandidates(3), WithMetrics(collector))

		root := newTestRoot()
		paths, metric, err := m.Search(ctx, root)
		require.NoError(t, err)
		require.Len(t, paths, 3, "Should add one candidate per dead end")
		for _, p := range paths {
			require.True(t, p.Meta.Flag(reasoning.MetaDeadEnd))
			require.True(t, p.Terminal)
			require.Equal(t, -0.2, p.TotalScore)
		}
		require.Equal(t, 3, metric.DeadEnds)
		require.Zero(t, metric.Expansions)
		require.False(t, root.Done, "Should never mutate the root")
		require.Empty(t, root.Path.Meta)
	})

	t.Run("Should back up dead end rewards into the current node", func(t *testing.T) {
		planner := &mockPlanner{propose: func(*reasoning.State) []reasoning.ActionSpec { return nil }}
		evaluator := &mockEvaluator{score: func(*reasoning.State) float64 { return 0.4 }}
		m := NewMCTS(planner, mockExecutor{}, evaluator, WithCandidates(2))

		s := &search{MCTS: m, root: newNode(nil, newTestRoot())}
		require.NoError(t, s.iterate(ctx))
		require.NoError(t, s.iterate(ctx))
		require.Equal(t, 2, s.root.Visits())
		require.InDelta(t, 0.4, s.root.Value(), 1e-12)
		require.Zero(t, s.root.NumChildren())
	})

	t.Run("Should keep pruned children attached as leaves", func(t *testing.T) {
		planner := &mockPlanner{propose: func(*reasoning.State) []reasoning.ActionSpec {
			return []reasoning.ActionSpec{{"type": "Step"}}
		}}
		evaluator := &mockEvaluator{score: func(*reasoning.State) float64 { return -5 }}
		m := NewMCTS(planner, mockExecutor{}, evaluator,
			WithIterations(5), WithCandidates(5),
			WithHeuristics(Heuristics{MaxDepth: 12, MinScoreToExpand: 0}))

		s := &search{MCTS: m, root: newNode(nil, newTestRoot())}
		for i := 0; i < 5; i++ {
			require.NoError(t, s.iterate(ctx))
		}

		require.Equal(t, 1, planner.calls, "Should never expand a pruned child")
		child, ok := s.root.Child(0)
		require.True(t, ok)
		require.True(t, child.State().Done)
		require.True(t, child.State().Path.Meta.Flag(reasoning.MetaPruned))
		require.Zero(t, child.NumChildren())
		require.Len(t, s.candidates, 1)
	})

	t.Run("Should mark states at the depth limit as terminal", func(t *testing.T) {
		planner := &mockPlanner{propose: func(*reasoning.State) []reasoning.ActionSpec {
			return []reasoning.ActionSpec{{"type": "Step"}}
		}}
		m := NewMCTS(planner, mockExecutor{}, &mockEvaluator{},
			WithIterations(10), WithCandidates(1),
			WithHeuristics(Heuristics{MaxDepth: 2, MinScoreToExpand: MinScoreToExpand}))

		paths, _, err := m.Search(ctx, newTestRoot())
		require.NoError(t, err)
		require.Len(t, paths, 1)
		require.Len(t, paths[0].Steps, 2)
		require.True(t, paths[0].Meta.Flag(reasoning.MetaDepthLimit))
		require.Equal(t, 2, planner.calls)
	})

	t.Run("Should treat failed actions as ordinary steps", func(t *testing.T) {
		calls := 0
		planner := &mockPlanner{propose: func(*reasoning.State) []reasoning.ActionSpec {
			calls++
			if calls == 1 {
				return []reasoning.ActionSpec{{"type": "Broken", "fail": true}}
			}
			return []reasoning.ActionSpec{{"type": "Finish", "answer": "7"}}
		}}
		collector := metrics.NewCollector()
		m := NewMCTS(planner, mockExecutor{}, &mockEvaluator{}, WithIterations(5), WithCandidates(1), WithMetrics(collector))

		paths, metric, err := m.Search(ctx, newTestRoot())
		require.NoError(t, err)
		require.Len(t, paths, 1)
		require.Len(t, paths[0].Steps, 2)
		require.Equal(t, "boom", paths[0].Steps[0].Error)
		require.Empty(t, paths[0].Steps[1].Error)
		require.NotNil(t, paths[0].Steps[1].Score)
		require.Equal(t, 1, metric.Failures)
	})

	t.Run("Should merge evaluator metadata into candidates", func(t *testing.T) {
		planner := &mockPlanner{propose: finishSpecs("x")}
		evaluator := &mockEvaluator{extra: map[string]any{"judge": "llm", "rank": 2}}
		m := NewMCTS(planner, mockExecutor{}, evaluator, WithIterations(1), WithCandidates(1))

		paths, _, err := m.Search(ctx, newTestRoot())
		require.NoError(t, err)
		require.Equal(t, "llm", paths[0].Meta["judge"])
		require.Equal(t, "ok", paths[0].Meta[reasoning.MetaCritique])
		require.Equal(t, 2, paths[0].Meta["rank"])
	})

	t.Run("Should fail the run when planning fails", func(t *testing.T) {
		boom := errors.New("llm down")
		m := NewMCTS(&mockPlanner{err: boom}, mockExecutor{}, &mockEvaluator{})
		_, _, err := m.Search(ctx, newTestRoot())
		require.ErrorIs(t, err, boom)
	})

	t.Run("Should fail the run when evaluation fails", func(t *testing.T) {
		boom := errors.New("judge down")
		m := NewMCTS(&mockPlanner{propose: finishSpecs("x")}, mockExecutor{}, &mockEvaluator{err: boom})
		_, _, err := m.Search(ctx, newTestRoot())
		require.ErrorIs(t, err, boom)
	})

	t.Run("Should reject misuse", func(t *testing.T) {
		m := NewMCTS(&mockPlanner{propose: finishSpecs("x")}, mockExecutor{}, &mockEvaluator{}, WithCandidates(0))
		_, _, err := m.Search(ctx, newTestRoot())
		require.ErrorIs(t, err, ErrInvalidQuota)

		m = NewMCTS(&mockPlanner{propose: finishSpecs("x")}, mockExecutor{}, &mockEvaluator{})
		_, _, err = m.Search(ctx, nil)
		require.ErrorIs(t, err, ErrNoRoot)
	})

	t.Run("Should report when nothing was collected", func(t *testing.T) {
		planner := &mockPlanner{propose: func(*reasoning.State) []reasoning.ActionSpec {
			return []reasoning.ActionSpec{{"type": "Step"}}
		}}
		m := NewMCTS(planner, mockExecutor{}, &mockEvaluator{}, WithIterations(3))
		_, _, err := m.Search(ctx, newTestRoot())
		require.ErrorIs(t, err, ErrNoCandidates)
	})

	t.Run("Should stop on a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		m := NewMCTS(&mockPlanner{propose: finishSpecs("x")}, mockExecutor{}, &mockEvaluator{})
		_, _, err := m.Search(cancelled, newTestRoot())
		require.ErrorIs(t, err, context.Canceled)
	})
}
