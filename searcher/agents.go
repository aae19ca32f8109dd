package searcher

import (
	"context"

	"tqa/reasoning"
)

// Evaluation is an evaluator's judgment of one state.
type Evaluation struct {
	Score    float64
	Critique string
	Extra    map[string]any
}

// Planner proposes ranked action specs for a state. An empty proposal marks a
// dead end.
type Planner interface {
	Propose(ctx context.Context, s *reasoning.State) ([]reasoning.ActionSpec, error)
}

// Executor applies a spec. It never fails: on error it returns the state it was
// given, unchanged, with a failure observation.
type Executor interface {
	Execute(ctx context.Context, s *reasoning.State, spec reasoning.ActionSpec) (*reasoning.State, reasoning.Observation)
}

type Evaluator interface {
	Evaluate(ctx context.Context, s *reasoning.State) (Evaluation, error)
}

// Decider picks one of the candidate paths returned by a search.
type Decider interface {
	Decide(ctx context.Context, question string, paths []*reasoning.Path) (int, error)
}
