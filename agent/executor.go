package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"tqa/action"
	"tqa/meta"
	"tqa/reasoning"
)

// Executor builds specs with a registry and applies them to a fork of the
// state. Failures never escape: the state comes back unchanged together with
// a failure observation carrying the penalty.
type Executor struct {
	registry *action.Registry
	penalty  float64
}

func NewExecutor(registry *action.Registry, penalty float64) *Executor {
	if registry == nil {
		panic("Executor requires an action registry")
	}
	return &Executor{registry: registry, penalty: penalty}
}

func NewDefaultExecutor(registry *action.Registry) *Executor {
	return NewExecutor(registry, meta.ERROR_PENALTY)
}

func (e *Executor) Execute(ctx context.Context, s *reasoning.State, spec reasoning.ActionSpec) (next *reasoning.State, obs reasoning.Observation) {
	act, err := e.registry.Build(spec)
	if err != nil {
		return s, e.failure(spec, err)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("action", spec.Type()).Interface("panic", r).Msg("action panicked")
			next, obs = s, reasoning.FailureObservation("Panic", fmt.Sprint(r), e.penalty)
		}
	}()

	forked := s.Fork()
	next, obs, err = act.Apply(ctx, forked)
	if err != nil {
		return s, e.failure(spec, &action.Error{Type: spec.Type(), Op: "apply", Err: err})
	}
	if next == nil {
		next = forked
	}
	if obs == nil {
		obs = reasoning.Observation{}
	}
	return next, obs
}

func (e *Executor) failure(spec reasoning.ActionSpec, err error) reasoning.Observation {
	kind := "ExecutionError"
	var aerr *action.Error
	if errors.As(err, &aerr) {
		kind = aerr.Kind()
	}
	log.Debug().Str("action", spec.Type()).Str("kind", kind).Err(err).Msg("action failed")
	return reasoning.FailureObservation(kind, err.Error(), e.penalty)
}
