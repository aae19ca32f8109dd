package action

import (
	"context"

	"tqa/reasoning"
)

// Action is one validated state transition. Apply receives a state it may
// modify (memory, View, Done, Answer) and returns it with an observation. It
// must not modify table cells in place.
type Action interface {
	Type() string
	Validate() error
	Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error)
}

// Constructor returns a new action populated with its field defaults.
type Constructor func() Action
