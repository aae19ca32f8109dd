package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tqa/action"
	"tqa/action/builtin"
	"tqa/reasoning"
)

type panicAction struct{}

func (*panicAction) Type() string    { return "Panic" }
func (*panicAction) Validate() error { return nil }
func (*panicAction) Apply(context.Context, *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	panic("index out of range")
}

func TestExecutor(t *testing.T) {
	registry := builtin.NewRegistry(builtin.Deps{})
	registry.Register("Panic", func() action.Action { return &panicAction{} })
	executor := NewExecutor(registry, -0.5)

	t.Run("Should apply on a fork", func(t *testing.T) {
		s := newTestState("q")
		next, obs := executor.Execute(context.Background(), s, reasoning.ActionSpec{"type": builtin.TypeHeaderParsing})
		require.True(t, obs.OK())
		require.True(t, next.Memory.Has("header_info"))
		require.False(t, s.Memory.Has("header_info"))
	})

	for name, tc := range map[string]struct {
		spec reasoning.ActionSpec
		kind string
	}{
		"unknown types":  {reasoning.ActionSpec{"type": "Nope"}, "UnknownActionType"},
		"unknown fields": {reasoning.ActionSpec{"type": builtin.TypeFinish, "bogus": 1}, "InvalidSpec"},
		"invalid fields": {reasoning.ActionSpec{"type": builtin.TypeRowSorting}, "ValidationError"},
		"apply errors":   {reasoning.ActionSpec{"type": builtin.TypeFinish, "answer_from": "missing"}, "ExecutionError"},
		"panics":         {reasoning.ActionSpec{"type": "Panic"}, "Panic"},
	} {
		t.Run("Should report "+name+" as failures", func(t *testing.T) {
			s := newTestState("q")
			next, obs := executor.Execute(context.Background(), s, tc.spec)
			require.Same(t, s, next)
			require.False(t, obs.OK())
			require.Equal(t, tc.kind, obs["error_type"])
			require.Equal(t, -0.5, obs.Penalty())
			require.NotEmpty(t, obs.ErrorMessage())
		})
	}
}
