package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tqa/prompt"
	"tqa/reasoning"
)

func finished(question string, answer any) *reasoning.State {
	s := newTestState(question)
	s.Done, s.Answer = true, answer
	return s
}

func inProgress() *reasoning.State {
	s := newTestState("Which region spent most?")
	s.Memory["header_info"] = map[string]any{}
	s.Memory["located_columns"] = []any{}
	s.Memory["result"] = 1.0
	s.Path.Append(reasoning.Step{Spec: reasoning.ActionSpec{"type": "HeaderParsing"}, Observation: reasoning.Observation{"ok": true}})
	s.Path.Append(reasoning.Step{Spec: reasoning.ActionSpec{"type": "ColumnLocating"}, Observation: reasoning.Observation{}})
	return s
}

func TestEvaluatorTerminal(t *testing.T) {
	ctx := context.Background()
	e := NewEvaluator()

	for name, tc := range map[string]struct {
		state *reasoning.State
		gold  any
		want  float64
	}{
		"a matching gold answer":     {finished("What is the total cost?", 2050.0), "2050", 1},
		"a wrong gold answer":        {finished("Which region?", "North"), " South ", -1},
		"a numeric answer":           {finished("How many rows?", "1,024"), nil, 0.6},
		"a text answer to a count":   {finished("How many rows?", "many"), nil, -0.2},
		"no answer to a count":       {finished("What is the total?", nil), nil, -0.2},
		"any answer to other things": {finished("Which region?", "North"), nil, 0.2},
	} {
		t.Run("Should score "+name, func(t *testing.T) {
			if tc.gold != nil {
				tc.state.Memory[GoldAnswerKey] = tc.gold
			}
			eval, err := e.Evaluate(ctx, tc.state)
			require.NoError(t, err)
			require.Equal(t, tc.want, eval.Score)
			require.Equal(t, true, eval.Extra["terminal"])
		})
	}
}

func TestEvaluatorProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("Should score progress", func(t *testing.T) {
		eval, err := NewEvaluator().Evaluate(ctx, inProgress())
		require.NoError(t, err)
		require.InDelta(t, 0.465, eval.Score, 1e-9)
		require.Equal(t, false, eval.Extra["terminal"])
		require.Equal(t, 1.0, eval.Extra["features"].(Features).LocatedColumns)
	})

	t.Run("Should lower the score after a failed step", func(t *testing.T) {
		s := inProgress()
		s.Path.Steps[1].Observation = reasoning.FailureObservation("ExecutionError", "boom", -0.25)
		eval, err := NewEvaluator().Evaluate(ctx, s)
		require.NoError(t, err)
		require.InDelta(t, 0.215, eval.Score, 1e-9)

		s.Path.Steps[1].Observation = reasoning.FailureObservation("ExecutionError", "boom", -1e6)
		eval, err = NewEvaluator().Evaluate(ctx, s)
		require.NoError(t, err)
		require.Equal(t, 0.0, eval.Score)
	})

	t.Run("Should let the LLM refine the score", func(t *testing.T) {
		client := &mockClient{replies: []string{`{"score": 0.9, "critique": "good", "extra": {"k": 1}}`}}
		eval, err := NewEvaluator(WithLLMRefinement(client, prompt.Default())).Evaluate(ctx, inProgress())
		require.NoError(t, err)
		require.Equal(t, 0.9, eval.Score)
		require.Equal(t, "good", eval.Critique)
		require.Equal(t, 1.0, eval.Extra["k"])
		require.Equal(t, true, eval.Extra["llm_used"])
	})

	t.Run("Should ignore the gold answer when scoring and refining", func(t *testing.T) {
		s := inProgress()
		s.Memory[GoldAnswerKey] = 2750.0
		client := &mockClient{replies: []string{`{"score": 0.5}`}}
		eval, err := NewEvaluator(WithLLMRefinement(client, prompt.Default())).Evaluate(ctx, s)
		require.NoError(t, err)
		require.InDelta(t, 0.1, eval.Extra["features"].(Features).NumericVars, 1e-9)
		require.Len(t, client.users, 1)
		require.NotContains(t, client.users[0], GoldAnswerKey)
	})

	t.Run("Should clamp refined terminal scores", func(t *testing.T) {
		client := &mockClient{replies: []string{`{"score": 5}`}}
		eval, err := NewEvaluator(WithLLMRefinement(client, prompt.Default())).Evaluate(ctx, finished("Which region?", "North"))
		require.NoError(t, err)
		require.Equal(t, 1.0, eval.Score)
	})

	t.Run("Should keep the heuristic score when the LLM fails", func(t *testing.T) {
		client := &mockClient{err: errBoom}
		eval, err := NewEvaluator(WithLLMRefinement(client, prompt.Default())).Evaluate(ctx, inProgress())
		require.NoError(t, err)
		require.InDelta(t, 0.465, eval.Score, 1e-9)
		require.NotContains(t, eval.Extra, "llm_used")
	})
}
