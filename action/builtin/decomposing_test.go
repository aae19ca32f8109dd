package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tqa/reasoning"
)

func TestParallelDecomposing(t *testing.T) {
	t.Run("Should store given sub-questions trimmed", func(t *testing.T) {
		spec := reasoning.ActionSpec{"type": TypeParallelDecomposing, "sub_questions": []any{" cost 2021 ", "", "cost 2022"}}
		next, obs, err := apply(t, Deps{LLM: unreachable(t)}, spec, newTestState())
		require.NoError(t, err)
		require.Equal(t, []string{"cost 2021", "cost 2022"}, next.Memory["sub_questions_parallel"])
		require.Equal(t, 2, obs["count"])
	})

	t.Run("Should store an empty list without sub-questions or LLM", func(t *testing.T) {
		next, obs, err := apply(t, Deps{}, reasoning.ActionSpec{"type": TypeParallelDecomposing}, newTestState())
		require.NoError(t, err)
		require.Equal(t, []string{}, next.Memory["sub_questions_parallel"])
		require.Contains(t, obs["note"], "empty")
	})

	t.Run("Should ask the LLM otherwise", func(t *testing.T) {
		client := scripted(`{"sub_questions": ["north total", "south total"]}`)
		next, obs, err := apply(t, Deps{LLM: client}, reasoning.ActionSpec{"type": TypeParallelDecomposing}, newTestState())
		require.NoError(t, err)
		require.Equal(t, []string{"north total", "south total"}, next.Memory["sub_questions_parallel"])
		require.Equal(t, true, obs["llm_used"])
	})
}

func TestSerialDecomposing(t *testing.T) {
	t.Run("Should normalize a given chain", func(t *testing.T) {
		chain := []any{
			map[string]any{"q": "total 2021"},
			map[string]any{"q": " ", "var": "skip"},
			map[string]any{"q": "difference", "depends_on": []any{0}, "var": "d"},
		}
		next, _, err := apply(t, Deps{}, reasoning.ActionSpec{"type": TypeSerialDecomposing, "chain": chain}, newTestState())
		require.NoError(t, err)
		require.Equal(t, []ChainStep{
			{Q: "total 2021", DependsOn: []int{}, Var: "x0"},
			{Q: "difference", DependsOn: []int{0}, Var: "d"},
		}, next.Memory["sub_questions_serial"])
	})

	t.Run("Should ask the LLM for a chain", func(t *testing.T) {
		client := scripted(`{"chain": [{"q": "a"}, {"q": "b", "depends_on": [0]}]}`)
		next, obs, err := apply(t, Deps{LLM: client}, reasoning.ActionSpec{"type": TypeSerialDecomposing}, newTestState())
		require.NoError(t, err)
		require.Equal(t, []ChainStep{
			{Q: "a", DependsOn: []int{}, Var: "x0"},
			{Q: "b", DependsOn: []int{0}, Var: "x1"},
		}, next.Memory["sub_questions_serial"])
		require.Equal(t, true, obs["llm_used"])
	})

	t.Run("Should store an empty plan without LLM", func(t *testing.T) {
		next, _, err := apply(t, Deps{}, reasoning.ActionSpec{"type": TypeSerialDecomposing}, newTestState())
		require.NoError(t, err)
		require.Equal(t, []ChainStep{}, next.Memory["sub_questions_serial"])
	})
}
