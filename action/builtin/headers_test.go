package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tqa/reasoning"
	"tqa/table"
)

func TestHeaderParsing(t *testing.T) {
	compound := func() *reasoning.State {
		view := table.NewView([]string{"Revenue/Cost", "Q1 - Q2", "Name"}, [][]string{{"1", "2", "a"}})
		return reasoning.NewState("q", view)
	}

	t.Run("Should normalize and split compound headers", func(t *testing.T) {
		next, obs, err := apply(t, Deps{}, reasoning.ActionSpec{"type": TypeHeaderParsing}, compound())
		require.NoError(t, err)

		info := next.Memory["header_info"].(HeaderInfo)
		require.Equal(t, []string{"revenue/cost", "q1 - q2", "name"}, info.NormalizedHeaders)
		require.Equal(t, map[string][]string{
			"Revenue/Cost": {"Revenue", "Cost"},
			"Q1 - Q2":      {"Q1", "Q2"},
		}, info.CompoundSplits)
		require.False(t, info.LLMUsed)
		require.Equal(t, 2, obs["compound_count"])
	})

	t.Run("Should use explicit aliases without asking the LLM", func(t *testing.T) {
		spec := reasoning.ActionSpec{"type": TypeHeaderParsing, "aliases": map[string]any{"Rev ": "Revenue/Cost"}, "split_compound": false}
		next, _, err := apply(t, Deps{LLM: unreachable(t)}, spec, compound())
		require.NoError(t, err)

		info := next.Memory["header_info"].(HeaderInfo)
		require.Equal(t, map[string]string{"rev": "Revenue/Cost"}, info.AliasMap)
		require.Empty(t, info.CompoundSplits)
	})

	t.Run("Should take aliases and groups from the LLM", func(t *testing.T) {
		client := scripted(`Sure: {"alias_map": {"AC": "Actual Cost"},
			"header_groups": [{"group": "cost", "members": ["Planned Cost", "Actual Cost", "Bogus"]}]}`)
		next, obs, err := apply(t, Deps{LLM: client}, reasoning.ActionSpec{"type": TypeHeaderParsing}, newTestState())
		require.NoError(t, err)

		info := next.Memory["header_info"].(HeaderInfo)
		require.Equal(t, "Actual Cost", info.AliasMap["ac"])
		require.Equal(t, []HeaderGroup{{Group: "cost", Members: []string{"Planned Cost", "Actual Cost"}}}, info.HeaderGroups)
		require.Equal(t, true, obs["llm_used"])
	})

	t.Run("Should fall back when the LLM reply is unusable", func(t *testing.T) {
		next, _, err := apply(t, Deps{LLM: scripted("no json here")}, reasoning.ActionSpec{"type": TypeHeaderParsing}, newTestState())
		require.NoError(t, err)
		require.False(t, next.Memory["header_info"].(HeaderInfo).LLMUsed)
	})
}
