package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tqa/action"
	"tqa/reasoning"
)

func TestColumnLocating(t *testing.T) {
	locate := func(t *testing.T, deps Deps, spec reasoning.ActionSpec, s *reasoning.State) []ColumnMatch {
		spec["type"] = TypeColumnLocating
		next, _, err := apply(t, deps, spec, s)
		require.NoError(t, err)
		return next.Memory["located_columns"].([]ColumnMatch)
	}

	t.Run("Should soft match targets", func(t *testing.T) {
		got := locate(t, Deps{}, reasoning.ActionSpec{"targets": []any{"actual", "YEAR", "budget"}}, newTestState())
		require.Equal(t, []ColumnMatch{
			{Target: "actual", Matched: "Actual Cost", Index: 3},
			{Target: "YEAR", Matched: "Year", Index: 0},
			{Target: "budget", Index: -1},
		}, got)
	})

	t.Run("Should prefer word overlap to nothing", func(t *testing.T) {
		got := locate(t, Deps{}, reasoning.ActionSpec{"targets": []any{"cost planned total"}}, newTestState())
		require.Equal(t, 2, got[0].Index)
	})

	t.Run("Should require equality in exact mode", func(t *testing.T) {
		got := locate(t, Deps{}, reasoning.ActionSpec{"targets": []any{"actual", "actual  cost"}, "mode": "exact"}, newTestState())
		require.Equal(t, -1, got[0].Index)
		require.Equal(t, 3, got[1].Index)
	})

	t.Run("Should resolve aliases from header info", func(t *testing.T) {
		s := newTestState()
		s.Memory["header_info"] = HeaderInfo{AliasMap: map[string]string{"ac": "Actual Cost"}}
		got := locate(t, Deps{}, reasoning.ActionSpec{"targets": []any{"AC"}, "mode": "exact"}, s)
		require.Equal(t, "Actual Cost", got[0].Matched)
	})

	t.Run("Should let the LLM pick headers without targets", func(t *testing.T) {
		client := scripted(`[{"target": "cost", "matched_header": "Actual Cost"}, {"target": "x", "matched_header": "Nope"}]`)
		got := locate(t, Deps{LLM: client}, reasoning.ActionSpec{}, newTestState())
		require.Equal(t, []ColumnMatch{{Target: "cost", Matched: "Actual Cost", Index: 3}}, got)
	})

	t.Run("Should fail without targets or LLM", func(t *testing.T) {
		_, _, err := apply(t, Deps{}, reasoning.ActionSpec{"type": TypeColumnLocating}, newTestState())
		require.ErrorIs(t, err, action.ErrExecution)
	})

	t.Run("Should reject an unknown mode", func(t *testing.T) {
		_, err := NewRegistry(Deps{}).Build(reasoning.ActionSpec{"type": TypeColumnLocating, "mode": "fuzzy"})
		require.ErrorIs(t, err, action.ErrValidation)
	})
}

func TestColumnConstructing(t *testing.T) {
	t.Run("Should append a derived column to a new view", func(t *testing.T) {
		s := newTestState()
		spec := reasoning.ActionSpec{"type": TypeColumnConstructing, "new_column": "Diff", "expr": "Actual_Cost - Planned_Cost"}
		next, obs, err := apply(t, Deps{}, spec, s)
		require.NoError(t, err)

		diff, err := next.View.Column("Diff")
		require.NoError(t, err)
		require.Equal(t, []string{"-100", "150", "", "-50"}, diff)
		require.Equal(t, 4, obs["insert_at"])
		require.Len(t, next.Table.Headers, 4)
	})

	t.Run("Should treat missing cells as zero when asked", func(t *testing.T) {
		spec := reasoning.ActionSpec{
			"type": TypeColumnConstructing, "new_column": "Diff", "expr": "Actual_Cost - Planned_Cost",
			"missing_as_zero": true, "insert_at": 1,
		}
		next, _, err := apply(t, Deps{}, spec, newTestState())
		require.NoError(t, err)
		require.Equal(t, "Diff", next.View.Headers[1])
		require.Equal(t, "-1500", next.View.Rows[2][1])
	})

	t.Run("Should keep numeric insert positions when building", func(t *testing.T) {
		a, err := NewRegistry(Deps{}).Build(reasoning.ActionSpec{"type": TypeColumnConstructing, "expr": "Year", "insert_at": 1})
		require.NoError(t, err)
		require.Equal(t, 1, insertPosition(a.(*ColumnConstructing).InsertAt, 4))

		r, err := NewRegistry(Deps{}).Build(reasoning.ActionSpec{"type": TypeRowConstructing, "rows": []any{0}, "insert_at": 0})
		require.NoError(t, err)
		require.Equal(t, 0, insertPosition(r.(*RowConstructing).InsertAt, 4))
	})

	t.Run("Should take the expression from the LLM", func(t *testing.T) {
		spec := reasoning.ActionSpec{"type": TypeColumnConstructing, "new_column": "Double"}
		next, obs, err := apply(t, Deps{LLM: scripted(`{"expr": "Planned_Cost * 2"}`)}, spec, newTestState())
		require.NoError(t, err)
		require.Equal(t, "2400", next.View.Rows[0][4])
		require.Equal(t, true, obs["llm_used"])
	})

	t.Run("Should reject unsafe expressions when building", func(t *testing.T) {
		_, err := NewRegistry(Deps{}).Build(reasoning.ActionSpec{"type": TypeColumnConstructing, "expr": "Year; rm"})
		require.ErrorIs(t, err, action.ErrValidation)
	})

	t.Run("Should fail on unknown columns", func(t *testing.T) {
		_, _, err := apply(t, Deps{}, reasoning.ActionSpec{"type": TypeColumnConstructing, "expr": "Profit * 2"}, newTestState())
		require.ErrorIs(t, err, action.ErrExecution)
	})
}

func TestInsertPosition(t *testing.T) {
	for _, tc := range []struct {
		at   any
		want int
	}{
		{nil, 4},
		{"end", 4},
		{1, 1},
		{2.0, 2},
		{"3", 3},
		{" 0 ", 0},
		{-2, 0},
		{"9", 4},
	} {
		require.Equal(t, tc.want, insertPosition(tc.at, 4), "insert_at %v", tc.at)
	}
}
