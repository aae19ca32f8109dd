package reasoning

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tqa/table"
)

func newTestState() *State {
	v := table.NewView([]string{"a", "b"}, [][]string{{"1", "2"}})
	s := NewState("what is a?", v)
	s.Memory["x"] = 1.0
	s.Path.Append(Step{Spec: ActionSpec{"type": "Finish"}})
	s.Path.Meta["k"] = "v"
	return s
}

func TestFork(t *testing.T) {
	t.Run("Should not alias the top-level memory map", func(t *testing.T) {
		s := newTestState()
		f := s.Fork()

		f.Memory["y"] = 2.0
		s.Memory["x"] = 3.0

		require.False(t, s.Memory.Has("y"))
		require.Equal(t, 1.0, f.Memory["x"])
	})

	t.Run("Should copy steps and meta", func(t *testing.T) {
		s := newTestState()
		f := s.Fork()

		f.Path.Append(Step{Spec: ActionSpec{"type": "Computing"}})
		f.Path.Meta[MetaPruned] = true

		require.Len(t, s.Path.Steps, 1)
		require.Len(t, f.Path.Steps, 2)
		require.False(t, s.Path.Meta.Flag(MetaPruned))
		require.Equal(t, "v", f.Path.Meta["k"])
	})

	t.Run("Should share table views and copy scalars", func(t *testing.T) {
		s := newTestState()
		s.Depth = 3
		s.Answer = "42"
		f := s.Fork()

		require.Same(t, s.Table, f.Table)
		require.Same(t, s.View, f.View)
		require.Equal(t, 3, f.Depth)
		require.Equal(t, "42", f.Answer)

		f.Done = true
		f.Depth++
		require.False(t, s.Done)
		require.Equal(t, 3, s.Depth)
	})

	t.Run("Should share nested memory values", func(t *testing.T) {
		s := newTestState()
		s.Memory["rows"] = []int{1, 2}
		f := s.Fork()

		f.Memory["rows"].([]int)[0] = 9
		require.Equal(t, 9, s.Memory["rows"].([]int)[0], "Fork copies only the top level")
	})
}

func TestMetaMerge(t *testing.T) {
	m := Meta{"a": 1, "b": 2}
	m.Merge(map[string]any{"b": 3, "c": 4})
	require.Equal(t, Meta{"a": 1, "b": 3, "c": 4}, m)
}

func TestObservation(t *testing.T) {
	t.Run("Should describe failures", func(t *testing.T) {
		o := FailureObservation("ValidationError", "bad", -0.5)
		require.False(t, o.OK())
		require.Equal(t, "bad", o.ErrorMessage())
		require.Equal(t, -0.5, o.Penalty())
	})

	t.Run("Should treat missing ok as success", func(t *testing.T) {
		require.True(t, Observation{"value": 1}.OK())
	})

	t.Run("Should read the action type tag", func(t *testing.T) {
		require.Equal(t, "Finish", ActionSpec{"type": "Finish"}.Type())
		require.Equal(t, "", ActionSpec{"type": 3}.Type())
	})
}

func TestVisibleKeys(t *testing.T) {
	t.Run("Should hide the gold answer", func(t *testing.T) {
		m := Memory{"b": 1.0, GoldAnswerKey: 2750.0, "a": "x"}
		require.Equal(t, []string{"a", "b"}, m.VisibleKeys())
		require.True(t, m.Has(GoldAnswerKey))
	})
}
