package searcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"tqa/reasoning"
	"tqa/table"
)

func newTestRoot() *reasoning.State {
	v := table.NewView([]string{"name", "score"}, [][]string{{"a", "1"}, {"b", "2"}, {"c", "3"}})
	return reasoning.NewState("what is the top score?", v)
}

func TestUCB(t *testing.T) {
	t.Run("Should score unvisited children as +Inf", func(t *testing.T) {
		require.True(t, math.IsInf(ucb(0.4, 0, 10, 0), 1))
	})

	t.Run("Should add the exploration bonus", func(t *testing.T) {
		got := ucb(0.5, 4, 9, 1.4)
		expected := 0.5 + 1.4*math.Sqrt(math.Log(10)/4)
		require.InDelta(t, expected, got, 1e-9)
	})

	t.Run("Should clamp the log argument at 1", func(t *testing.T) {
		require.Equal(t, 0.3, ucb(0.3, 2, -5, 1.4), "Should have no exploration bonus")
	})

	t.Run("Exploration term decreases with child visits", func(t *testing.T) {
		require.Greater(t, ucb(0.5, 2, 20, 1.4), ucb(0.5, 8, 20, 1.4))
	})
}

func TestNodeBackup(t *testing.T) {
	t.Run("Should keep a running mean of rewards", func(t *testing.T) {
		n := newNode(nil, newTestRoot())
		for _, r := range []float64{0.2, -0.4, 0.8} {
			n.Backup(r)
		}
		require.Equal(t, 3, n.Visits())
		require.InDelta(t, (0.2-0.4+0.8)/3, n.Value(), 1e-12)
	})

	t.Run("Should return the parent", func(t *testing.T) {
		root := newNode(nil, newTestRoot())
		child := newNode(root, newTestRoot())
		require.Same(t, root, child.Backup(1))
		require.Nil(t, root.Backup(1))
	})

	t.Run("Should update every ancestor", func(t *testing.T) {
		root := newNode(nil, newTestRoot())
		child := newNode(root, newTestRoot())
		grandChild := newNode(child, newTestRoot())
		backup(grandChild, 0.6)
		backup(child, 0.0)

		require.Equal(t, 2, root.Visits())
		require.InDelta(t, 0.3, root.Value(), 1e-12)
		require.Equal(t, 2, child.Visits())
		require.Equal(t, 1, grandChild.Visits())
	})
}

func TestPickChild(t *testing.T) {
	t.Run("Should pick the unvisited child regardless of exploration", func(t *testing.T) {
		for _, c := range []float64{0, 1.4, 100} {
			root := newNode(nil, newTestRoot())
			visited := newNode(root, newTestRoot())
			visited.visits, visited.value = 5, 0.4
			root.children[0] = visited
			root.children[1] = newNode(root, newTestRoot())
			root.visits = 5

			require.Equal(t, 1, root.pickChild(c))
		}
	})

	t.Run("Should pick the highest value without exploration", func(t *testing.T) {
		root := newNode(nil, newTestRoot())
		for i, q := range []float64{0.1, 0.7, 0.3} {
			child := newNode(root, newTestRoot())
			child.visits, child.value = 2, q
			root.children[i] = child
		}
		root.visits = 6
		require.Equal(t, 1, root.pickChild(0))
	})

	t.Run("Should break ties by lowest key", func(t *testing.T) {
		root := newNode(nil, newTestRoot())
		for _, k := range []int{3, 1, 2} {
			child := newNode(root, newTestRoot())
			child.visits, child.value = 1, 0.5
			root.children[k] = child
		}
		root.visits = 3
		require.Equal(t, 1, root.pickChild(1.4))
	})

	t.Run("Should panic without children", func(t *testing.T) {
		require.Panics(t, func() { newNode(nil, newTestRoot()).pickChild(1.4) })
	})
}

func TestUntried(t *testing.T) {
	n := newNode(nil, newTestRoot())
	require.Equal(t, 0, n.untried(3))

	n.children[0] = newNode(n, newTestRoot())
	n.children[2] = newNode(n, newTestRoot())
	require.Equal(t, 1, n.untried(3))

	n.children[1] = newNode(n, newTestRoot())
	require.Equal(t, 0, n.untried(3), "Should fall back to the top-ranked position")
	require.Equal(t, 0, n.untried(2))
}

func TestHeuristics(t *testing.T) {
	h := Heuristics{MaxDepth: 3, MinScoreToExpand: 0.1}
	require.False(t, h.ShouldStop(2))
	require.True(t, h.ShouldStop(3))
	require.True(t, h.ShouldExpand(0.1))
	require.False(t, h.ShouldExpand(0.05))

	d := DefaultHeuristics()
	require.Equal(t, 12, d.MaxDepth)
	require.True(t, d.ShouldExpand(-1e6))
}
