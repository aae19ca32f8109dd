package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindIndex(t *testing.T) {
	t.Run("Should return position of the first match", func(t *testing.T) {
		require.Equal(t, 1, FindIndex([]string{"a", "b", "b"}, "b"))
	})

	t.Run("Should return -1 when absent", func(t *testing.T) {
		require.Equal(t, -1, FindIndex([]int{1, 2}, 3))
	})
}

func TestClamp(t *testing.T) {
	require.Equal(t, 0.0, Clamp(-0.5, 0.0, 1.0))
	require.Equal(t, 1.0, Clamp(1.5, 0.0, 1.0))
	require.Equal(t, 0.3, Clamp(0.3, 0.0, 1.0))
}

func TestSortedKeys(t *testing.T) {
	require.Equal(t, []int{0, 2, 5}, SortedKeys(map[int]string{5: "x", 0: "y", 2: "z"}))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", Truncate("abc", 5))
	require.Equal(t, "ab...", Truncate("abcdefgh", 5))
	require.Equal(t, "abcdefgh", Truncate("abcdefgh", 0))
}
