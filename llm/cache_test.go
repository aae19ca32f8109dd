package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockCache struct {
	data   map[string]string
	getErr error
}

func (m *mockCache) Get(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key, value string) error {
	m.data[key] = value
	return nil
}

func TestCached(t *testing.T) {
	ctx := context.Background()

	t.Run("Should serve repeated prompts from the cache", func(t *testing.T) {
		calls := 0
		next := ClientFunc(func(context.Context, string, string, ...Option) (string, error) {
			calls++
			return "reply", nil
		})
		c := NewCached(next, &mockCache{data: map[string]string{}}, "gpt")

		for i := 0; i < 3; i++ {
			got, err := c.Chat(ctx, "sys", "user")
			require.NoError(t, err)
			require.Equal(t, "reply", got)
		}
		require.Equal(t, 1, calls)

		_, err := c.Chat(ctx, "sys", "user", WithTemperature(0.7))
		require.NoError(t, err)
		require.Equal(t, 2, calls, "Should key on options")
	})

	t.Run("Should bypass a failing cache", func(t *testing.T) {
		calls := 0
		next := ClientFunc(func(context.Context, string, string, ...Option) (string, error) {
			calls++
			return "reply", nil
		})
		c := NewCached(next, &mockCache{data: map[string]string{}, getErr: errors.New("down")}, "gpt")
		_, err := c.Chat(ctx, "sys", "user")
		require.NoError(t, err)
		_, err = c.Chat(ctx, "sys", "user")
		require.NoError(t, err)
		require.Equal(t, 2, calls)
	})

	t.Run("Should not cache errors", func(t *testing.T) {
		cache := &mockCache{data: map[string]string{}}
		next := ClientFunc(func(context.Context, string, string, ...Option) (string, error) {
			return "", ErrRequest
		})
		_, err := NewCached(next, cache, "gpt").Chat(ctx, "sys", "user")
		require.ErrorIs(t, err, ErrRequest)
		require.Empty(t, cache.data)
	})
}

func TestLimited(t *testing.T) {
	next := ClientFunc(func(context.Context, string, string, ...Option) (string, error) { return "ok", nil })
	l := NewLimited(next, 1000, 0)

	got, err := l.Chat(context.Background(), "s", "u")
	require.NoError(t, err)
	require.Equal(t, "ok", got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Chat(ctx, "s", "u")
	require.ErrorIs(t, err, ErrRateLimit)
}
