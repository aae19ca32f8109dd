package llm

import "context"

// Client sends one system+user exchange and returns the raw reply text.
type Client interface {
	Chat(ctx context.Context, system, user string, opts ...Option) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, system, user string, opts ...Option) (string, error)

func (f ClientFunc) Chat(ctx context.Context, system, user string, opts ...Option) (string, error) {
	return f(ctx, system, user, opts...)
}

type Options struct {
	Temperature *float32
	MaxTokens   *int
}

type Option func(*Options)

func WithTemperature(t float32) Option {
	return func(o *Options) { o.Temperature = &t }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = &n
		}
	}
}

func collect(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
