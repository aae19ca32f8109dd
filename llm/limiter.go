package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles calls to the wrapped client.
type Limited struct {
	next    Client
	limiter *rate.Limiter
}

func NewLimited(next Client, perSecond float64, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *Limited) Chat(ctx context.Context, system, user string, opts ...Option) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRateLimit, err)
	}
	return l.next.Chat(ctx, system, user, opts...)
}
