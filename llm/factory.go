package llm

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// New builds the configured client stack: transport, then optional cache, then
// optional rate limit. Provider "none" returns a nil client.
func New(cfg Config) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	var c Client
	switch provider {
	case "", "none":
		return nil, nil
	case "openai", "deepseek", "ollama":
		o, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		c = o
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfig, cfg.Provider)
	}

	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		c = NewCached(c, NewRedisCache(rdb, cfg.Cache.TTL), cfg.Model)
	}
	if cfg.RateLimit > 0 {
		c = NewLimited(c, cfg.RateLimit, cfg.Burst)
	}
	return c, nil
}
