package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: "tqa:llm:", ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string) error {
	return r.rdb.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// Cached serves repeated prompts from a cache. Cache failures are logged and
// bypassed.
type Cached struct {
	next  Client
	cache Cache
	model string
}

func NewCached(next Client, cache Cache, model string) *Cached {
	return &Cached{next: next, cache: cache, model: model}
}

func (c *Cached) Chat(ctx context.Context, system, user string, opts ...Option) (string, error) {
	key := cacheKey(c.model, system, user, collect(opts))
	if val, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("llm cache read failed")
	} else if ok {
		return val, nil
	}

	val, err := c.next.Chat(ctx, system, user, opts...)
	if err != nil {
		return "", err
	}
	if err := c.cache.Set(ctx, key, val); err != nil {
		log.Warn().Err(err).Msg("llm cache write failed")
	}
	return val, nil
}

func cacheKey(model, system, user string, o Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", model, system, user)
	if o.Temperature != nil {
		h.Write([]byte(strconv.FormatFloat(float64(*o.Temperature), 'g', -1, 32)))
	}
	h.Write([]byte{0})
	if o.MaxTokens != nil {
		h.Write([]byte(strconv.Itoa(*o.MaxTokens)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
