package llm

import (
	"os"
	"time"
)

type Config struct {
	Provider    string        `mapstructure:"provider" validate:"oneof=openai deepseek ollama none"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	APIKeyEnv   string        `mapstructure:"api_key_env"`
	Temperature float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max_tokens" validate:"gte=0"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries" validate:"gte=0"`
	RateLimit   float64       `mapstructure:"rate_limit" validate:"gte=0"` // requests per second, 0 disables
	Burst       int           `mapstructure:"burst" validate:"gte=0"`
	Cache       CacheConfig   `mapstructure:"cache"`
}

type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Key returns the explicit API key, falling back to the configured
// environment variable.
func (c Config) Key() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}
