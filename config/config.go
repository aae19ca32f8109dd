// Package config loads tqa settings from an optional file and TQA_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"tqa/agent"
	"tqa/engine"
	"tqa/knowledge"
	"tqa/llm"
	"tqa/meta"
	"tqa/store"
)

const EnvPrefix = "TQA"

type Config struct {
	Log       LogConfig           `mapstructure:"log"`
	LLM       llm.Config          `mapstructure:"llm"`
	Search    engine.SearchConfig `mapstructure:"search"`
	Agent     agent.Config        `mapstructure:"agent"`
	Knowledge KnowledgeConfig     `mapstructure:"knowledge"`
	Store     store.Config        `mapstructure:"store"`
	Server    ServerConfig        `mapstructure:"server"`
	Telemetry TelemetryConfig     `mapstructure:"telemetry"`
	// Prompts optionally overlays the embedded prompt packs.
	Prompts string `mapstructure:"prompts"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

// KnowledgeConfig points at directories of .md and .txt documents. An empty
// directory leaves the matching retrieval action on its stub.
type KnowledgeConfig struct {
	GeneralDir   string `mapstructure:"general_dir"`
	DomainDir    string `mapstructure:"domain_dir"`
	ChunkSize    int    `mapstructure:"chunk_size" validate:"gte=0"`
	ChunkOverlap int    `mapstructure:"chunk_overlap" validate:"gte=0"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
}

type TelemetryConfig struct {
	TraceStdout bool   `mapstructure:"trace_stdout"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("llm.provider", "none")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_key_env", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 900)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.retries", meta.LLM_RETRIES)
	v.SetDefault("llm.rate_limit", 0)
	v.SetDefault("llm.burst", 1)
	v.SetDefault("llm.cache.redis_addr", "")
	v.SetDefault("llm.cache.password", "")
	v.SetDefault("llm.cache.db", 0)
	v.SetDefault("llm.cache.ttl", 24*time.Hour)

	v.SetDefault("search.iterations", meta.ITERATIONS)
	v.SetDefault("search.max_candidates", meta.MAX_CANDIDATES)
	v.SetDefault("search.exploration", meta.EXPLORATION)
	v.SetDefault("search.max_depth", meta.MAX_DEPTH)
	v.SetDefault("search.min_score_to_expand", meta.MIN_SCORE_TO_EXPAND)

	v.SetDefault("agent.topk", meta.PLANNER_TOPK)
	v.SetDefault("agent.retries", meta.LLM_RETRIES)
	v.SetDefault("agent.error_penalty", meta.ERROR_PENALTY)
	v.SetDefault("agent.eval_use_llm", false)
	v.SetDefault("agent.judges", 0)
	v.SetDefault("agent.use_verifier", true)

	v.SetDefault("knowledge.general_dir", "")
	v.SetDefault("knowledge.domain_dir", "")
	v.SetDefault("knowledge.chunk_size", knowledge.ChunkSize)
	v.SetDefault("knowledge.chunk_overlap", knowledge.ChunkOverlap)

	v.SetDefault("store.enabled", false)
	v.SetDefault("store.path", "data/runs")
	v.SetDefault("store.in_memory", false)
	v.SetDefault("store.sync_writes", true)
	v.SetDefault("store.gc_interval", 5*time.Minute)

	v.SetDefault("server.addr", meta.SERVER_ADDR)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.run_timeout", 5*time.Minute)

	v.SetDefault("telemetry.trace_stdout", false)
	v.SetDefault("telemetry.service_name", "tqa")

	v.SetDefault("prompts", "")
}

// Load reads path when given, else an optional tqa.{yaml,json,toml} from the
// working directory or ./config. Environment variables override both, with
// dots replaced by underscores: TQA_SEARCH_ITERATIONS=32.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tqa")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.LLM.Provider != "none" && c.LLM.Model == "" {
		return fmt.Errorf("invalid config: llm.model is required for provider %q", c.LLM.Provider)
	}
	if c.Knowledge.ChunkSize > 0 && c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		return errors.New("invalid config: knowledge.chunk_overlap must be smaller than knowledge.chunk_size")
	}
	return nil
}
