package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const (
	DeepSeekBaseURL = "https://api.deepseek.com/v1"
	OllamaBaseURL   = "http://localhost:11434/v1"
)

// OpenAI talks to any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client      *openai.Client
	provider    string
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrConfig)
	}
	key := cfg.Key()
	baseURL := cfg.BaseURL
	switch strings.ToLower(cfg.Provider) {
	case "deepseek":
		if baseURL == "" {
			baseURL = DeepSeekBaseURL
		}
	case "ollama":
		if baseURL == "" {
			baseURL = OllamaBaseURL
		}
		if key == "" {
			key = "ollama" // ignored by the server
		}
	}
	if key == "" {
		return nil, fmt.Errorf("%w: no API key for provider %q", ErrConfig, cfg.Provider)
	}

	conf := openai.DefaultConfig(key)
	if baseURL != "" {
		conf.BaseURL = baseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	conf.HTTPClient = &http.Client{Timeout: timeout}

	log.Info().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("initializing chat client")
	return &OpenAI{
		client:      openai.NewClientWithConfig(conf),
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (o *OpenAI) Chat(ctx context.Context, system, user string, opts ...Option) (string, error) {
	params := collect(opts)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: o.temperature,
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if o.maxTokens > 0 {
		req.MaxCompletionTokens = o.maxTokens
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %s: %v", ErrRateLimit, o.provider, err)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrRequest, o.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", ErrRequest, o.provider)
	}
	log.Debug().Str("model", o.model).Str("finish_reason", string(resp.Choices[0].FinishReason)).Msg("chat completion")
	return resp.Choices[0].Message.Content, nil
}
