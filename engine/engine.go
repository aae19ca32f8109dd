// Package engine answers questions over tables, either in process or through a
// remote tqa server.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tqa/experiments/metrics"
	"tqa/meta"
	"tqa/reasoning"
	"tqa/store"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = store.ErrNotFound
	ErrNoStore        = errors.New("run storage is disabled")
)

type Engine interface {
	// Answer searches for reasoning paths over the request's table and returns
	// the selected answer together with every candidate.
	Answer(ctx context.Context, req Request) (*Result, error)
	// Run returns a previously stored result.
	Run(ctx context.Context, id string) (*Result, error)
}

type Request struct {
	Question string `json:"question" binding:"required"`
	Table    string `json:"table" binding:"required"`
	// Gold is only used for scoring and never shown to planning prompts.
	Gold       any `json:"gold_answer,omitempty"`
	Iterations int `json:"iterations,omitempty"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Table) == "" {
		return fmt.Errorf("%w: table is required", ErrInvalidRequest)
	}
	if r.Iterations < 0 {
		return fmt.Errorf("%w: iterations must not be negative", ErrInvalidRequest)
	}
	return nil
}

type Result struct {
	RunID      string               `json:"run_id"`
	Question   string               `json:"question"`
	Answer     any                  `json:"answer"`
	Correct    *bool                `json:"correct,omitempty"`
	Chosen     int                  `json:"chosen"`
	Candidates []*reasoning.Path    `json:"candidates"`
	Metrics    metrics.SearchMetric `json:"metrics"`
	Elapsed    time.Duration        `json:"elapsed"`
	CreatedAt  time.Time            `json:"created_at"`
}

// SearchConfig shapes one MCTS run.
type SearchConfig struct {
	Iterations       int     `mapstructure:"iterations" validate:"gte=1"`
	MaxCandidates    int     `mapstructure:"max_candidates" validate:"gte=1"`
	Exploration      float64 `mapstructure:"exploration" validate:"gte=0"`
	MaxDepth         int     `mapstructure:"max_depth" validate:"gte=1"`
	MinScoreToExpand float64 `mapstructure:"min_score_to_expand"`
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Iterations:       meta.ITERATIONS,
		MaxCandidates:    meta.MAX_CANDIDATES,
		Exploration:      meta.EXPLORATION,
		MaxDepth:         meta.MAX_DEPTH,
		MinScoreToExpand: meta.MIN_SCORE_TO_EXPAND,
	}
}
