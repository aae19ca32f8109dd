// Package experiments runs datasets through engines built from a sweep of
// search configurations and writes the results as CSV.
package experiments

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tqa/engine"
	"tqa/experiments/metrics"
)

// Factory builds the engine for one configuration.
type Factory func(cfg metrics.RunConfig) engine.Engine

// IterationSweep varies the search budget around base.
func IterationSweep(base metrics.RunConfig) []metrics.RunConfig {
	var configs []metrics.RunConfig
	for i, n := range []int{8, 16, 32, 64, 128} {
		c := base
		c.ID, c.Iterations = i+1, n
		configs = append(configs, c)
	}
	return configs
}

// ExplorationSweep varies the UCB exploration constant around base.
func ExplorationSweep(base metrics.RunConfig) []metrics.RunConfig {
	var configs []metrics.RunConfig
	for i, c := range []float64{0, 0.5, 1, 1.4, 2} {
		cfg := base
		cfg.ID, cfg.Exploration = i+1, c
		configs = append(configs, cfg)
	}
	return configs
}

// ThroughputSweep keeps the search fixed and answers more questions in
// parallel.
func ThroughputSweep(base metrics.RunConfig) []metrics.RunConfig {
	var configs []metrics.RunConfig
	for i, n := range []int{1, 2, 4, 8, 16} {
		c := base
		c.ID, c.Concurrency = i+1, n
		configs = append(configs, c)
	}
	return configs
}

// Sweep returns the configurations of a named experiment.
func Sweep(name string, base metrics.RunConfig) ([]metrics.RunConfig, error) {
	switch name {
	case "iterations":
		return IterationSweep(base), nil
	case "exploration":
		return ExplorationSweep(base), nil
	case "throughput":
		return ThroughputSweep(base), nil
	case "single":
		base.ID = 1
		return []metrics.RunConfig{base}, nil
	default:
		return nil, fmt.Errorf("unknown experiment %q", name)
	}
}

type Report struct {
	Dir       string
	Summaries []metrics.Summary
}

// Run answers every example with every configuration. Failed questions are
// recorded, not fatal. With an empty outDir nothing is written.
func Run(ctx context.Context, name string, examples []Example, configs []metrics.RunConfig, factory Factory, outDir string) (*Report, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("experiment %s has no examples", name)
	}
	log.Info().Msgf("starting %s experiment with %d configs and %d questions...", name, len(configs), len(examples))

	var records []metrics.QuestionRecord
	report := &Report{}
	for ci, cfg := range configs {
		log.Info().Msgf("starting config %d of %d: %+v", ci+1, len(configs), cfg)

		start := time.Now()
		batch, err := runConfig(ctx, factory(cfg), cfg, examples)
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
		summary := metrics.Summarize(cfg.ID, batch, time.Since(start))
		report.Summaries = append(report.Summaries, summary)

		log.Info().Msgf("completed config %d of %d: accuracy=%.3f correct=%d/%d errors=%d",
			ci+1, len(configs), summary.Accuracy, summary.Correct, summary.Questions, summary.Errors)
	}
	log.Info().Msgf("completed %s experiment", name)

	if outDir == "" {
		return report, nil
	}
	writer, err := metrics.NewWriter(outDir, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create experiment writer: %w", err)
	}
	if err := writer.WriteRunConfigs(configs); err != nil {
		return nil, err
	}
	if err := writer.WriteQuestionRecords(records); err != nil {
		return nil, err
	}
	if err := writer.WriteSummaries(report.Summaries); err != nil {
		return nil, err
	}
	report.Dir = writer.Dir()
	log.Info().Str("dir", report.Dir).Msg("stored experiment records")
	return report, nil
}

func runConfig(ctx context.Context, eng engine.Engine, cfg metrics.RunConfig, examples []Example) ([]metrics.QuestionRecord, error) {
	records := make([]metrics.QuestionRecord, len(examples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Concurrency, 1))
	for i, ex := range examples {
		g.Go(func() error {
			records[i] = answer(gctx, eng, cfg.ID, ex)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func answer(ctx context.Context, eng engine.Engine, config int, ex Example) metrics.QuestionRecord {
	rec := metrics.QuestionRecord{Config: config, Question: ex.ID}
	if ex.Answer != nil {
		rec.Gold = fmt.Sprint(ex.Answer)
	}

	res, err := eng.Answer(ctx, engine.Request{Question: ex.Question, Table: ex.Table, Gold: ex.Answer})
	if err != nil {
		log.Warn().Err(err).Str("question", ex.ID).Msg("question failed")
		rec.Error = err.Error()
		return rec
	}
	rec.RunID = res.RunID
	rec.SearchMetric = res.Metrics
	if res.Answer != nil {
		rec.Answer = fmt.Sprint(res.Answer)
	}
	if res.Correct != nil {
		rec.Correct = *res.Correct
	}
	if res.Chosen >= 0 && res.Chosen < len(res.Candidates) {
		rec.Score = res.Candidates[res.Chosen].TotalScore
	}
	return rec
}
