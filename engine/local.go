package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tqa/action"
	"tqa/agent"
	"tqa/experiments/metrics"
	"tqa/llm"
	"tqa/prompt"
	"tqa/reasoning"
	"tqa/searcher"
	"tqa/store"
	"tqa/table"
)

// Local runs every request in process. It is safe for concurrent use: each
// request gets its own agents and search tree.
type Local struct {
	client       llm.Client
	registry     *action.Registry
	prompts      *prompt.Library
	search       SearchConfig
	agents       agent.Config
	store        *store.Store
	tracer       trace.Tracer
	newCollector func() metrics.Collector
}

type LocalOption func(l *Local)

func WithSearch(cfg SearchConfig) LocalOption {
	return func(l *Local) { l.search = cfg }
}

func WithAgents(cfg agent.Config) LocalOption {
	return func(l *Local) { l.agents = cfg }
}

func WithPrompts(prompts *prompt.Library) LocalOption {
	return func(l *Local) {
		if prompts != nil {
			l.prompts = prompts
		}
	}
}

// WithStore persists every result under its run ID.
func WithStore(s *store.Store) LocalOption {
	return func(l *Local) { l.store = s }
}

func WithTracer(tracer trace.Tracer) LocalOption {
	return func(l *Local) {
		if tracer != nil {
			l.tracer = tracer
		}
	}
}

// WithCollector sets the metrics collector factory, called once per request.
func WithCollector(newCollector func() metrics.Collector) LocalOption {
	return func(l *Local) {
		if newCollector != nil {
			l.newCollector = newCollector
		}
	}
}

// NewLocal builds an engine around client, which may be nil for the LLM-free
// policy.
func NewLocal(client llm.Client, registry *action.Registry, options ...LocalOption) *Local {
	if registry == nil {
		panic("Local engine requires an action registry")
	}
	l := &Local{
		client:       client,
		registry:     registry,
		prompts:      prompt.Default(),
		search:       DefaultSearchConfig(),
		agents:       agent.DefaultConfig(),
		tracer:       otel.Tracer("tqa/engine"),
		newCollector: metrics.NewCollector,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *Local) Answer(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	view, err := table.Parse(req.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to create run id: %w", err)
	}
	runID := id.String()
	logger := log.With().Str("run_id", runID).Logger()

	ctx, span := l.tracer.Start(ctx, "engine.answer")
	defer span.End()

	root := reasoning.NewState(req.Question, view)
	if req.Gold != nil {
		root.Memory[reasoning.GoldAnswerKey] = req.Gold
	}

	iterations := l.search.Iterations
	if req.Iterations > 0 {
		iterations = req.Iterations
	}
	agents := agent.New(l.agents, l.client, l.registry, l.prompts)
	mcts := searcher.NewMCTS(agents.Planner, agents.Executor, agents.Evaluator,
		searcher.WithIterations(iterations),
		searcher.WithCandidates(l.search.MaxCandidates),
		searcher.WithExploration(l.search.Exploration),
		searcher.WithHeuristics(searcher.Heuristics{
			MaxDepth:         l.search.MaxDepth,
			MinScoreToExpand: l.search.MinScoreToExpand,
		}),
		searcher.WithMetrics(l.newCollector()),
		searcher.WithTracer(l.tracer),
	)

	logger.Info().Str("question", req.Question).Int("rows", view.NumRows()).Int("iterations", iterations).Msg("starting search")
	start := time.Now()
	paths, metric, err := mcts.Search(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	chosen, idx, err := agents.Selector.Run(ctx, req.Question, paths)
	if err != nil {
		return nil, fmt.Errorf("selection failed: %w", err)
	}

	res := &Result{
		RunID:      runID,
		Question:   req.Question,
		Answer:     chosen.FinalAnswer,
		Chosen:     idx,
		Candidates: paths,
		Metrics:    metric,
		Elapsed:    time.Since(start),
		CreatedAt:  start.UTC(),
	}
	if req.Gold != nil {
		correct := agent.MatchesGold(res.Answer, req.Gold)
		res.Correct = &correct
	}
	logger.Info().Interface("answer", res.Answer).Int("candidates", len(paths)).Int("chosen", idx).
		Dur("elapsed", res.Elapsed).Msg("completed search")

	if l.store != nil {
		if err := l.store.Put(ctx, runID, res); err != nil {
			logger.Warn().Err(err).Msg("failed to store run")
		}
	}
	return res, nil
}

func (l *Local) Run(ctx context.Context, id string) (*Result, error) {
	if l.store == nil {
		return nil, ErrNoStore
	}
	var res Result
	if err := l.store.Get(ctx, id, &res); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &res, nil
}
