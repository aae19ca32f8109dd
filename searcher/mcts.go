package searcher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tqa/experiments/metrics"
	"tqa/reasoning"
)

var (
	ErrNoRoot       = errors.New("search requires a root state")
	ErrInvalidQuota = errors.New("candidate quota must be positive")
	ErrNoCandidates = errors.New("search produced no candidate paths")
)

type Option func(m *MCTS)

type MCTS struct {
	planner     Planner
	executor    Executor
	evaluator   Evaluator
	iterations  int
	quota       int
	exploration float64
	heuristics  Heuristics
	metrics     metrics.Collector
	tracer      trace.Tracer
}

func WithIterations(iterations int) Option {
	return func(m *MCTS) {
		if iterations > 0 {
			m.iterations = iterations
		}
	}
}

// WithCandidates sets the candidate quota. Search rejects non-positive quotas.
func WithCandidates(candidates int) Option {
	return func(m *MCTS) {
		m.quota = candidates
	}
}

func WithExploration(c float64) Option {
	return func(m *MCTS) {
		if c >= 0 {
			m.exploration = c
		}
	}
}

func WithHeuristics(h Heuristics) Option {
	return func(m *MCTS) {
		m.heuristics = h
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(m *MCTS) {
		if collector != nil {
			m.metrics = collector
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(m *MCTS) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

func NewMCTS(planner Planner, executor Executor, evaluator Evaluator, options ...Option) *MCTS {
	if planner == nil || executor == nil || evaluator == nil {
		panic("MCTS requires a planner, an executor and an evaluator")
	}
	m := &MCTS{ // Default values
		planner:     planner,
		executor:    executor,
		evaluator:   evaluator,
		iterations:  Iterations,
		quota:       Candidates,
		exploration: Exploration,
		heuristics:  DefaultHeuristics(),
		metrics:     metrics.NewDummyCollector(),
		tracer:      otel.Tracer("tqa/searcher"),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// search holds the tree and candidates of one Search call.
type search struct {
	*MCTS
	root       *Node
	candidates []*reasoning.Path
}

// Search runs MCTS from root and returns the collected candidate paths sorted
// by score, best first, together with the run's metrics.
func (m *MCTS) Search(ctx context.Context, root *reasoning.State) ([]*reasoning.Path, metrics.SearchMetric, error) {
	if root == nil {
		return nil, metrics.SearchMetric{}, ErrNoRoot
	}
	if m.quota <= 0 {
		return nil, metrics.SearchMetric{}, fmt.Errorf("%w: got %d", ErrInvalidQuota, m.quota)
	}

	ctx, span := m.tracer.Start(ctx, "mcts.search", trace.WithAttributes(
		attribute.Int("mcts.iterations", m.iterations),
		attribute.Int("mcts.max_candidates", m.quota),
		attribute.Float64("mcts.exploration", m.exploration),
		attribute.Int("mcts.max_depth", m.heuristics.MaxDepth),
	))
	defer span.End()

	m.metrics.Start(m.iterations, m.exploration, m.heuristics.MaxDepth)
	s := &search{MCTS: m, root: newNode(nil, root)}
	err := s.run(ctx)
	metric := m.metrics.Complete()
	if err == nil && len(s.candidates) == 0 {
		err = ErrNoCandidates
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, metric, err
	}

	sort.SliceStable(s.candidates, func(i, j int) bool {
		return s.candidates[i].TotalScore > s.candidates[j].TotalScore
	})
	if len(s.candidates) > m.quota {
		s.candidates = s.candidates[:m.quota]
	}
	span.SetAttributes(attribute.Int("mcts.candidates", len(s.candidates)))
	return s.candidates, metric, nil
}

func (s *search) run(ctx context.Context) error {
	for i := 0; i < s.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.iterate(ctx); err != nil {
			return err
		}
		s.metrics.AddEpisode()

		if len(s.candidates) >= s.quota {
			log.Debug().Int("iteration", i).Msg("candidate quota reached")
			break
		}
	}
	return nil
}

func (s *search) iterate(ctx context.Context) error {
	node := selects(s.root, s.exploration)

	if node.state.Done || s.heuristics.ShouldStop(node.state.Depth) {
		s.revisit(node)
		return nil
	}

	specs, err := s.planner.Propose(ctx, node.state)
	if err != nil {
		return fmt.Errorf("failed to propose actions at depth %d: %w", node.state.Depth, err)
	}
	if len(specs) == 0 {
		return s.deadEnd(ctx, node)
	}

	idx := node.untried(len(specs))
	child, err := s.expand(ctx, node, idx, specs[idx])
	if err != nil {
		return err
	}
	backup(child, child.eval.Score)
	if s.collect(child.state, child.eval) {
		child.collected = true
	}
	return nil
}

// selects descends from root by UCB until it reaches a leaf or a done state.
func selects(root *Node, c float64) *Node {
	node := root
	for len(node.children) > 0 && !node.state.Done {
		node = node.children[node.pickChild(c)]
	}
	return node
}

// expand executes spec on a fork of node's state, evaluates the result and
// attaches it at position idx, replacing any child already there.
func (s *search) expand(ctx context.Context, node *Node, idx int, spec reasoning.ActionSpec) (*Node, error) {
	forked := node.state.Fork()
	next, obs := s.executor.Execute(ctx, forked, spec)
	if next == nil {
		next = forked
	}

	step := reasoning.Step{Spec: spec, Observation: obs}
	if !obs.OK() {
		step.Error = obs.ErrorMessage()
		s.metrics.AddFailure()
		log.Debug().Str("action", spec.Type()).Str("error", step.Error).Msg("action failed")
	}
	next.Path.Append(step)
	next.Depth = node.state.Depth + 1

	eval, err := s.evaluator.Evaluate(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate state at depth %d: %w", next.Depth, err)
	}
	score := eval.Score
	next.Path.Steps[len(next.Path.Steps)-1].Score = &score

	switch {
	case !s.heuristics.ShouldExpand(score):
		next.Done = true
		next.Path.Meta[reasoning.MetaPruned] = true
		s.metrics.AddPruned()
	case !next.Done && s.heuristics.ShouldStop(next.Depth):
		next.Done = true
		next.Path.Meta[reasoning.MetaDepthLimit] = true
	}
	if next.Done {
		next.Path.Terminal = true
		next.Path.FinalAnswer = next.Answer
	}

	child := newNode(node, next)
	child.eval = &eval
	node.children[idx] = child
	s.metrics.AddExpansion()

	trace.SpanFromContext(ctx).AddEvent("mcts.expand", trace.WithAttributes(
		attribute.String("action", spec.Type()),
		attribute.Int("position", idx),
		attribute.Int("depth", next.Depth),
		attribute.Float64("reward", score),
	))
	return child, nil
}

// deadEnd handles an empty proposal. The terminal fork is evaluated and
// collected but never attached to the tree; its reward goes to node.
func (s *search) deadEnd(ctx context.Context, node *Node) error {
	s.metrics.AddDeadEnd()

	dead := node.state.Fork()
	dead.Done = true
	dead.Path.Terminal = true
	dead.Path.FinalAnswer = dead.Answer
	dead.Path.Meta[reasoning.MetaDeadEnd] = true

	eval, err := s.evaluator.Evaluate(ctx, dead)
	if err != nil {
		return fmt.Errorf("failed to evaluate dead end at depth %d: %w", dead.Depth, err)
	}
	backup(node, eval.Score)
	s.collect(dead, &eval)
	return nil
}

// revisit collects a done or depth-exhausted node that was selected again.
// No evaluation or backup happens, and a node is collected at most once.
func (s *search) revisit(node *Node) {
	if node.collected {
		return
	}
	if s.collect(node.state, node.eval) {
		node.collected = true
	}
}

// collect appends a finalized copy of st's path to the candidates when st is
// done or terminal and the quota has room.
func (s *search) collect(st *reasoning.State, eval *Evaluation) bool {
	if !st.Done && !st.Path.Terminal {
		return false
	}
	if len(s.candidates) >= s.quota {
		return false
	}

	path := st.Path.Clone()
	if path.Meta == nil {
		path.Meta = reasoning.Meta{}
	}
	if eval != nil {
		path.TotalScore = eval.Score
		if eval.Critique != "" {
			path.Meta[reasoning.MetaCritique] = eval.Critique
		}
		path.Meta.Merge(eval.Extra)
	}
	path.FinalAnswer = st.Answer

	s.candidates = append(s.candidates, path)
	s.metrics.AddCandidate()
	return true
}

func backup(node *Node, reward float64) {
	for node != nil {
		node = node.Backup(reward)
	}
}
