package agent

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"tqa/llm"
	"tqa/meta"
	"tqa/prompt"
	"tqa/reasoning"
	"tqa/searcher"
)

var ErrNoCandidates = errors.New("no candidate paths to select from")

// Judge scores a single candidate path.
type Judge interface {
	Judge(ctx context.Context, question string, path *reasoning.Path) (searcher.Evaluation, error)
}

// PathJudge is an LLM judge.
type PathJudge struct {
	client  llm.Client
	prompts *prompt.Library
	retries int
}

func NewPathJudge(client llm.Client, prompts *prompt.Library) *PathJudge {
	if client == nil {
		panic("PathJudge requires an LLM client")
	}
	if prompts == nil {
		prompts = prompt.Default()
	}
	return &PathJudge{client: client, prompts: prompts, retries: meta.LLM_RETRIES}
}

func (j *PathJudge) Judge(ctx context.Context, question string, path *reasoning.Path) (searcher.Evaluation, error) {
	system, user, err := j.prompts.Render(prompt.Judge, map[string]any{
		"Question":  question,
		"Candidate": NewCandidate(path, 0),
	})
	if err != nil {
		return searcher.Evaluation{}, err
	}
	out, err := llm.ChatObject(ctx, j.client, system, user, j.retries, llm.WithTemperature(0.2), llm.WithMaxTokens(900))
	if err != nil {
		return searcher.Evaluation{}, err
	}

	eval := searcher.Evaluation{Extra: map[string]any{}}
	eval.Score, _ = out["score"].(float64)
	eval.Critique, _ = out["critique"].(string)
	if extra, ok := out["extra"].(map[string]any); ok {
		eval.Extra = extra
	}
	return eval, nil
}

// DebateRunner selects the final path. Judges, when present, rescore every
// path concurrently: the mean judge score replaces TotalScore and their
// critiques go into the path metadata. The decider then picks a path; without
// one the highest scoring path wins.
type DebateRunner struct {
	Judges  []Judge
	Decider searcher.Decider
}

// Run returns the selected path and its index in paths.
func (r *DebateRunner) Run(ctx context.Context, question string, paths []*reasoning.Path) (*reasoning.Path, int, error) {
	if len(paths) == 0 {
		return nil, 0, ErrNoCandidates
	}
	if len(r.Judges) > 0 {
		if err := r.judge(ctx, question, paths); err != nil {
			return nil, 0, err
		}
	}

	if r.Decider == nil {
		idx := best(paths)
		return paths[idx], idx, nil
	}
	idx, err := r.Decider.Decide(ctx, question, paths)
	if err != nil {
		return nil, 0, err
	}
	idx = min(max(idx, 0), len(paths)-1)
	return paths[idx], idx, nil
}

func (r *DebateRunner) judge(ctx context.Context, question string, paths []*reasoning.Path) error {
	results := make([][]searcher.Evaluation, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		results[i] = make([]searcher.Evaluation, len(r.Judges))
		for j, judge := range r.Judges {
			g.Go(func() error {
				eval, err := judge.Judge(gctx, question, p)
				if err != nil {
					return err
				}
				results[i][j] = eval
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, p := range paths {
		var sum float64
		var critiques []string
		for _, eval := range results[i] {
			sum += eval.Score
			if eval.Critique != "" {
				critiques = append(critiques, eval.Critique)
			}
		}
		p.TotalScore = sum / float64(len(results[i]))
		if len(critiques) > 0 {
			if p.Meta == nil {
				p.Meta = reasoning.Meta{}
			}
			p.Meta[reasoning.MetaDebateCritiques] = critiques
		}
	}
	return nil
}
