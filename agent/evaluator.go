package agent

import (
	"context"
	"maps"

	"github.com/rs/zerolog/log"

	"tqa/llm"
	"tqa/prompt"
	"tqa/reasoning"
	"tqa/searcher"
	"tqa/utils"
)

// Features are the progress signals of a non-terminal state, each in [0, 1].
type Features struct {
	HeaderInfo      float64 `json:"has_header_info"`
	LocatedColumns  float64 `json:"has_located_columns"`
	LocatedRows     float64 `json:"has_located_rows"`
	NumericVars     float64 `json:"numeric_vars"`
	StepsNorm       float64 `json:"steps_norm"`
	CandidateAnswer float64 `json:"has_candidate_answer"`
}

// Evaluator scores states. Terminal states get [-1, 1] from the gold answer
// or answer plausibility, other states get a [0, 1] progress value lowered by
// the penalty of a failed last step. The LLM may refine both.
type Evaluator struct {
	client  llm.Client
	prompts *prompt.Library
	useLLM  bool
	retries int
}

type EvaluatorOption func(e *Evaluator)

// WithLLMRefinement lets client refine heuristic scores.
func WithLLMRefinement(client llm.Client, prompts *prompt.Library) EvaluatorOption {
	return func(e *Evaluator) {
		if client != nil && prompts != nil {
			e.client, e.prompts, e.useLLM = client, prompts, true
		}
	}
}

func NewEvaluator(options ...EvaluatorOption) *Evaluator {
	e := &Evaluator{retries: 1}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *Evaluator) Evaluate(ctx context.Context, s *reasoning.State) (searcher.Evaluation, error) {
	terminal := isTerminal(s)

	var eval searcher.Evaluation
	if terminal {
		eval = searcher.Evaluation{
			Score:    utils.Clamp(terminalValue(s), -1, 1),
			Critique: "terminal evaluation (deterministic base)",
			Extra:    map[string]any{"terminal": true},
		}
	} else {
		f := progress(s)
		score := processValue(f)
		if last := s.Path.LastObservation(); last != nil && !last.OK() {
			score += last.Penalty()
		}
		eval = searcher.Evaluation{
			Score:    utils.Clamp(score, 0, 1),
			Critique: "process evaluation (deterministic base)",
			Extra:    map[string]any{"terminal": false, "features": f},
		}
	}

	if e.useLLM {
		if err := e.refine(ctx, s, terminal, &eval); err != nil {
			log.Debug().Err(err).Msg("LLM evaluation failed, keeping heuristic score")
		}
	}
	return eval, nil
}

func (e *Evaluator) refine(ctx context.Context, s *reasoning.State, terminal bool, eval *searcher.Evaluation) error {
	keys := s.Memory.VisibleKeys()
	system, user, err := e.prompts.Render(prompt.Evaluation, map[string]any{
		"Question":   s.Question,
		"Headers":    s.View.Headers,
		"Terminal":   terminal,
		"BaseScore":  eval.Score,
		"MemoryKeys": keys,
	})
	if err != nil {
		return err
	}
	out, err := llm.ChatObject(ctx, e.client, system, user, e.retries, llm.WithTemperature(0), llm.WithMaxTokens(500))
	if err != nil {
		return err
	}
	score, ok := out["score"].(float64)
	if !ok {
		return nil
	}

	if terminal {
		eval.Score = utils.Clamp(score, -1, 1)
	} else {
		eval.Score = utils.Clamp(score, 0, 1)
	}
	if critique, ok := out["critique"].(string); ok {
		eval.Critique = critique
	}
	if extra, ok := out["extra"].(map[string]any); ok {
		maps.Copy(eval.Extra, extra)
	}
	eval.Extra["llm_used"] = true
	return nil
}

func isTerminal(s *reasoning.State) bool {
	return s.Done || s.Path.Terminal || s.Memory["final_answer"] != nil
}

func terminalValue(s *reasoning.State) float64 {
	gold := s.Memory[GoldAnswerKey]
	if gold != nil && s.Answer != nil {
		if MatchesGold(s.Answer, gold) {
			return 1
		}
		return -1
	}
	if wantsNumber(s.Question) {
		if isNumeric(s.Answer) {
			return 0.6
		}
		return -0.2
	}
	return 0.2
}

func progress(s *reasoning.State) Features {
	has := func(key string) float64 {
		if s.Memory.Has(key) {
			return 1
		}
		return 0
	}
	numeric := 0
	for _, k := range s.Memory.VisibleKeys() {
		switch s.Memory[k].(type) {
		case float64, float32, int, int64:
			numeric++
		}
	}
	f := Features{
		HeaderInfo:     has("header_info"),
		LocatedColumns: has("located_columns"),
		LocatedRows:    has("located_rows"),
		NumericVars:    float64(min(numeric, 10)) / 10,
		StepsNorm:      float64(min(len(s.Path.Steps), 30)) / 30,
	}
	if s.Memory.Has("answer") || s.Memory.Has("final_answer") {
		f.CandidateAnswer = 1
	}
	return f
}

func processValue(f Features) float64 {
	return 0.20*f.HeaderInfo +
		0.25*f.LocatedColumns +
		0.20*f.LocatedRows +
		0.25*f.NumericVars +
		0.20*f.CandidateAnswer -
		0.15*f.StepsNorm
}
