// Package agent holds the collaborators of a search: planning, execution,
// evaluation, and the selection of the final path.
package agent

import (
	"tqa/action"
	"tqa/llm"
	"tqa/meta"
	"tqa/prompt"
)

type Config struct {
	TopK         int     `mapstructure:"topk" validate:"gte=1"`
	Retries      int     `mapstructure:"retries" validate:"gte=0"`
	ErrorPenalty float64 `mapstructure:"error_penalty" validate:"lte=0"`
	EvalUseLLM   bool    `mapstructure:"eval_use_llm"`
	Judges       int     `mapstructure:"judges" validate:"gte=0"`
	UseVerifier  bool    `mapstructure:"use_verifier"`
}

func DefaultConfig() Config {
	return Config{
		TopK:         meta.PLANNER_TOPK,
		Retries:      meta.LLM_RETRIES,
		ErrorPenalty: meta.ERROR_PENALTY,
		UseVerifier:  true,
	}
}

// Agents bundles everything one question needs.
type Agents struct {
	Planner   *Planner
	Executor  *Executor
	Evaluator *Evaluator
	Selector  *DebateRunner
}

// New wires the agents around one client, which may be nil for the LLM-free
// policy. Judges are only created with a client.
func New(cfg Config, client llm.Client, registry *action.Registry, prompts *prompt.Library) *Agents {
	if prompts == nil {
		prompts = prompt.Default()
	}

	var evalOptions []EvaluatorOption
	if cfg.EvalUseLLM {
		evalOptions = append(evalOptions, WithLLMRefinement(client, prompts))
	}

	selector := &DebateRunner{Decider: NewDecider(client, prompts, cfg.UseVerifier)}
	if client != nil {
		for range cfg.Judges {
			selector.Judges = append(selector.Judges, NewPathJudge(client, prompts))
		}
	}

	return &Agents{
		Planner:   NewPlanner(client, prompts, registry, WithTopK(cfg.TopK), WithRetries(cfg.Retries)),
		Executor:  NewExecutor(registry, cfg.ErrorPenalty),
		Evaluator: NewEvaluator(evalOptions...),
		Selector:  selector,
	}
}
