package builtin

import (
	"context"
	"fmt"
	"strings"

	"tqa/reasoning"
)

// ParallelDecomposing stores independent sub-questions, given or proposed by
// the LLM. An empty list is stored when neither is available.
type ParallelDecomposing struct {
	SubQuestions []string `json:"sub_questions"`
	UseLLM       bool     `json:"use_llm"`
	OutKey       string   `json:"out_key" validate:"required"`

	deps *Deps
}

func (a *ParallelDecomposing) Type() string    { return TypeParallelDecomposing }
func (a *ParallelDecomposing) Validate() error { return nil }

func (a *ParallelDecomposing) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	var subs []string
	given, llmUsed := a.SubQuestions != nil, false
	if given {
		subs = trimAll(a.SubQuestions)
	} else if a.deps.canAsk(a.UseLLM) {
		out, err := a.deps.askObject(ctx, "You decompose questions.", map[string]any{
			"question":      s.Question,
			"task":          "Decompose into independent sub-questions that can be answered separately and then combined.",
			"output_schema": map[string]any{"sub_questions": []string{"<q1>", "<q2>"}},
			"constraints":   []string{"Sub-questions should be independent (parallel).", "Return 1-5 items."},
		})
		if list, ok := out["sub_questions"].([]any); err == nil && ok {
			subs, llmUsed = trimAll(list), true
		} else if err != nil {
			fallback(a.Type(), err)
		}
	}

	note := "Sub-questions stored."
	if subs == nil {
		subs, note = []string{}, "No sub_questions; stored empty list."
	}
	s.Memory[a.OutKey] = subs
	return s, reasoning.Observation{"out_key": a.OutKey, "count": len(subs), "llm_used": llmUsed, "note": note}, nil
}

// ChainStep is one sub-question of a serial plan. DependsOn holds 0-based
// indices of earlier steps; Var names the step's result.
type ChainStep struct {
	Q         string `json:"q"`
	DependsOn []int  `json:"depends_on"`
	Var       string `json:"var"`
}

// SerialDecomposing stores a chain of dependent sub-questions, given or
// proposed by the LLM.
type SerialDecomposing struct {
	Chain  []ChainStep `json:"chain"`
	UseLLM bool        `json:"use_llm"`
	OutKey string      `json:"out_key" validate:"required"`

	deps *Deps
}

func (a *SerialDecomposing) Type() string    { return TypeSerialDecomposing }
func (a *SerialDecomposing) Validate() error { return nil }

func (a *SerialDecomposing) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	plan := []ChainStep{}
	llmUsed := false
	if a.Chain != nil {
		plan = normalizeChain(a.Chain)
	} else if a.deps.canAsk(a.UseLLM) {
		out, err := a.deps.askObject(ctx, "You decompose questions into dependent steps.", map[string]any{
			"question":      s.Question,
			"task":          "Decompose into dependent (serial) sub-questions with explicit dependencies.",
			"output_schema": map[string]any{"chain": []map[string]any{{"q": "<subq>", "depends_on": []int{0}, "var": "x0"}}},
			"constraints":   []string{"Use 0-based indices in depends_on.", "Return 1-6 steps."},
		})
		if list, ok := out["chain"].([]any); err == nil && ok {
			plan, llmUsed = normalizeChain(readChain(list)), true
		} else if err != nil {
			fallback(a.Type(), err)
		}
	}

	s.Memory[a.OutKey] = plan
	return s, reasoning.Observation{"out_key": a.OutKey, "count": len(plan), "llm_used": llmUsed}, nil
}

func readChain(list []any) []ChainStep {
	var chain []ChainStep
	for _, it := range list {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		q, _ := item["q"].(string)
		step := ChainStep{Q: q}
		step.Var, _ = item["var"].(string)
		step.DependsOn, _ = rowIndices(item["depends_on"])
		chain = append(chain, step)
	}
	return chain
}

// normalizeChain drops steps without a question and names unnamed results
// x{i} after their position in the input.
func normalizeChain(chain []ChainStep) []ChainStep {
	out := []ChainStep{}
	for i, step := range chain {
		step.Q = strings.TrimSpace(step.Q)
		if step.Q == "" {
			continue
		}
		if step.DependsOn == nil {
			step.DependsOn = []int{}
		}
		if step.Var == "" {
			step.Var = fmt.Sprintf("x%d", i)
		}
		out = append(out, step)
	}
	return out
}

func trimAll[T any](list []T) []string {
	out := []string{}
	for _, v := range list {
		if q, ok := any(v).(string); ok {
			if q = strings.TrimSpace(q); q != "" {
				out = append(out, q)
			}
		}
	}
	return out
}
