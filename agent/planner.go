package agent

import (
	"context"
	"fmt"

	"tqa/action"
	"tqa/action/builtin"
	"tqa/llm"
	"tqa/meta"
	"tqa/prompt"
	"tqa/reasoning"
)

// Planner asks the LLM for the next action specs of a state. Without a client
// it follows a fixed policy: parse headers, then finish with "result" once it
// exists, else give up.
type Planner struct {
	client   llm.Client
	prompts  *prompt.Library
	registry *action.Registry
	sensor   ContextSensor
	topK     int
	retries  int
}

type PlannerOption func(p *Planner)

func WithTopK(k int) PlannerOption {
	return func(p *Planner) {
		if k > 0 {
			p.topK = k
		}
	}
}

func WithRetries(n int) PlannerOption {
	return func(p *Planner) {
		if n >= 0 {
			p.retries = n
		}
	}
}

func WithSensor(sensor ContextSensor) PlannerOption {
	return func(p *Planner) {
		p.sensor = sensor
	}
}

func NewPlanner(client llm.Client, prompts *prompt.Library, registry *action.Registry, options ...PlannerOption) *Planner {
	if registry == nil {
		panic("Planner requires an action registry")
	}
	if prompts == nil {
		prompts = prompt.Default()
	}
	p := &Planner{
		client:   client,
		prompts:  prompts,
		registry: registry,
		sensor:   NewContextSensor(),
		topK:     meta.PLANNER_TOPK,
		retries:  meta.LLM_RETRIES,
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *Planner) Propose(ctx context.Context, s *reasoning.State) ([]reasoning.ActionSpec, error) {
	if p.client == nil {
		return policy(s), nil
	}

	system, user, err := p.prompts.Render(prompt.Planning, map[string]any{
		"Question": s.Question,
		"Headers":  s.View.Headers,
		"Report":   p.sensor.Report(s),
		"Actions":  p.registry.Types(),
		"TopK":     p.topK,
	})
	if err != nil {
		return nil, err
	}
	out, err := llm.ChatObject(ctx, p.client, system, user, p.retries, llm.WithTemperature(0.2), llm.WithMaxTokens(900))
	if err != nil {
		return nil, err
	}
	list, ok := out["action_specs"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: planner must output {\"action_specs\": [...]}", llm.ErrParse)
	}

	var specs []reasoning.ActionSpec
	for _, item := range list {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		// Unregistered types are kept; execution reports them as failures.
		spec := reasoning.ActionSpec(fields)
		if spec.Type() != "" {
			specs = append(specs, spec)
		}
	}
	if len(specs) == 0 {
		if !s.Memory.Has("header_info") {
			return []reasoning.ActionSpec{{"type": builtin.TypeHeaderParsing}}, nil
		}
		return []reasoning.ActionSpec{{"type": builtin.TypeComputing, "mode": "auto", "out_var": "result"}}, nil
	}
	return specs[:min(len(specs), p.topK)], nil
}

// policy is the LLM-free plan. An empty result ends the path.
func policy(s *reasoning.State) []reasoning.ActionSpec {
	switch {
	case s.Memory.Has("result"):
		return []reasoning.ActionSpec{{"type": builtin.TypeFinish, "answer_from": "result"}}
	case !s.Memory.Has("header_info"):
		return []reasoning.ActionSpec{{"type": builtin.TypeHeaderParsing, "use_llm": false}}
	default:
		return nil
	}
}
