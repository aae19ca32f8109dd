package builtin

import (
	"context"
	"strings"

	"tqa/action"
	"tqa/knowledge"
	"tqa/reasoning"
)

// GeneralRetrieval looks up general background knowledge, for instance to
// expand an abbreviation. The LLM may write the query.
type GeneralRetrieval struct {
	Query  string `json:"query"`
	TopK   int    `json:"topk" validate:"gt=0"`
	UseLLM bool   `json:"use_llm"`
	OutKey string `json:"out_key" validate:"required"`

	deps *Deps
}

func (a *GeneralRetrieval) Type() string    { return TypeGeneralRetrieval }
func (a *GeneralRetrieval) Validate() error { return nil }

func (a *GeneralRetrieval) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	query, llmUsed := a.deps.lookupTerm(ctx, a.Type(), strings.TrimSpace(a.Query), a.UseLLM, s,
		"You generate a concise search query.", "query",
		"Generate a short general-knowledge query to clarify ambiguous terms/abbreviations if needed.")
	if query == "" {
		return nil, nil, action.Failed("query missing (LLM unavailable or failed)")
	}

	var provider knowledge.Provider
	if a.deps != nil {
		provider = a.deps.General
	}
	result, err := retrieve(ctx, provider, query, a.TopK, "No general knowledge provider configured; stub result returned.")
	if err != nil {
		return nil, nil, err
	}

	s.Memory[a.OutKey] = result
	return s, reasoning.Observation{"out_key": a.OutKey, "query": query, "num_items": len(result.Items), "llm_used": llmUsed}, nil
}

// DomainSpecificRetrieval looks up a specialized term, such as a financial
// metric, in the domain knowledge base. The LLM may pick the term.
type DomainSpecificRetrieval struct {
	Term   string `json:"term"`
	TopK   int    `json:"topk" validate:"gt=0"`
	UseLLM bool   `json:"use_llm"`
	OutKey string `json:"out_key" validate:"required"`

	deps *Deps
}

func (a *DomainSpecificRetrieval) Type() string    { return TypeDomainSpecificRetrieval }
func (a *DomainSpecificRetrieval) Validate() error { return nil }

func (a *DomainSpecificRetrieval) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	term, llmUsed := a.deps.lookupTerm(ctx, a.Type(), strings.TrimSpace(a.Term), a.UseLLM, s,
		"You generate a domain glossary lookup term.", "term",
		"Generate a domain-specific term for lookup (e.g., finance) if the question contains specialized jargon.")
	if term == "" {
		return nil, nil, action.Failed("term missing (LLM unavailable or failed)")
	}

	var provider knowledge.Provider
	if a.deps != nil {
		provider = a.deps.Domain
	}
	result, err := retrieve(ctx, provider, term, a.TopK, "No domain knowledge provider configured; stub result returned.")
	if err != nil {
		return nil, nil, err
	}

	s.Memory[a.OutKey] = result
	return s, reasoning.Observation{"out_key": a.OutKey, "term": term, "num_items": len(result.Items), "llm_used": llmUsed}, nil
}

// lookupTerm returns given, or asks the LLM for a value under key when given
// is empty.
func (d *Deps) lookupTerm(ctx context.Context, tag, given string, use bool, s *reasoning.State, system, key, task string) (string, bool) {
	if given != "" || !d.canAsk(use) {
		return given, false
	}
	out, err := d.askObject(ctx, system, map[string]any{
		"question":      s.Question,
		"headers":       s.View.Headers,
		"task":          task,
		"output_schema": map[string]string{key: "<string>"},
	})
	if err != nil {
		fallback(tag, err)
		return "", false
	}
	v, _ := out[key].(string)
	return strings.TrimSpace(v), true
}

func retrieve(ctx context.Context, provider knowledge.Provider, query string, topk int, stub string) (knowledge.Result, error) {
	if provider == nil {
		return knowledge.Result{Query: query, Items: []knowledge.Item{}, Note: stub}, nil
	}
	result, err := provider.Search(ctx, query, topk)
	if err != nil {
		return knowledge.Result{}, action.Failed("knowledge lookup %q: %v", query, err)
	}
	if result.Items == nil {
		result.Items = []knowledge.Item{}
	}
	return result, nil
}
