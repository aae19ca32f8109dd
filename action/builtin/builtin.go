// Package builtin holds the table reasoning actions the planner can propose.
package builtin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"tqa/action"
	"tqa/knowledge"
	"tqa/llm"
	"tqa/reasoning"
)

// Action type tags.
const (
	TypeFinish                  = "Finish"
	TypeHeaderParsing           = "HeaderParsing"
	TypeColumnLocating          = "ColumnLocating"
	TypeRowLocating             = "RowLocating"
	TypeRowSorting              = "RowSorting"
	TypeGrouping                = "Grouping"
	TypeComputing               = "Computing"
	TypeColumnConstructing      = "ColumnConstructing"
	TypeRowConstructing         = "RowConstructing"
	TypeParallelDecomposing     = "ParallelDecomposing"
	TypeSerialDecomposing       = "SerialDecomposing"
	TypeGeneralRetrieval        = "GeneralRetrieval"
	TypeDomainSpecificRetrieval = "DomainSpecificRetrieval"
)

// Deps are the collaborators shared by every action built from one registry.
// Any of them may be nil: LLM-assisted steps then fall back to their
// deterministic behavior and retrieval returns an empty stub result.
type Deps struct {
	LLM     llm.Client
	General knowledge.Provider
	Domain  knowledge.Provider
	Retries int
}

// Register adds every builtin action to reg.
func Register(reg *action.Registry, deps Deps) {
	d := &deps
	reg.Register(TypeFinish, func() action.Action { return &Finish{} })
	reg.Register(TypeHeaderParsing, func() action.Action {
		return &HeaderParsing{SplitCompound: true, UseLLM: true, OutKey: "header_info", deps: d}
	})
	reg.Register(TypeColumnLocating, func() action.Action {
		return &ColumnLocating{Mode: "soft", UseLLM: true, OutKey: "located_columns", deps: d}
	})
	reg.Register(TypeRowLocating, func() action.Action {
		return &RowLocating{Combine: "and", UseLLM: true, OutKey: "located_rows", deps: d}
	})
	reg.Register(TypeRowSorting, func() action.Action {
		return &RowSorting{Order: "desc", Numeric: true, OutKey: "sorted_rows"}
	})
	reg.Register(TypeGrouping, func() action.Action {
		return &Grouping{Agg: "sum", OutKey: "groups"}
	})
	reg.Register(TypeComputing, func() action.Action {
		return &Computing{Mode: "auto", Agg: "sum", OutVar: "result", UseLLM: true, deps: d}
	})
	reg.Register(TypeColumnConstructing, func() action.Action {
		return &ColumnConstructing{NewColumn: "derived", UseLLM: true, deps: d}
	})
	reg.Register(TypeRowConstructing, func() action.Action {
		return &RowConstructing{NewRowName: "DerivedRow", Agg: "sum", RowKey: "located_rows"}
	})
	reg.Register(TypeParallelDecomposing, func() action.Action {
		return &ParallelDecomposing{UseLLM: true, OutKey: "sub_questions_parallel", deps: d}
	})
	reg.Register(TypeSerialDecomposing, func() action.Action {
		return &SerialDecomposing{UseLLM: true, OutKey: "sub_questions_serial", deps: d}
	})
	reg.Register(TypeGeneralRetrieval, func() action.Action {
		return &GeneralRetrieval{TopK: 3, UseLLM: true, OutKey: "general_knowledge", deps: d}
	})
	reg.Register(TypeDomainSpecificRetrieval, func() action.Action {
		return &DomainSpecificRetrieval{TopK: 3, UseLLM: true, OutKey: "domain_knowledge", deps: d}
	})
}

// NewRegistry returns a registry holding every builtin action.
func NewRegistry(deps Deps) *action.Registry {
	reg := action.NewRegistry()
	Register(reg, deps)
	return reg
}

// recall reads a memory value an action may use. The gold answer reads as
// missing.
func recall(m reasoning.Memory, key string) any {
	if key == reasoning.GoldAnswerKey {
		return nil
	}
	return m[key]
}

func (d *Deps) canAsk(use bool) bool {
	return use && d != nil && d.LLM != nil
}

// ask sends payload as JSON and returns the parsed JSON reply.
func (d *Deps) ask(ctx context.Context, system string, payload any) (any, error) {
	user, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return llm.ChatJSON(ctx, d.LLM, system+" Return STRICT JSON only, no extra text.", string(user), d.Retries,
		llm.WithTemperature(0.2))
}

// askObject is ask for replies that must be a JSON object.
func (d *Deps) askObject(ctx context.Context, system string, payload any) (map[string]any, error) {
	out, err := d.ask(ctx, system, payload)
	if err != nil {
		return nil, err
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return nil, action.Failed("expected a JSON object from the LLM, got %T", out)
	}
	return obj, nil
}

// fallback logs an LLM assist that failed and will be ignored.
func fallback(tag string, err error) {
	log.Debug().Err(err).Str("action", tag).Msg("LLM assist failed, using deterministic behavior")
}

func errMissingKeys(keys ...string) error {
	return action.Failed("LLM reply must carry %s", strings.Join(keys, ", "))
}
