package builtin

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"tqa/reasoning"
	"tqa/table"
)

var compoundSep = regexp.MustCompile(`[/\n\-]+`)

// HeaderGroup is a named set of related headers.
type HeaderGroup struct {
	Group   string   `json:"group"`
	Members []string `json:"members"`
}

// HeaderInfo is what HeaderParsing stores in memory.
type HeaderInfo struct {
	Headers           []string            `json:"headers"`
	NormalizedHeaders []string            `json:"normalized_headers"`
	CompoundSplits    map[string][]string `json:"compound_splits"`
	AliasMap          map[string]string   `json:"alias_map"`
	HeaderGroups      []HeaderGroup       `json:"header_groups"`
	LLMUsed           bool                `json:"llm_used"`
}

// HeaderParsing normalizes headers, splits compound ones and builds an alias
// map. Without explicit aliases the LLM may propose aliases and groups.
type HeaderParsing struct {
	Aliases       map[string]string `json:"aliases"`
	SplitCompound bool              `json:"split_compound"`
	UseLLM        bool              `json:"use_llm"`
	OutKey        string            `json:"out_key" validate:"required"`

	deps *Deps
}

func (a *HeaderParsing) Type() string    { return TypeHeaderParsing }
func (a *HeaderParsing) Validate() error { return nil }

func (a *HeaderParsing) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	headers := slices.Clone(s.View.Headers)
	info := HeaderInfo{
		Headers:           headers,
		NormalizedHeaders: make([]string, len(headers)),
		CompoundSplits:    map[string][]string{},
		AliasMap:          map[string]string{},
		HeaderGroups:      []HeaderGroup{},
	}
	for i, h := range headers {
		info.NormalizedHeaders[i] = table.Normalize(h)
		if !a.SplitCompound {
			continue
		}
		var parts []string
		for _, p := range compoundSep.Split(h, -1) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) >= 2 {
			info.CompoundSplits[h] = parts
		}
	}
	for k, v := range a.Aliases {
		info.AliasMap[table.Normalize(k)] = v
	}

	if a.Aliases == nil && a.deps.canAsk(a.UseLLM) {
		if err := a.enrich(ctx, s, &info); err != nil {
			fallback(a.Type(), err)
		}
	}

	s.Memory[a.OutKey] = info
	return s, reasoning.Observation{
		"out_key":        a.OutKey,
		"num_headers":    len(headers),
		"alias_count":    len(info.AliasMap),
		"compound_count": len(info.CompoundSplits),
		"group_count":    len(info.HeaderGroups),
		"llm_used":       info.LLMUsed,
	}, nil
}

func (a *HeaderParsing) enrich(ctx context.Context, s *reasoning.State, info *HeaderInfo) error {
	out, err := a.deps.askObject(ctx, "You are a table understanding component.", map[string]any{
		"question": s.Question,
		"headers":  info.Headers,
		"task": "Propose (1) alias_map for abbreviations/synonyms and " +
			"(2) optional header_groups capturing multi-level/semantic grouping if any.",
		"output_schema": map[string]any{
			"alias_map":     map[string]string{"<alias>": "<canonical_header>"},
			"header_groups": []map[string]any{{"group": "<name>", "members": []string{"<header1>", "<header2>"}}},
		},
		"constraints": []string{
			"alias_map keys should be short forms or synonyms; values must be from headers if possible.",
			"header_groups members must be from headers.",
		},
	})
	if err != nil {
		return err
	}
	aliases, ok := out["alias_map"].(map[string]any)
	groups, ok2 := out["header_groups"].([]any)
	if !ok || !ok2 {
		return errMissingKeys("alias_map", "header_groups")
	}

	for k, v := range aliases {
		if canonical, ok := v.(string); ok && canonical != "" {
			info.AliasMap[table.Normalize(k)] = canonical
		}
	}
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		members := []string{}
		if list, ok := group["members"].([]any); ok {
			for _, m := range list {
				if name, ok := m.(string); ok && slices.Contains(info.Headers, name) {
					members = append(members, name)
				}
			}
		}
		name, _ := group["group"].(string)
		info.HeaderGroups = append(info.HeaderGroups, HeaderGroup{Group: name, Members: members})
	}
	info.LLMUsed = true
	return nil
}
