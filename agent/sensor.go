package agent

import (
	"encoding/json"

	"tqa/reasoning"
	"tqa/utils"
)

const GoldAnswerKey = reasoning.GoldAnswerKey

const (
	maxString = 800
	maxList   = 20
	maxDict   = 30
)

// RecentStep is the short form of one step shown to the planner.
type RecentStep struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// Report is a compact description of a state for prompts.
type Report struct {
	Depth       int            `json:"depth"`
	Done        bool           `json:"done"`
	Headers     []string       `json:"headers"`
	Preview     string         `json:"view_preview"`
	MemoryKeys  []string       `json:"known_memory_keys"`
	RecentSteps []RecentStep   `json:"recent_steps"`
	Memory      map[string]any `json:"memory_compact"`
}

// ContextSensor summarizes states for the planner.
type ContextSensor struct {
	MaxRecentSteps int
	MaxMemoryKeys  int
	PreviewRows    int
}

func NewContextSensor() ContextSensor {
	return ContextSensor{MaxRecentSteps: 6, MaxMemoryKeys: 50, PreviewRows: 5}
}

func (c ContextSensor) Report(s *reasoning.State) Report {
	keys := s.Memory.VisibleKeys()
	keys = keys[:min(len(keys), c.MaxMemoryKeys)]

	steps := s.Path.Steps[max(0, len(s.Path.Steps)-c.MaxRecentSteps):]
	recent := make([]RecentStep, len(steps))
	for i, st := range steps {
		recent[i] = RecentStep{Type: st.Spec.Type(), Error: st.Error}
	}

	memory := make(map[string]any, len(keys))
	for _, k := range keys {
		memory[k] = compact(s.Memory[k], 2)
	}
	return Report{
		Depth:       s.Depth,
		Done:        s.Done,
		Headers:     s.View.Headers,
		Preview:     s.View.Markdown(c.PreviewRows),
		MemoryKeys:  keys,
		RecentSteps: recent,
		Memory:      memory,
	}
}

// compact makes v JSON friendly and bounded in size: long strings are cut,
// lists and objects truncated and nesting limited to depth levels.
func compact(v any, depth int) any {
	switch v.(type) {
	case nil, bool, float64, string, []any, map[string]any:
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return utils.Truncate(err.Error(), maxString)
		}
		var plain any
		if err := json.Unmarshal(b, &plain); err != nil {
			return utils.Truncate(string(b), maxString)
		}
		v = plain
	}
	return bound(v, depth)
}

func bound(v any, depth int) any {
	if depth <= 0 {
		return "<depth_limit>"
	}
	switch x := v.(type) {
	case string:
		return utils.Truncate(x, maxString)
	case []any:
		out := make([]any, 0, min(len(x), maxList))
		for _, e := range x[:min(len(x), maxList)] {
			out = append(out, bound(e, depth-1))
		}
		return out
	case map[string]any:
		out := make(map[string]any, min(len(x), maxDict))
		for _, k := range utils.SortedKeys(x)[:min(len(x), maxDict)] {
			out[k] = bound(x[k], depth-1)
		}
		return out
	default:
		return x
	}
}
