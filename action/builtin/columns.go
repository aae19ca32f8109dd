package builtin

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"tqa/action"
	"tqa/reasoning"
	"tqa/table"
)

// ColumnMatch links a target concept to a header. Index is -1 when nothing
// matched.
type ColumnMatch struct {
	Target  string `json:"target"`
	Matched string `json:"matched,omitempty"`
	Index   int    `json:"col_index"`
}

// ColumnLocating maps target concepts to headers. Without targets the LLM
// picks the needed headers.
type ColumnLocating struct {
	Targets []string `json:"targets"`
	Mode    string   `json:"mode" validate:"oneof=exact soft"`
	UseLLM  bool     `json:"use_llm"`
	OutKey  string   `json:"out_key" validate:"required"`

	deps *Deps
}

func (a *ColumnLocating) Type() string    { return TypeColumnLocating }
func (a *ColumnLocating) Validate() error { return nil }

func (a *ColumnLocating) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	headers := s.View.Headers
	var aliases map[string]string
	if info, ok := s.Memory["header_info"].(HeaderInfo); ok {
		aliases = info.AliasMap
	}

	var matches []ColumnMatch
	llmUsed := false
	if len(a.Targets) == 0 && a.deps.canAsk(a.UseLLM) {
		var err error
		if matches, err = a.ask(ctx, s, aliases); err != nil {
			fallback(a.Type(), err)
		} else {
			llmUsed = true
		}
	}

	if len(matches) == 0 {
		if len(a.Targets) == 0 {
			return nil, nil, action.Failed("targets missing and LLM locate failed or unavailable")
		}
		matches = make([]ColumnMatch, len(a.Targets))
		for i, t := range a.Targets {
			matches[i] = a.match(headers, t, aliases)
		}
	}

	s.Memory[a.OutKey] = matches
	return s, reasoning.Observation{"out_key": a.OutKey, "matches": matches, "llm_used": llmUsed}, nil
}

func (a *ColumnLocating) match(headers []string, target string, aliases map[string]string) ColumnMatch {
	key := table.Normalize(target)
	if canonical, ok := aliases[key]; ok {
		key = table.Normalize(canonical)
	}

	best, bestScore := -1, 0
	for i, h := range headers {
		score := headerScore(key, table.Normalize(h))
		if a.Mode == "exact" && score < 100 {
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return ColumnMatch{Target: target, Index: -1}
	}
	return ColumnMatch{Target: target, Matched: headers[best], Index: best}
}

// headerScore rates a normalized target against a normalized header: 100 for
// equality, 60 for containment, 10 per shared word.
func headerScore(target, header string) int {
	switch {
	case target == header:
		return 100
	case strings.Contains(header, target) || strings.Contains(target, header):
		return 60
	}
	words := map[string]bool{}
	for _, w := range strings.Fields(target) {
		words[w] = true
	}
	shared := 0
	for _, w := range strings.Fields(header) {
		if words[w] {
			shared++
			delete(words, w)
		}
	}
	return 10 * shared
}

func (a *ColumnLocating) ask(ctx context.Context, s *reasoning.State, aliases map[string]string) ([]ColumnMatch, error) {
	headers := s.View.Headers
	out, err := a.deps.ask(ctx, "You are a table column locator.", map[string]any{
		"question":      s.Question,
		"headers":       headers,
		"alias_map":     aliases,
		"task":          "Identify which column headers are needed to answer the question.",
		"output_schema": []map[string]string{{"target": "<concept from question>", "matched_header": "<one header from headers>"}},
		"constraints":   []string{"matched_header MUST be exactly one of headers.", "Return 1-5 items depending on need."},
	})
	if err != nil {
		return nil, err
	}
	items, ok := out.([]any)
	if !ok {
		return nil, action.Failed("LLM must output a JSON list, got %T", out)
	}

	var matches []ColumnMatch
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		header, _ := item["matched_header"].(string)
		if idx := slices.Index(headers, header); idx >= 0 {
			matches = append(matches, ColumnMatch{Target: fmt.Sprint(item["target"]), Matched: header, Index: idx})
		}
	}
	return matches, nil
}

// ColumnConstructing derives a new column from an arithmetic expression over
// existing columns. Headers are referenced with spaces replaced by
// underscores. Rows with a missing operand get an empty cell.
type ColumnConstructing struct {
	NewColumn     string `json:"new_column" validate:"required"`
	Expr          string `json:"expr"`
	InsertAt      any    `json:"insert_at"`
	MissingAsZero bool   `json:"missing_as_zero"`
	UseLLM        bool   `json:"use_llm"`

	deps *Deps
}

func (a *ColumnConstructing) Type() string { return TypeColumnConstructing }

func (a *ColumnConstructing) Validate() error {
	if a.Expr == "" {
		return nil
	}
	return checkExpr(a.Expr)
}

func (a *ColumnConstructing) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	view := s.View
	src := strings.TrimSpace(a.Expr)
	llmUsed := false
	if src == "" && a.deps.canAsk(a.UseLLM) {
		out, err := a.deps.askObject(ctx, "You are a table reasoning helper.", map[string]any{
			"question":      s.Question,
			"headers":       view.Headers,
			"task":          "Propose an arithmetic expression to compute a derived column needed for answering the question.",
			"output_schema": map[string]string{"expr": "<expression using header names as identifiers>"},
			"constraints": []string{
				"Use only + - * / ( ) and identifiers.",
				"If a header has spaces, replace spaces with underscore in identifier (e.g., Planned Unit Cost -> Planned_Unit_Cost).",
			},
		})
		if e, ok := out["expr"].(string); err == nil && ok {
			src, llmUsed = strings.TrimSpace(e), true
		} else if err != nil {
			fallback(a.Type(), err)
		}
	}
	if src == "" {
		return nil, nil, action.Failed("expr missing and LLM unavailable or failed")
	}
	if err := checkExpr(src); err != nil {
		return nil, nil, err
	}

	columns, err := exprColumns(view, src)
	if err != nil {
		return nil, nil, err
	}
	env := make(map[string]any, len(columns))
	for id := range columns {
		env[id] = 0.0
	}
	program, err := expr.Compile(src, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return nil, nil, action.Failed("cannot compile %q: %v", src, err)
	}

	values := make([]string, view.NumRows())
	for i, row := range view.Rows {
		values[i] = a.evalRow(program, row, columns)
	}

	at := insertPosition(a.InsertAt, view.NumCols())
	s.View = view.InsertColumn(at, a.NewColumn, values)
	return s, reasoning.Observation{"new_column": a.NewColumn, "expr": src, "insert_at": at, "llm_used": llmUsed}, nil
}

func (a *ColumnConstructing) evalRow(program *vm.Program, row []string, columns map[string]int) string {
	env := make(map[string]any, len(columns))
	for id, idx := range columns {
		cell := ""
		if idx < len(row) {
			cell = row[idx]
		}
		n, ok := parseNumber(cell)
		if !ok && !a.MissingAsZero {
			return ""
		}
		env[id] = n
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return ""
	}
	f, ok := out.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return formatNumber(f)
}

// exprColumns resolves every identifier of src to a column index.
func exprColumns(view *table.View, src string) (map[string]int, error) {
	byID := make(map[string]int, len(view.Headers))
	for i, h := range view.Headers {
		byID[strings.Join(strings.Fields(h), "_")] = i
	}
	columns := map[string]int{}
	for _, id := range identifiers(src) {
		if idx, ok := byID[id]; ok {
			columns[id] = idx
			continue
		}
		idx, err := view.ResolveColumn(strings.ReplaceAll(id, "_", " "))
		if err != nil {
			return nil, action.Failed("expression identifier %q: %v", id, err)
		}
		columns[id] = idx
	}
	return columns, nil
}

// insertPosition reads an insert_at value: nil or "end", or an index clamped
// to [0, n]. Indices may arrive as numeric strings.
func insertPosition(at any, n int) int {
	if s, ok := at.(string); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return min(max(i, 0), n)
		}
		return n
	}
	if pos, ok := asNumber(at); ok {
		return min(max(int(pos), 0), n)
	}
	return n
}
