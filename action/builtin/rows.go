package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"tqa/action"
	"tqa/reasoning"
	"tqa/table"
)

var constraintOps = map[string]bool{
	"==": true, "=": true, "!=": true, "contains": true, ">": true, ">=": true, "<": true, "<=": true,
}

// Constraint compares one column of a row with a value.
type Constraint struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  any    `json:"value"`
}

// RowLocating selects the rows matching constraints and/or a phrase. Without
// either the LLM may propose them.
type RowLocating struct {
	Constraints []Constraint `json:"constraints"`
	RowContains string       `json:"row_contains"`
	Combine     string       `json:"combine" validate:"oneof=and or"`
	UseLLM      bool         `json:"use_llm"`
	OutKey      string       `json:"out_key" validate:"required"`

	deps *Deps
}

func (a *RowLocating) Type() string { return TypeRowLocating }

func (a *RowLocating) Validate() error {
	for _, c := range a.Constraints {
		if !constraintOps[strings.ToLower(strings.TrimSpace(c.Op))] {
			return action.Invalid("unsupported constraint op %q", c.Op)
		}
	}
	return nil
}

func (a *RowLocating) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	constraints, contains, combine := a.Constraints, strings.TrimSpace(a.RowContains), a.Combine
	llmUsed := false
	if len(constraints) == 0 && contains == "" && a.deps.canAsk(a.UseLLM) {
		out, err := a.deps.askObject(ctx, "You are a table row locator.", map[string]any{
			"question": s.Question,
			"headers":  s.View.Headers,
			"task":     "Propose row selection condition(s) to locate relevant rows for answering the question.",
			"output_schema": map[string]any{
				"row_contains": "<optional phrase>",
				"combine":      "and|or",
				"constraints":  []map[string]string{{"column": "<header>", "op": "==|!=|contains|>|>=|<|<=", "value": "<string or number>"}},
			},
			"constraints_hint": "If question references a year/category/name, prefer constraints; else use row_contains.",
		})
		if err != nil {
			fallback(a.Type(), err)
		} else {
			constraints, contains, combine = readLocatePlan(out, combine)
			llmUsed = true
		}
	}
	if len(constraints) == 0 && contains == "" {
		return nil, nil, action.Failed("provide constraints or row_contains (LLM unavailable or failed)")
	}

	selected := []int{}
	phrase := table.Normalize(contains)
	for i, row := range s.View.Rows {
		ok := true
		if contains != "" {
			ok = strings.Contains(table.Normalize(strings.Join(row, " | ")), phrase)
		}
		if ok && len(constraints) > 0 {
			ok = matchAll(s.View, row, constraints, combine)
		}
		if ok {
			selected = append(selected, i)
		}
	}

	s.Memory[a.OutKey] = selected
	return s, reasoning.Observation{
		"out_key":           a.OutKey,
		"row_indices":       selected,
		"count":             len(selected),
		"llm_used":          llmUsed,
		"combine":           combine,
		"constraints_used":  constraints,
		"row_contains_used": contains,
	}, nil
}

func readLocatePlan(out map[string]any, combine string) ([]Constraint, string, string) {
	contains, _ := out["row_contains"].(string)
	if c, ok := out["combine"].(string); ok && (c == "and" || c == "or") {
		combine = c
	}
	var constraints []Constraint
	if list, ok := out["constraints"].([]any); ok {
		for _, it := range list {
			item, ok := it.(map[string]any)
			if !ok {
				continue
			}
			col, _ := item["column"].(string)
			op, _ := item["op"].(string)
			constraints = append(constraints, Constraint{Column: col, Op: op, Value: item["value"]})
		}
	}
	return constraints, strings.TrimSpace(contains), combine
}

// matchAll combines the constraint checks of row with "and" or "or".
func matchAll(view *table.View, row []string, constraints []Constraint, combine string) bool {
	or := combine == "or"
	for _, c := range constraints {
		if matchConstraint(view, row, c) == or {
			return or
		}
	}
	return !or
}

// matchConstraint evaluates c on row. Unknown columns, unknown ops and
// non-numeric operands of an ordering op never match.
func matchConstraint(view *table.View, row []string, c Constraint) bool {
	op := strings.ToLower(strings.TrimSpace(c.Op))
	if c.Column == "" || op == "" {
		return false
	}
	idx, err := view.ResolveColumn(c.Column)
	if err != nil {
		return false
	}
	cell := ""
	if idx < len(row) {
		cell = strings.TrimSpace(row[idx])
	}
	value := ""
	if c.Value != nil {
		value = strings.TrimSpace(fmt.Sprint(c.Value))
	}

	switch op {
	case "==", "=":
		return cell == value
	case "!=":
		return cell != value
	case "contains":
		return strings.Contains(table.Normalize(cell), table.Normalize(value))
	}
	x, ok := parseNumber(cell)
	if !ok {
		return false
	}
	y, ok := parseNumber(value)
	if !ok {
		return false
	}
	switch op {
	case ">":
		return x > y
	case ">=":
		return x >= y
	case "<":
		return x < y
	case "<=":
		return x <= y
	}
	return false
}

// RowSorting stores row indices ordered by one column. Non-numeric cells sort
// lowest in numeric mode.
type RowSorting struct {
	By      string `json:"by" validate:"required"`
	Order   string `json:"order" validate:"oneof=asc desc"`
	Numeric bool   `json:"numeric"`
	RowKey  string `json:"row_key"`
	OutKey  string `json:"out_key" validate:"required"`
}

func (a *RowSorting) Type() string    { return TypeRowSorting }
func (a *RowSorting) Validate() error { return nil }

func (a *RowSorting) Apply(_ context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	view := s.View
	idx, err := view.ResolveColumn(a.By)
	if err != nil {
		return nil, nil, action.Failed("sort column: %v", err)
	}

	indices := allRows(view)
	if a.RowKey != "" {
		if subset, ok := rowIndices(recall(s.Memory, a.RowKey)); ok && len(subset) > 0 {
			indices = inRange(subset, view.NumRows())
		}
	}

	cellAt := func(i int) string {
		if idx < len(view.Rows[i]) {
			return view.Rows[i][idx]
		}
		return ""
	}
	less := func(i, j int) bool { return cellAt(i) < cellAt(j) }
	if a.Numeric {
		key := func(i int) float64 {
			if n, ok := parseNumber(cellAt(i)); ok {
				return n
			}
			return -1e30
		}
		less = func(i, j int) bool { return key(i) < key(j) }
	}

	sorted := append([]int(nil), indices...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if a.Order == "desc" {
			return less(sorted[j], sorted[i])
		}
		return less(sorted[i], sorted[j])
	})

	s.Memory[a.OutKey] = sorted
	return s, reasoning.Observation{
		"by": a.By, "order": a.Order, "numeric": a.Numeric, "out_key": a.OutKey, "row_indices": sorted,
	}, nil
}

// RowConstructing appends an aggregate row built from the source rows.
type RowConstructing struct {
	NewRowName string `json:"new_row_name"`
	Agg        string `json:"agg" validate:"oneof=sum avg min max"`
	RowKey     string `json:"row_key"`
	Rows       []int  `json:"rows"`
	InsertAt   any    `json:"insert_at"`
	NameColumn string `json:"name_column"`
}

func (a *RowConstructing) Type() string    { return TypeRowConstructing }
func (a *RowConstructing) Validate() error { return nil }

func (a *RowConstructing) Apply(_ context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	view := s.View
	source := a.Rows
	if source == nil && a.RowKey != "" {
		source, _ = rowIndices(recall(s.Memory, a.RowKey))
	}
	if len(source) == 0 {
		return nil, nil, action.Failed("no source rows to construct from")
	}
	valid := inRange(source, view.NumRows())

	row := make([]string, view.NumCols())
	for c := range row {
		var nums []float64
		for _, r := range valid {
			if c < len(view.Rows[r]) {
				if n, ok := parseNumber(view.Rows[r][c]); ok {
					nums = append(nums, n)
				}
			}
		}
		if len(nums) > 0 {
			row[c] = formatNumber(aggregate(a.Agg, nums))
		}
	}

	name := 0
	if a.NameColumn != "" {
		if idx, err := view.ResolveColumn(a.NameColumn); err == nil {
			name = idx
		}
	}
	if name < len(row) {
		row[name] = a.NewRowName
	}

	at := insertPosition(a.InsertAt, view.NumRows())
	s.View = view.InsertRow(at, row)
	return s, reasoning.Observation{
		"new_row_name": a.NewRowName, "agg": a.Agg, "insert_at": at, "source_rows": source,
	}, nil
}

func allRows(view *table.View) []int {
	out := make([]int, view.NumRows())
	for i := range out {
		out[i] = i
	}
	return out
}

// inRange drops indices outside [0, n).
func inRange(rows []int, n int) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if r >= 0 && r < n {
			out = append(out, r)
		}
	}
	return out
}
