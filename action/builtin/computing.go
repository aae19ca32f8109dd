package builtin

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/expr-lang/expr"

	"tqa/action"
	"tqa/reasoning"
)

var aggregations = []string{"sum", "avg", "min", "max", "count"}

// Computing stores a number in memory. In agg mode it folds a column over all
// rows or the rows listed under row_key; in expr mode it evaluates arithmetic
// over numeric memory variables. In auto mode the LLM picks one of the two
// and fills its fields; the math itself always runs locally.
type Computing struct {
	Mode          string `json:"mode" validate:"oneof=auto expr agg"`
	Agg           string `json:"agg" validate:"oneof=sum avg min max count"`
	Column        string `json:"column"`
	RowKey        string `json:"row_key"`
	Expr          string `json:"expr"`
	OutVar        string `json:"out_var" validate:"required"`
	MissingAsZero bool   `json:"missing_as_zero"`
	UseLLM        bool   `json:"use_llm"`

	deps *Deps
}

type computation struct {
	Mode          string `json:"mode"`
	Agg           string `json:"agg,omitempty"`
	Column        string `json:"column,omitempty"`
	RowKey        string `json:"row_key,omitempty"`
	Expr          string `json:"expr,omitempty"`
	OutVar        string `json:"out_var"`
	MissingAsZero bool   `json:"missing_as_zero"`
}

func (a *Computing) Type() string { return TypeComputing }

func (a *Computing) Validate() error {
	switch a.Mode {
	case "agg":
		if a.Column == "" {
			return action.Invalid("column required for agg mode")
		}
	case "expr":
		if a.Expr == "" {
			return action.Invalid("expr required for expr mode")
		}
		return checkExpr(a.Expr)
	}
	return nil
}

func (a *Computing) Apply(ctx context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	c := computation{
		Mode:          a.Mode,
		Agg:           a.Agg,
		Column:        a.Column,
		RowKey:        a.RowKey,
		Expr:          a.Expr,
		OutVar:        a.OutVar,
		MissingAsZero: a.MissingAsZero,
	}
	if a.Mode != "auto" {
		obs, err := c.run(s)
		if err != nil {
			return nil, nil, err
		}
		return s, obs, nil
	}

	if !a.deps.canAsk(a.UseLLM) {
		return nil, nil, action.Failed("auto mode needs an LLM to plan the computation")
	}
	raw, err := a.deps.askObject(ctx, "You are a TableQA computation planner. "+
		"Your job is to generate a computation plan that can be executed deterministically.", a.brief(s))
	if err != nil {
		return nil, nil, action.Failed("computation plan: %v", err)
	}
	if c, err = a.plan(s, raw); err != nil {
		return nil, nil, err
	}
	obs, err := c.run(s)
	if err != nil {
		return nil, nil, err
	}
	obs["llm_used"] = true
	obs["plan"] = c
	return s, obs, nil
}

func (a *Computing) brief(s *reasoning.State) map[string]any {
	ctx := map[string]any{
		"question":    s.Question,
		"headers":     s.View.Headers,
		"memory_keys": s.Memory.VisibleKeys(),
		"row_sample":  s.View.Rows[:min(3, s.View.NumRows())],
	}
	if cols, ok := s.Memory["located_columns"].([]ColumnMatch); ok {
		ctx["located_columns"] = cols
	}
	if rows, ok := rowIndices(s.Memory["located_rows"]); ok {
		ctx["located_rows_count"] = len(rows)
		ctx["located_rows_sample"] = rows[:min(10, len(rows))]
	}
	vars := map[string]float64{}
	for _, k := range s.Memory.VisibleKeys() {
		if n, ok := asNumber(s.Memory[k]); ok {
			vars[k] = n
		}
	}
	if len(vars) > 0 {
		ctx["numeric_vars"] = vars
	}

	return map[string]any{
		"context": ctx,
		"task": "Generate a computation plan to advance toward answering the question. " +
			"Choose mode='agg' when the result is an aggregation over a table column (optionally restricted to located rows). " +
			"Choose mode='expr' when the result should be computed from existing numeric variables in memory.",
		"output_schema": map[string]any{
			"mode":            "agg|expr",
			"out_var":         "<string>",
			"agg":             "sum|avg|min|max|count",
			"column":          "<header from headers>",
			"row_key":         "<optional memory key for row indices>",
			"expr":            "<arithmetic expression over memory vars>",
			"missing_as_zero": true,
		},
		"constraints": []string{
			"If mode='agg', column MUST be exactly one of headers.",
			"If mode='expr', expr can only use identifiers (memory variable names), numbers, + - * / ( ).",
			"Prefer using existing located_rows (row_key='located_rows') when question suggests filtering.",
			"Set out_var to a concise variable name like 'x0' or 'result'.",
		},
	}
}

// plan checks an LLM computation plan, filling gaps from the action's fields.
func (a *Computing) plan(s *reasoning.State, raw map[string]any) (computation, error) {
	c := computation{OutVar: a.OutVar, MissingAsZero: a.MissingAsZero}
	c.Mode, _ = raw["mode"].(string)
	if v, ok := raw["out_var"].(string); ok && strings.TrimSpace(v) != "" {
		c.OutVar = strings.TrimSpace(v)
	}
	if v, ok := raw["missing_as_zero"].(bool); ok {
		c.MissingAsZero = v
	}

	switch c.Mode {
	case "agg":
		c.Agg = stringOr(raw["agg"], a.Agg)
		if !slices.Contains(aggregations, c.Agg) {
			return c, action.Failed("planned agg %q is not one of %v", c.Agg, aggregations)
		}
		c.Column = stringOr(raw["column"], a.Column)
		if !slices.Contains(s.View.Headers, c.Column) {
			return c, action.Failed("planned column %q must be exactly one of %v", c.Column, s.View.Headers)
		}
		c.RowKey, _ = raw["row_key"].(string)
	case "expr":
		c.Expr = strings.TrimSpace(stringOr(raw["expr"], a.Expr))
		if c.Expr == "" {
			return c, action.Failed("planned expr missing")
		}
		if err := checkExpr(c.Expr); err != nil {
			return c, err
		}
	default:
		return c, action.Failed("planned mode must be agg or expr, got %q", c.Mode)
	}
	return c, nil
}

func (c computation) run(s *reasoning.State) (reasoning.Observation, error) {
	if c.Mode == "agg" {
		return c.aggregate(s)
	}
	return c.evaluate(s)
}

func (c computation) aggregate(s *reasoning.State) (reasoning.Observation, error) {
	view := s.View
	col, err := view.ResolveColumn(c.Column)
	if err != nil {
		return nil, action.Failed("agg column: %v", err)
	}
	rows := allRows(view)
	if c.RowKey != "" {
		if subset, ok := rowIndices(recall(s.Memory, c.RowKey)); ok {
			rows = subset
		}
	}

	var nums []float64
	for _, i := range inRange(rows, view.NumRows()) {
		n, ok := parseNumber(cellOf(view.Rows[i], col))
		if !ok && c.MissingAsZero {
			n, ok = 0, true
		}
		if ok {
			nums = append(nums, n)
		}
	}
	value := aggregate(c.Agg, nums)

	s.Memory[c.OutVar] = value
	return reasoning.Observation{
		"mode":      "agg",
		"agg":       c.Agg,
		"column":    c.Column,
		"row_key":   c.RowKey,
		"rows_used": len(rows),
		"out_var":   c.OutVar,
		"value":     value,
	}, nil
}

func (c computation) evaluate(s *reasoning.State) (reasoning.Observation, error) {
	env := map[string]any{}
	vars := identifiers(c.Expr)
	for _, id := range vars {
		n, ok := asNumber(recall(s.Memory, id))
		if !ok {
			if !c.MissingAsZero {
				return nil, action.Failed("variable %q not found or not numeric in memory", id)
			}
			n = 0
		}
		env[id] = n
	}

	program, err := expr.Compile(c.Expr, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return nil, action.Failed("cannot compile %q: %v", c.Expr, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, action.Failed("cannot evaluate %q: %v", c.Expr, err)
	}
	value, ok := out.(float64)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, action.Failed("expression %q did not produce a finite number", c.Expr)
	}

	s.Memory[c.OutVar] = value
	return reasoning.Observation{
		"mode":      "expr",
		"expr":      c.Expr,
		"out_var":   c.OutVar,
		"value":     value,
		"vars_used": vars,
	}, nil
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
