package builtin

import (
	"context"

	"tqa/action"
	"tqa/reasoning"
	"tqa/table"
)

// Groups is what Grouping stores in memory. Groups are keyed by the
// normalized cell. An aggregate is nil when its group has no numeric cell.
type Groups struct {
	GroupBy    string              `json:"group_by"`
	AggCol     string              `json:"agg_col,omitempty"`
	Agg        string              `json:"agg"`
	Groups     map[string][]int    `json:"groups"`
	Aggregates map[string]*float64 `json:"aggregates"`
}

// Grouping groups rows by one column and optionally aggregates another.
type Grouping struct {
	GroupBy string `json:"group_by" validate:"required"`
	AggCol  string `json:"agg_col"`
	Agg     string `json:"agg" validate:"oneof=sum avg count"`
	RowKey  string `json:"row_key"`
	OutKey  string `json:"out_key" validate:"required"`
}

func (a *Grouping) Type() string    { return TypeGrouping }
func (a *Grouping) Validate() error { return nil }

func (a *Grouping) Apply(_ context.Context, s *reasoning.State) (*reasoning.State, reasoning.Observation, error) {
	view := s.View
	g, err := view.ResolveColumn(a.GroupBy)
	if err != nil {
		return nil, nil, action.Failed("group_by: %v", err)
	}
	agg := -1
	if a.AggCol != "" {
		if agg, err = view.ResolveColumn(a.AggCol); err != nil {
			return nil, nil, action.Failed("agg_col: %v", err)
		}
	}

	rows := allRows(view)
	if a.RowKey != "" {
		if subset, ok := rowIndices(recall(s.Memory, a.RowKey)); ok {
			rows = inRange(subset, view.NumRows())
		}
	}

	out := Groups{
		GroupBy:    a.GroupBy,
		AggCol:     a.AggCol,
		Agg:        a.Agg,
		Groups:     map[string][]int{},
		Aggregates: map[string]*float64{},
	}
	for _, i := range rows {
		key := table.Normalize(cellOf(view.Rows[i], g))
		out.Groups[key] = append(out.Groups[key], i)
	}

	if agg >= 0 {
		for key, members := range out.Groups {
			if a.Agg == "count" {
				n := float64(len(members))
				out.Aggregates[key] = &n
				continue
			}
			var nums []float64
			for _, i := range members {
				if n, ok := parseNumber(cellOf(view.Rows[i], agg)); ok {
					nums = append(nums, n)
				}
			}
			if len(nums) > 0 {
				v := aggregate(a.Agg, nums)
				out.Aggregates[key] = &v
			} else {
				out.Aggregates[key] = nil
			}
		}
	}

	s.Memory[a.OutKey] = out
	return s, reasoning.Observation{
		"out_key":        a.OutKey,
		"num_groups":     len(out.Groups),
		"has_aggregates": len(out.Aggregates) > 0,
	}, nil
}

func cellOf(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}
