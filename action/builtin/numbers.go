package builtin

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"tqa/action"
)

var naTokens = map[string]bool{"na": true, "n/a": true, "null": true, "none": true, "-": true}

// parseNumber reads a table cell as a number. Thousands separators and a
// leading currency sign are ignored and a trailing % divides by 100.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || naTokens[strings.ToLower(s)] {
		return 0, false
	}
	scale := 1.0
	if rest, ok := strings.CutSuffix(s, "%"); ok {
		s, scale = strings.TrimSpace(rest), 0.01
	}
	s = strings.TrimLeft(s, "$€£¥")
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f * scale, true
}

// asNumber reports whether a memory value is numeric. Booleans are not.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// rowIndices reads a list of row indices stored in memory or decoded from JSON.
func rowIndices(v any) ([]int, bool) {
	switch rows := v.(type) {
	case []int:
		return rows, true
	case []float64:
		out := make([]int, len(rows))
		for i, r := range rows {
			out[i] = int(r)
		}
		return out, true
	case []any:
		out := make([]int, 0, len(rows))
		for _, r := range rows {
			switch x := r.(type) {
			case string:
				if n, err := strconv.Atoi(strings.TrimSpace(x)); err == nil {
					out = append(out, n)
				}
			default:
				if n, ok := asNumber(x); ok {
					out = append(out, int(n))
				}
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// aggregate folds nums with one of sum, avg, min, max or count. Empty input
// yields 0.
func aggregate(agg string, nums []float64) float64 {
	if agg == "count" {
		return float64(len(nums))
	}
	if len(nums) == 0 {
		return 0
	}
	out := nums[0]
	switch agg {
	case "sum", "avg":
		out = 0
		for _, n := range nums {
			out += n
		}
		if agg == "avg" {
			out /= float64(len(nums))
		}
	case "min":
		for _, n := range nums[1:] {
			out = math.Min(out, n)
		}
	case "max":
		for _, n := range nums[1:] {
			out = math.Max(out, n)
		}
	}
	return out
}

var identifier = regexp.MustCompile(`\b[A-Za-z_]\w*`)

// checkExpr accepts only arithmetic over identifiers and numbers.
func checkExpr(src string) error {
	for _, r := range src {
		switch {
		case r < 128 && (r == '_' || r == ' ' || r == '.' || r == '(' || r == ')' ||
			r == '+' || r == '-' || r == '*' || r == '/' ||
			('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')):
		default:
			return action.Invalid("unsafe character %q in expression %q", r, src)
		}
	}
	return nil
}

// identifiers lists the distinct identifiers of src in order of appearance.
func identifiers(src string) []string {
	var out []string
	seen := map[string]bool{}
	for _, id := range identifier.FindAllString(src, -1) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
