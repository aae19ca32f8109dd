package table

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var ErrColumnNotFound = errors.New("column not found")

var spaces = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace and lowercases a header or query.
func Normalize(s string) string {
	return strings.ToLower(spaces.ReplaceAllString(strings.TrimSpace(s), " "))
}

// View is an immutable table: once built, neither headers nor cells change.
// Reshaping operations return a new View.
type View struct {
	Headers []string
	Rows    [][]string

	index map[string]int
	order []string // normalized headers in first-seen order
}

func NewView(headers []string, rows [][]string) *View {
	v := &View{Headers: headers, Rows: rows, index: make(map[string]int, len(headers))}
	for i, h := range headers {
		key := Normalize(h)
		if _, ok := v.index[key]; !ok {
			v.order = append(v.order, key)
		}
		v.index[key] = i // later duplicates win
	}
	return v
}

func (v *View) NumRows() int { return len(v.Rows) }
func (v *View) NumCols() int { return len(v.Headers) }

// ResolveColumn maps a column name to its index. Exact normalized matches win,
// then the shortest header that contains or is contained in the name.
func (v *View) ResolveColumn(name string) (int, error) {
	key := Normalize(name)
	if idx, ok := v.index[key]; ok {
		return idx, nil
	}

	var candidates []string
	for _, h := range v.order {
		if strings.Contains(h, key) || strings.Contains(key, h) {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return -1, fmt.Errorf("%w: %q (available: %v)", ErrColumnNotFound, name, v.Headers)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return len(candidates[i]) < len(candidates[j]) })
	return v.index[candidates[0]], nil
}

// Column returns all cells of the named column.
func (v *View) Column(name string) ([]string, error) {
	idx, err := v.ResolveColumn(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = cell(r, idx)
	}
	return out, nil
}

func (v *View) Cell(row int, name string) (string, error) {
	if row < 0 || row >= len(v.Rows) {
		return "", fmt.Errorf("row %d out of range [0, %d)", row, len(v.Rows))
	}
	idx, err := v.ResolveColumn(name)
	if err != nil {
		return "", err
	}
	return cell(v.Rows[row], idx), nil
}

// Project builds a view holding only the named columns, in the given order.
func (v *View) Project(names []string) (*View, error) {
	idxs := make([]int, len(names))
	headers := make([]string, len(names))
	for i, n := range names {
		idx, err := v.ResolveColumn(n)
		if err != nil {
			return nil, err
		}
		idxs[i] = idx
		headers[i] = v.Headers[idx]
	}
	rows := make([][]string, len(v.Rows))
	for i, r := range v.Rows {
		row := make([]string, len(idxs))
		for j, idx := range idxs {
			row[j] = cell(r, idx)
		}
		rows[i] = row
	}
	return NewView(headers, rows), nil
}

// Filter keeps the rows for which keep returns true. Row slices are shared.
func (v *View) Filter(keep func(row []string) bool) *View {
	var rows [][]string
	for _, r := range v.Rows {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return NewView(append([]string(nil), v.Headers...), rows)
}

// WithColumn returns a copy of the view with one extra column appended.
func (v *View) WithColumn(name string, values []string) *View {
	return v.InsertColumn(len(v.Headers), name, values)
}

// InsertColumn returns a copy of the view with a column inserted before
// position at. Out of range positions are clamped; missing values are empty.
func (v *View) InsertColumn(at int, name string, values []string) *View {
	at = min(max(at, 0), len(v.Headers))
	headers := make([]string, 0, len(v.Headers)+1)
	headers = append(headers, v.Headers[:at]...)
	headers = append(headers, name)
	headers = append(headers, v.Headers[at:]...)

	rows := make([][]string, len(v.Rows))
	for i, r := range v.Rows {
		full := fit(r, len(v.Headers))
		val := ""
		if i < len(values) {
			val = values[i]
		}
		row := make([]string, 0, len(headers))
		row = append(row, full[:at]...)
		row = append(row, val)
		row = append(row, full[at:]...)
		rows[i] = row
	}
	return NewView(headers, rows)
}

// WithRow returns a copy of the view with one extra row appended.
func (v *View) WithRow(row []string) *View {
	return v.InsertRow(len(v.Rows), row)
}

// InsertRow returns a copy of the view with row inserted before position at.
func (v *View) InsertRow(at int, row []string) *View {
	at = min(max(at, 0), len(v.Rows))
	rows := make([][]string, 0, len(v.Rows)+1)
	rows = append(rows, v.Rows[:at]...)
	rows = append(rows, fit(row, len(v.Headers)))
	rows = append(rows, v.Rows[at:]...)
	return NewView(append([]string(nil), v.Headers...), rows)
}

// Markdown renders at most maxRows rows as a pipe table. maxRows <= 0 renders all.
func (v *View) Markdown(maxRows int) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(v.Headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(v.Headers)) + "\n")
	for i, r := range v.Rows {
		if maxRows > 0 && i >= maxRows {
			fmt.Fprintf(&b, "... (%d more rows)\n", len(v.Rows)-maxRows)
			break
		}
		b.WriteString("| " + strings.Join(fit(r, len(v.Headers)), " | ") + " |\n")
	}
	return b.String()
}

func cell(r []string, idx int) string {
	if idx < len(r) {
		return r[idx]
	}
	return ""
}

// fit pads or truncates a row to width cells.
func fit(r []string, width int) []string {
	out := make([]string, width)
	copy(out, r)
	return out
}
