package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrEmptyTable = errors.New("empty table text")

var (
	ruleLine  = regexp.MustCompile(`-{3,}`)
	wideSpace = regexp.MustCompile(`\s{2,}`)
)

// Parse reads a text table. Markdown pipe tables are tried first, then CSV or
// TSV, then whitespace-aligned columns.
func Parse(text string) (*View, error) {
	var lines []string
	for _, ln := range strings.Split(strings.Trim(text, "\n"), "\n") {
		ln = strings.TrimRight(ln, "\r")
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyTable
	}

	if isPipeTable(lines) {
		return parsePipe(lines), nil
	}
	if delim := inferDelimiter(lines); delim != 0 && strings.ContainsRune(lines[0], delim) {
		return parseDelimited(lines, delim)
	}
	return parseAligned(lines), nil
}

func isPipeTable(lines []string) bool {
	return len(lines) >= 2 &&
		strings.Contains(lines[0], "|") &&
		strings.Contains(lines[1], "|") &&
		ruleLine.MatchString(lines[1])
}

func inferDelimiter(lines []string) rune {
	head := lines[:min(3, len(lines))]
	for _, ln := range head {
		if strings.Contains(ln, "\t") {
			return '\t'
		}
	}
	for _, ln := range head {
		if strings.Contains(ln, ",") {
			return ','
		}
	}
	return 0
}

func parsePipe(lines []string) *View {
	split := func(ln string) []string {
		ln = strings.TrimSpace(ln)
		ln = strings.TrimPrefix(ln, "|")
		ln = strings.TrimSuffix(ln, "|")
		parts := strings.Split(ln, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}

	header := split(lines[0])
	var rows [][]string
	for _, ln := range lines[2:] {
		rows = append(rows, fit(split(ln), len(header)))
	}
	return NewView(header, rows)
}

func parseDelimited(lines []string, delim rune) (*View, error) {
	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited table: %w", err)
	}

	var table [][]string
	for _, rec := range records {
		blank := true
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
			if rec[i] != "" {
				blank = false
			}
		}
		if !blank {
			table = append(table, rec)
		}
	}
	if len(table) < 2 {
		return nil, errors.New("delimited table must have a header and at least one row")
	}

	header := table[0]
	rows := make([][]string, 0, len(table)-1)
	for _, rec := range table[1:] {
		rows = append(rows, fit(rec, len(header)))
	}
	return NewView(header, rows), nil
}

func parseAligned(lines []string) *View {
	split := func(ln string) []string {
		ln = strings.TrimSpace(ln)
		parts := wideSpace.Split(ln, -1)
		if len(parts) <= 1 {
			parts = strings.Fields(ln)
		}
		return parts
	}

	header := split(lines[0])
	rows := make([][]string, 0, len(lines)-1)
	for _, ln := range lines[1:] {
		rows = append(rows, fit(split(ln), len(header)))
	}
	return NewView(header, rows)
}
