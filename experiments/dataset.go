package experiments

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Example is one line of a JSONL dataset.
type Example struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Table    string `json:"table"`
	Answer   any    `json:"answer"`
}

// LoadDataset reads one JSON object per line. Blank lines are skipped.
func LoadDataset(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var examples []Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 16<<20)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var ex Example
		if err := json.Unmarshal([]byte(text), &ex); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if ex.Question == "" || ex.Table == "" {
			return nil, fmt.Errorf("%s:%d: question and table are required", path, line)
		}
		if ex.ID == "" {
			ex.ID = fmt.Sprintf("q%d", len(examples)+1)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return examples, nil
}
