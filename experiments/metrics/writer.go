package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// RunConfig is one search configuration of an experiment.
type RunConfig struct {
	ID               int
	Iterations       int
	MaxCandidates    int
	Exploration      float64
	MaxDepth         int
	MinScoreToExpand float64
	Judges           int
	Concurrency      int // questions answered in parallel
}

type QuestionRecord struct {
	Config   int // RunConfig.ID
	Question string
	RunID    string
	Answer   string
	Gold     string
	Correct  bool
	Score    float64
	Error    string
	SearchMetric
}

// Summary aggregates the question records of one configuration.
type Summary struct {
	Config     int
	Questions  int
	Answered   int
	Correct    int
	Errors     int
	Accuracy   float64
	MeanTime   time.Duration
	Throughput float64 // questions per second of wall time
}

func Summarize(config int, records []QuestionRecord, wall time.Duration) Summary {
	s := Summary{Config: config}
	var total time.Duration
	for _, r := range records {
		if r.Config != config {
			continue
		}
		s.Questions++
		total += r.Duration
		switch {
		case r.Error != "":
			s.Errors++
		case r.Answer != "":
			s.Answered++
		}
		if r.Correct {
			s.Correct++
		}
	}
	if s.Questions > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Questions)
		s.MeanTime = total / time.Duration(s.Questions)
	}
	if wall > 0 {
		s.Throughput = float64(s.Questions) / wall.Seconds()
	}
	return s
}

type Writer struct {
	baseDir string
}

// NewWriter creates root/name/<timestamp> for the files of one experiment.
func NewWriter(root, name string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405Z")
	baseDir := filepath.Join(root, name, timestamp)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &Writer{baseDir: baseDir}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) write(name string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(w.baseDir, name))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s rows: %w", name, err)
	}
	return f.Close()
}

func (w *Writer) WriteRunConfigs(configs []RunConfig) error {
	rows := make([][]string, 0, len(configs))
	for _, c := range configs {
		rows = append(rows, []string{
			strconv.Itoa(c.ID),
			strconv.Itoa(c.Iterations),
			strconv.Itoa(c.MaxCandidates),
			formatFloat(c.Exploration),
			strconv.Itoa(c.MaxDepth),
			formatFloat(c.MinScoreToExpand),
			strconv.Itoa(c.Judges),
			strconv.Itoa(c.Concurrency),
		})
	}
	return w.write("run_configs.csv",
		[]string{"id", "iterations", "max_candidates", "exploration", "max_depth", "min_score_to_expand", "judges", "concurrency"},
		rows)
}

func (w *Writer) WriteQuestionRecords(records []QuestionRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			strconv.Itoa(r.Config),
			r.Question,
			r.RunID,
			r.Answer,
			r.Gold,
			strconv.FormatBool(r.Correct),
			formatFloat(r.Score),
			r.Error,
			r.Duration.String(),
			strconv.Itoa(r.Episodes),
			strconv.Itoa(r.Expansions),
			strconv.Itoa(r.DeadEnds),
			strconv.Itoa(r.Pruned),
			strconv.Itoa(r.Failures),
			strconv.Itoa(r.Candidates),
		})
	}
	return w.write("question_records.csv",
		[]string{"config", "question", "run_id", "answer", "gold", "correct", "score", "error",
			"duration", "episodes", "expansions", "dead_ends", "pruned", "failures", "candidates"},
		rows)
}

func (w *Writer) WriteSummaries(summaries []Summary) error {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			strconv.Itoa(s.Config),
			strconv.Itoa(s.Questions),
			strconv.Itoa(s.Answered),
			strconv.Itoa(s.Correct),
			strconv.Itoa(s.Errors),
			formatFloat(s.Accuracy),
			s.MeanTime.String(),
			formatFloat(s.Throughput),
		})
	}
	return w.write("summaries.csv",
		[]string{"config", "questions", "answered", "correct", "errors", "accuracy", "mean_time", "throughput"},
		rows)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
