package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tqa/communication/mcp"
	"tqa/communication/server"
	"tqa/engine"
	"tqa/experiments"
	"tqa/experiments/metrics"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	answerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).
			Border(lipgloss.RoundedBorder()).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func (a *app) answerCmd() *cobra.Command {
	var (
		question, tablePath, gold, remote string
		iterations                        int
		asJSON                            bool
		runID                             string
	)
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Answer one question about a table file, or fetch a stored run with --run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var eng engine.Engine
			if remote != "" {
				eng = engine.NewRemote(remote, a.cfg.Server.RunTimeout)
			} else {
				local, err := a.local(true)
				if err != nil {
					return err
				}
				eng = local
			}

			var res *engine.Result
			var err error
			if runID != "" {
				res, err = eng.Run(cmd.Context(), runID)
			} else {
				req := engine.Request{Question: question, Iterations: iterations}
				if gold != "" {
					req.Gold = gold
				}
				if req.Table, err = readTable(tablePath, cmd.InOrStdin()); err != nil {
					return err
				}
				res, err = eng.Answer(cmd.Context(), req)
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), render(res))
			return nil
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "question about the table")
	cmd.Flags().StringVarP(&tablePath, "table", "t", "-", "table file, - for stdin")
	cmd.Flags().StringVar(&gold, "gold", "", "expected answer, used to grade the result")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "search iterations, overrides the config")
	cmd.Flags().StringVar(&remote, "remote", "", "base URL of a tqa server to ask instead of searching locally")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().StringVar(&runID, "run", "", "fetch a stored run instead of asking")
	return cmd
}

func readTable(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read table: %w", err)
	}
	return string(data), nil
}

func render(res *engine.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(res.Question) + "\n")
	b.WriteString(answerStyle.Render(fmt.Sprint(res.Answer)) + "\n")
	if res.Correct != nil {
		verdict := "incorrect"
		if *res.Correct {
			verdict = "correct"
		}
		b.WriteString(labelStyle.Render("gold: ") + verdict + "\n")
	}
	for i, p := range res.Candidates {
		marker := "  "
		if i == res.Chosen {
			marker = "> "
		}
		steps := make([]string, len(p.Steps))
		for j, st := range p.Steps {
			steps[j] = st.Spec.Type()
		}
		b.WriteString(fmt.Sprintf("%s%s %6.3f  %v  %s\n", marker, labelStyle.Render(fmt.Sprintf("path_%d", i)),
			p.TotalScore, p.FinalAnswer, strings.Join(steps, " > ")))
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf("run %s, %d episodes in %s", res.RunID, res.Metrics.Episodes, res.Elapsed.Round(time.Millisecond))))
	return b.String()
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			local, err := a.local(true)
			if err != nil {
				return err
			}
			cfg := a.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}
			return server.New(local, cfg).ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the config")
	return cmd
}

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			local, err := a.local(true)
			if err != nil {
				return err
			}
			return mcp.New(local, version).Serve(cmd.Context())
		},
	}
}

func (a *app) experimentCmd() *cobra.Command {
	var (
		dataset, outDir string
		limit           int
	)
	cmd := &cobra.Command{
		Use:   "experiment <iterations|exploration|throughput|single>",
		Short: "Run a JSONL dataset through a sweep of search configurations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataset == "" {
				return errors.New("--dataset is required")
			}
			examples, err := experiments.LoadDataset(dataset)
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(examples) {
				examples = examples[:limit]
			}

			s := a.cfg.Search
			base := metrics.RunConfig{
				Iterations:       s.Iterations,
				MaxCandidates:    s.MaxCandidates,
				Exploration:      s.Exploration,
				MaxDepth:         s.MaxDepth,
				MinScoreToExpand: s.MinScoreToExpand,
				Judges:           a.cfg.Agent.Judges,
				Concurrency:      1,
			}
			configs, err := experiments.Sweep(args[0], base)
			if err != nil {
				return err
			}

			var buildErr error
			factory := func(rc metrics.RunConfig) engine.Engine {
				cfg := *a.cfg
				cfg.Search = engine.SearchConfig{
					Iterations:       rc.Iterations,
					MaxCandidates:    rc.MaxCandidates,
					Exploration:      rc.Exploration,
					MaxDepth:         rc.MaxDepth,
					MinScoreToExpand: rc.MinScoreToExpand,
				}
				cfg.Agent.Judges = rc.Judges
				sub := &app{cfg: &cfg}
				local, err := sub.local(false)
				a.closers = append(a.closers, sub.closers...)
				if err != nil {
					buildErr = err
					return failing{err}
				}
				return local
			}

			report, err := experiments.Run(cmd.Context(), args[0], examples, configs, factory, outDir)
			if err != nil {
				return err
			}
			if buildErr != nil {
				return buildErr
			}
			for _, s := range report.Summaries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s accuracy %.3f (%d/%d), %d errors, %.2f q/s\n",
					titleStyle.Render(fmt.Sprintf("config %d", s.Config)), s.Accuracy, s.Correct, s.Questions, s.Errors, s.Throughput)
			}
			if report.Dir != "" {
				fmt.Fprintln(cmd.OutOrStdout(), labelStyle.Render("records: "+report.Dir))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataset, "dataset", "", "JSONL file with question, table and answer fields")
	cmd.Flags().StringVar(&outDir, "out", "experiments/results", "directory for CSV records, empty to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "only use the first n examples")
	return cmd
}

// failing is the engine of a configuration that could not be built.
type failing struct{ err error }

func (f failing) Answer(context.Context, engine.Request) (*engine.Result, error) { return nil, f.err }
func (f failing) Run(context.Context, string) (*engine.Result, error)            { return nil, f.err }
