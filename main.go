package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"tqa/action/builtin"
	"tqa/config"
	"tqa/engine"
	"tqa/experiments/metrics"
	"tqa/knowledge"
	"tqa/llm"
	"tqa/prompt"
	"tqa/store"
)

const version = "0.1.0"

// app carries what every command shares once the root command has loaded the
// configuration.
type app struct {
	configPath string
	cfg        *config.Config
	closers    []func(context.Context) error
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "tqa",
		Short:         "Answer questions about tables with Monte Carlo tree search over table operations",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./tqa.yaml or ./config/tqa.yaml)")
	root.AddCommand(a.answerCmd(), a.serveCmd(), a.mcpCmd(), a.experimentCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		a.close()
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty || isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	if cfg.Telemetry.TraceStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", cfg.Telemetry.ServiceName))),
		)
		otel.SetTracerProvider(tp)
		a.closers = append(a.closers, tp.Shutdown)
	}
	return nil
}

func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// local builds the in-process engine from the configuration: LLM client,
// knowledge bases, action registry, prompts and the optional run store.
func (a *app) local(withStore bool) (*engine.Local, error) {
	cfg := a.cfg
	client, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Warn().Msg("no LLM configured, using the fixed planning policy")
	}

	deps := builtin.Deps{LLM: client, Retries: cfg.LLM.Retries}
	if cfg.Knowledge.GeneralDir != "" {
		index, err := a.knowledgeIndex(cfg.Knowledge.GeneralDir)
		if err != nil {
			return nil, err
		}
		deps.General = index
	}
	if cfg.Knowledge.DomainDir != "" {
		index, err := a.knowledgeIndex(cfg.Knowledge.DomainDir)
		if err != nil {
			return nil, err
		}
		deps.Domain = index
	}

	prompts := prompt.Default()
	if cfg.Prompts != "" {
		if prompts, err = prompt.Load(cfg.Prompts); err != nil {
			return nil, err
		}
	}

	options := []engine.LocalOption{
		engine.WithSearch(cfg.Search),
		engine.WithAgents(cfg.Agent),
		engine.WithPrompts(prompts),
		engine.WithCollector(metrics.NewPrometheusCollector),
	}
	if withStore && cfg.Store.Enabled {
		s, err := store.Open(cfg.Store)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		options = append(options, engine.WithStore(s))
	}
	return engine.NewLocal(client, builtin.NewRegistry(deps), options...), nil
}

func (a *app) knowledgeIndex(dir string) (*knowledge.Index, error) {
	index, err := knowledge.NewIndex(a.cfg.Knowledge.ChunkSize, a.cfg.Knowledge.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return index.Close() })
	if _, err := index.LoadDir(dir); err != nil {
		return nil, err
	}
	return index, nil
}
