package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shhac/devcopilot/internal/config"
	"github.com/shhac/devcopilot/internal/gemini"
	"github.com/shhac/devcopilot/internal/repo"
	"github.com/shhac/devcopilot/internal/server"
)

type serveOptions struct {
	addr        string
	stepScale   float64
	geminiModel string
	origins     []string
}

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API over the demo repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupConsoleLogging(g.logLevel); err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = opts.addr
			}
			if cmd.Flags().Changed("step-scale") {
				cfg.WorkflowStepScale = opts.stepScale
			}
			if cmd.Flags().Changed("gemini-model") {
				cfg.GeminiModel = opts.geminiModel
			}
			return runServe(cmd.Context(), cfg, opts.origins)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", config.DefaultAddr, "Listen address")
	cmd.Flags().Float64Var(&opts.stepScale, "step-scale", config.DefaultWorkflowStepScale, "Multiplier for agent workflow step durations")
	cmd.Flags().StringVar(&opts.geminiModel, "gemini-model", config.DefaultGeminiModel, "Gemini model name")
	cmd.Flags().StringSliceVar(&opts.origins, "allowed-origins", nil, "CORS origins (default: any)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, origins []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repo.NewDemoStore()
	if err != nil {
		return fmt.Errorf("failed to load demo repositories: %w", err)
	}

	factory := analyzerFactory(cfg)
	var analyzer gemini.Analyzer
	if cfg.GeminiAPIKey != "" || !cfg.DisableDemo {
		analyzer, err = factory(cfg.GeminiAPIKey)
		if err != nil {
			return err
		}
	} else {
		log.Warn().Msg("no Gemini API key and demo analyzer disabled; analysis needs /api/config/connect")
	}

	srv, err := server.New(server.Options{
		Store:           store,
		Analyzer:        analyzer,
		AnalyzerFactory: factory,
		StepScale:       cfg.WorkflowStepScale,
		AllowedOrigins:  origins,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.ListenAndServe(ctx, cfg.Addr)
}

// analyzerFactory builds analyzers from cfg. Demo keys get the offline
// analyzer; real keys get a cached Gemini client.
func analyzerFactory(cfg *config.Config) server.AnalyzerFactory {
	return func(apiKey string) (gemini.Analyzer, error) {
		if gemini.IsDemoKey(apiKey) {
			if cfg.DisableDemo {
				return nil, gemini.ErrMissingAPIKey
			}
			log.Info().Msg("using demo analyzer")
			return gemini.DemoAnalyzer{}, nil
		}
		client, err := gemini.NewClient(apiKey, gemini.ClientOptions{
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.GeminiModel,
			Timeout:    cfg.GeminiTimeoutDuration(),
			RatePerSec: cfg.GeminiRatePerSec,
		})
		if err != nil {
			return nil, err
		}
		cached, err := gemini.NewCachedAnalyzer(client, client.Model(), cfg.AnalysisCacheSize,
			gemini.NewAnalysisStore(config.AnalysesCacheDir()))
		if err != nil {
			return nil, err
		}
		log.Info().Str("model", client.Model()).Msg("using Gemini analyzer")
		return cached, nil
	}
}
