package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"statguide/adapters/api"
	"statguide/adapters/backend"
	"statguide/app"
	"statguide/internal"
	"statguide/internal/config"
	internalprofiling "statguide/internal/profiling"
)

// env is the wiring shared by every command
type env struct {
	cfg     *config.Config
	logger  *internal.Logger
	service *app.AnalysisService
	backend string
	out     io.Writer
}

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	e := &env{out: os.Stdout}
	rootCmd := newRootCmd(e)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(e *env) *cobra.Command {
	var logLevel string
	var backendMode string

	rootCmd := &cobra.Command{
		Use:           "statguide",
		Short:         "Recommend and run statistical tests on tabular data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if backendMode != "" {
				cfg.Backend.Mode = backendMode
			}
			return e.setup(cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: ERROR|WARN|INFO|DEBUG|TRACE")
	rootCmd.PersistentFlags().StringVar(&backendMode, "backend", "", "Backend override: gonum|remote|none")

	rootCmd.AddCommand(
		newProfileCmd(e),
		newRecommendCmd(e),
		newKeywordsCmd(e),
		newAnalyzeCmd(e),
		newTestCmd(e),
		newTwoWayCmd(e),
		newCorrelateCmd(e),
		newMatrixCmd(e),
		newPostHocCmd(e),
		newServeCmd(e),
	)
	return rootCmd
}

func (e *env) setup(cfg *config.Config) error {
	e.cfg = cfg
	e.logger = internal.NewLoggerTo(os.Stderr, internal.ParseLevel(cfg.LogLevel))

	b, err := backend.New(cfg.Backend)
	if err != nil {
		return err
	}
	e.backend = config.BackendNone
	if b != nil {
		e.backend = b.Name()
	}
	e.service = app.NewAnalysisService(internalprofiling.NewProfiler(), b, cfg.Analysis, e.logger)
	e.logger.Debug("backend %s, alpha %.3f", e.backend, cfg.Analysis.SignificanceAlpha)
	return nil
}

func (e *env) print(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd(e *env) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = e.cfg.Server.Port
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.NewServer(e.service, e.backend, e.logger)
			return server.ListenAndServe(ctx, ":"+port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (defaults to PORT)")
	return cmd
}
