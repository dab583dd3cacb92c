package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/roach88/queryexec/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the queryexec HTTP API.

The dataset is (re)loaded on start unless dataset.load_on_start is false.
The server stops gracefully on SIGINT or SIGTERM, finishing in-flight
requests and draining queued async executions.

Example:
  queryexec serve --http.addr :8080
  queryexec serve --config ./queryexec.yaml -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}

	cmd.Flags().String("http.addr", "", "listen address (default :8080)")
	cmd.Flags().Float64("http.rate_limit", 0, "requests per second per client, 0 disables")
	cmd.Flags().Int("pool.max_workers", 0, "maximum async workers (default 10)")

	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(opts.Verbose)
	slog.SetDefault(logger)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer func() {
		if closeErr := a.Close(cfg.HTTP.ShutdownTimeout); closeErr != nil {
			logger.Error("error during shutdown", "error", closeErr)
		}
	}()

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(a.svc, api.Options{
		Addr:            cfg.HTTP.Addr,
		RateLimit:       cfg.HTTP.RateLimit,
		Burst:           cfg.HTTP.Burst,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, logger)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s. Press Ctrl-C to stop.\n", cfg.HTTP.Addr)

	if err := srv.ListenAndServe(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
