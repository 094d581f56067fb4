package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recdex/internal/config"
	"github.com/kailas-cloud/recdex/internal/metrics"
	"github.com/kailas-cloud/recdex/internal/supervisor"
	chiTransport "github.com/kailas-cloud/recdex/internal/transport/chi"
	"github.com/kailas-cloud/recdex/internal/version"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Train the initial model and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(cmd.Context(), cfg, flags.env, logger)
		},
	}
}

func serve(parent context.Context, cfg config.Config, env string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting recdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}

	metrics.RegisterHTTPMetrics()
	server := chiTransport.NewServer(a.engine, a.health, logger).WithItems(a.items)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      chiTransport.NewRouter(server, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecaySec,
		FailureBackoff:   time.Duration(cfg.Supervisor.FailureBackoffSec) * time.Second,
		ShutdownTimeout:  time.Duration(cfg.Supervisor.ShutdownTimeoutSec) * time.Second,
	})
	if cfg.Recommender.Async() {
		tree.AddWorker(a.engine)
	}
	tree.AddAPIService(supervisor.NewHTTPService(srv, time.Duration(cfg.HTTP.ShutdownSec)*time.Second))

	logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logger.Warn("Services did not stop in time", zap.Int("count", len(report)))
	}
	logger.Info("Server stopped gracefully")
	return nil
}
