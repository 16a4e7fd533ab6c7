package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/launchorch/pkg/api/grpc"
	"github.com/aescanero/launchorch/pkg/api/http"
	"github.com/aescanero/launchorch/pkg/api/origin"
	"github.com/aescanero/launchorch/pkg/api/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP, websocket and gRPC servers",
		Long: `Start the orchestrator with its HTTP API (including websocket status
streams and Prometheus metrics) and the gRPC health service.

Example:
  launchorch serve
  LAUNCHORCH_HTTP_PORT=8181 launchorch serve --simulate
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *globalOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting launch orchestrator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.Bool("simulate", cfg.Simulate))

	eng, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	health := eng.pool.Health()

	origins := origin.NewPolicy(cfg.AllowedOrigins)

	httpServer := http.NewServer(&http.Config{
		Host:         cfg.HTTPHost,
		Port:         cfg.HTTPPort,
		Orchestrator: eng.manager,
		Store:        eng.store,
		Health:       health,
		Gatherer:     eng.registry,
		Origins:      origins,
		Logger:       logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(eng.eventBus, eng.manager, origins, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Host:          cfg.GRPCHost,
		Port:          cfg.GRPCPort,
		Checker:       health,
		CheckInterval: cfg.Workers.HealthCheckInterval,
		Logger:        logger,
	})
	if err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()
		eng.shutdown(shutdownCtx)
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("launch orchestrator started",
		zap.String("http_addr", cfg.GetHTTPAddr()),
		zap.String("grpc_addr", cfg.GetGRPCAddr()),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal or a server failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		serveErr = fmt.Errorf("server failed: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	eng.shutdown(shutdownCtx)

	logger.Info("launch orchestrator shut down complete")
	return serveErr
}
