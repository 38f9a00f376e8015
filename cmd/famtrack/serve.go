// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/famtrack/famtrack/internal/api"
	"github.com/famtrack/famtrack/internal/config"
	"github.com/famtrack/famtrack/internal/jobs"
	"github.com/famtrack/famtrack/internal/observability"
)

// Shutdown and probe timeouts.
const (
	shutdownTimeout  = 5 * time.Second
	readinessTimeout = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and scheduled jobs",
		Long: `Start the HTTP API, the metrics and health endpoints, and the
scheduled daily reminder and expiry sweep jobs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	d := config.Default()
	cmd.Flags().String("addr", d.Server.Addr, "API listen address")
	cmd.Flags().String("metrics-addr", d.Server.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	addLogFlags(cmd)

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return oops.Wrapf(err, "invalid configuration")
	}
	if err := setupLogging(cfg); err != nil {
		return oops.Wrapf(err, "failed to set up logging")
	}
	logger := slog.Default()

	logger.Info("starting famtrack",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"mail_driver", cfg.Mail.Driver,
	)

	db, err := openDatabase(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to database")

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Server.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Server.MetricsAddr, map[string]observability.ReadinessChecker{
			"database": db.Ping,
		}, logger)
		metrics = obsServer.Metrics()
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	a, err := buildApp(ctx, cfg, db, deps, metrics, logger)
	if err != nil {
		return err
	}

	scheduler := jobs.New(jobs.WithLogger(logger), jobs.WithLocation(a.location))
	if err := scheduler.Add(jobs.ReminderJob(cfg.Reminder.Schedule, cfg.Jobs.Timeout, a.reminders)); err != nil {
		return err
	}
	if err := scheduler.Add(jobs.SweepJob(cfg.Sweep.Schedule, cfg.Jobs.Timeout, a.auth, metrics)); err != nil {
		return err
	}

	apiServer, err := api.NewServer(api.Config{
		Addr:      cfg.Server.Addr,
		Auth:      a.auth,
		Family:    a.family,
		Ledger:    a.ledger,
		Reminders: a.reminders,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Wrapf(err, "failed to start api server")
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
				logger.Warn("failed to stop api server during cleanup", "error", stopErr)
			}
			return oops.Wrapf(err, "failed to start observability server")
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	scheduler.Start(ctx)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("FamTrack server started")
	logger.Info("famtrack ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping scheduler", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors watches a server's error channel and cancels ctx on the
// first failure.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
