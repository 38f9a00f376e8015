// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/famtrack/famtrack/internal/config"
	"github.com/famtrack/famtrack/internal/jobs"
	"github.com/famtrack/famtrack/internal/observability"
	"github.com/famtrack/famtrack/internal/reminder"
)

// NewRemindCmd creates the remind subcommand.
func NewRemindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send the daily expense reminder to every user now",
		Long: `Send the daily expense reminder to every member of every family once,
outside the serve schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runRemindWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	addLogFlags(cmd)
	return cmd
}

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired refresh tokens and OTP challenges now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runSweepWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	addLogFlags(cmd)
	return cmd
}

// oneShot validates cfg, connects and wires the services for a single run.
// The returned close function releases the database.
func oneShot(ctx context.Context, cfg *config.Config, deps *ServeDeps) (*app, func(), error) {
	deps = deps.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, oops.Wrapf(err, "invalid configuration")
	}
	if err := setupLogging(cfg); err != nil {
		return nil, nil, oops.Wrapf(err, "failed to set up logging")
	}
	logger := slog.Default()

	db, err := openDatabase(ctx, cfg, deps, logger)
	if err != nil {
		return nil, nil, err
	}
	a, err := buildApp(ctx, cfg, db, deps, observability.NewMetrics(prometheus.NewRegistry()), logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return a, db.Close, nil
}

func runRemindWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, closeDB, err := oneShot(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(ctx, cfg.Jobs.Timeout)
	defer cancel()

	tally, err := a.reminders.SendDaily(ctx)
	if err != nil {
		return oops.Code("REMIND_FAILED").With("job", jobs.DailyReminderJob).Wrap(err)
	}
	cmd.Println(tally.Message)
	for _, r := range tally.Results {
		if r.Status == reminder.StatusFailed {
			cmd.Printf("  failed: %s\n", r.Email)
		}
	}
	return nil
}

func runSweepWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, closeDB, err := oneShot(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(ctx, cfg.Jobs.Timeout)
	defer cancel()

	res, err := a.auth.SweepExpired(ctx)
	a.metrics.RecordSweep(jobs.SweepRefreshTokens, res.RefreshTokens)
	a.metrics.RecordSweep(jobs.SweepOTPChallenges, res.OTPChallenges)
	if err != nil {
		return oops.Code("SWEEP_FAILED").With("job", jobs.ExpirySweepJob).Wrap(err)
	}
	cmd.Printf("Removed %d expired refresh token(s) and %d OTP challenge(s)\n", res.RefreshTokens, res.OTPChallenges)
	return nil
}
