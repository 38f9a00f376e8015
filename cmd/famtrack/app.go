// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/auth/postgres"
	"github.com/famtrack/famtrack/internal/config"
	"github.com/famtrack/famtrack/internal/family"
	"github.com/famtrack/famtrack/internal/ledger"
	ledgerpg "github.com/famtrack/famtrack/internal/ledger/postgres"
	"github.com/famtrack/famtrack/internal/mail"
	"github.com/famtrack/famtrack/internal/observability"
	"github.com/famtrack/famtrack/internal/reminder"
	"github.com/famtrack/famtrack/internal/store"
)

// app holds the services shared by serve, remind and sweep.
type app struct {
	db        Database
	auth      *auth.Service
	family    *family.Service
	ledger    *ledger.Service
	reminders *reminder.Service
	metrics   *observability.Metrics
	location  *time.Location
}

// openDatabase connects to PostgreSQL through deps.
func openDatabase(ctx context.Context, cfg *config.Config, deps *ServeDeps, logger *slog.Logger) (Database, error) {
	db, err := deps.DatabaseFactory(ctx, cfg.Database.URL, store.ConnectOptions{
		MaxConns: cfg.Database.MaxConns,
		Logger:   logger,
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	return db, nil
}

// buildApp wires repositories, mail and services on top of db. Deliveries
// and reminder outcomes are counted in metrics.
func buildApp(ctx context.Context, cfg *config.Config, db Database, deps *ServeDeps, metrics *observability.Metrics, logger *slog.Logger) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	users := postgres.NewUserRepository(db)
	families := postgres.NewFamilyRepository(db)

	transport, err := deps.MailTransportFactory(ctx, cfg.MailConfig(), logger)
	if err != nil {
		return nil, oops.With("operation", "open mail transport").Wrap(err)
	}
	sender, err := mail.NewSender(mail.Instrumented(transport, metrics), cfg.Mail.From,
		mail.WithTimeout(cfg.Mail.Timeout),
		mail.WithAppURL(cfg.Mail.AppURL),
		mail.WithLocation(loc),
		mail.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	authSvc, err := auth.NewService(auth.Dependencies{
		Users:         users,
		Families:      families,
		OTPs:          postgres.NewOTPRepository(db),
		RefreshTokens: postgres.NewRefreshTokenRepository(db),
		Hasher:        auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Mailer:        sender,
		Transactor:    postgres.NewTransactor(db),
		Tokens:        cfg.TokenConfig(),
	}, auth.WithLogger(logger))
	if err != nil {
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}

	familySvc, err := family.NewService(families, users, family.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	ledgerSvc, err := ledger.NewService(ledgerpg.NewEntryRepository(db), users, ledger.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	reminderSvc, err := reminder.NewService(users, families, sender,
		reminder.WithLogger(logger),
		reminder.WithConcurrency(cfg.Reminder.Concurrency),
		reminder.WithRecorder(metrics),
	)
	if err != nil {
		return nil, err
	}

	return &app{
		db:        db,
		auth:      authSvc,
		family:    familySvc,
		ledger:    ledgerSvc,
		reminders: reminderSvc,
		metrics:   metrics,
		location:  loc,
	}, nil
}
