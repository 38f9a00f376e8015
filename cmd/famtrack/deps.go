// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/famtrack/famtrack/internal/mail"
	"github.com/famtrack/famtrack/internal/observability"
	"github.com/famtrack/famtrack/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// DatabaseFactory opens the connection pool.
	// Default: store.Connect
	DatabaseFactory func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error)

	// MailTransportFactory builds the outgoing mail transport.
	// Default: mail.Open
	MailTransportFactory func(ctx context.Context, cfg mail.Config, logger *slog.Logger) (mail.Transport, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checks map[string]observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

// Database is the pool surface the repositories and readiness probe use.
// *pgxpool.Pool and pgxmock.PgxPoolIface both satisfy it.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// ObservabilityServer interface for metrics and health endpoints.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Migrator interface wraps the store.Migrator methods the migrate command uses.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	if d == nil {
		d = &ServeDeps{}
	}
	if d.DatabaseFactory == nil {
		d.DatabaseFactory = func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error) {
			pool, err := store.Connect(ctx, url, opts)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if d.MailTransportFactory == nil {
		d.MailTransportFactory = mail.Open
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, checks map[string]observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			opts := []observability.Option{
				observability.WithLogger(logger),
				observability.WithVersion(version),
				observability.WithCheckTimeout(readinessTimeout),
			}
			for name, check := range checks {
				opts = append(opts, observability.WithCheck(name, check))
			}
			return observability.NewServer(addr, opts...)
		}
	}
	return d
}
