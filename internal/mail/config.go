// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package mail renders FamTrack emails and delivers them over SMTP, Amazon
// SES, or the log.
package mail

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Driver names accepted by Open.
const (
	DriverSMTP = "smtp"
	DriverSES  = "ses"
	DriverLog  = "log"
)

// Drivers lists the supported drivers.
var Drivers = []string{DriverSMTP, DriverSES, DriverLog}

// Config selects and configures a transport.
type Config struct {
	Driver string
	SMTP   SMTPConfig
	SES    SESConfig
}

// Open builds the transport named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Transport, error) {
	switch cfg.Driver {
	case DriverSMTP:
		t, err := NewSMTPTransport(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		return t, nil
	case DriverSES:
		t, err := NewSESTransport(ctx, cfg.SES)
		if err != nil {
			return nil, err
		}
		return t, nil
	case DriverLog, "":
		return NewLogTransport(logger), nil
	default:
		return nil, oops.Code("MAIL_DRIVER_UNKNOWN").With("driver", cfg.Driver).Errorf("unknown mail driver %q", cfg.Driver)
	}
}
