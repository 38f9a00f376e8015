// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package mail

import (
	"context"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// dialer is the gomail surface SMTPTransport uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport delivers through an SMTP relay with gomail.
type SMTPTransport struct {
	dialer dialer
}

// NewSMTPTransport creates an SMTPTransport.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_SMTP_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, oops.Code("MAIL_SMTP_CONFIG_INVALID").Errorf("smtp port must be positive, got %d", cfg.Port)
	}
	return &SMTPTransport{dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)}, nil
}

// Deliver sends msg. gomail has no context support, so a cancelled ctx
// abandons the wait but not the SMTP conversation already in flight.
func (t *SMTPTransport) Deliver(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	done := make(chan error, 1)
	go func() { done <- t.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return oops.Code("MAIL_SMTP_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
		return oops.Code("MAIL_SMTP_FAILED").With("operation", "wait for smtp").Wrap(ctx.Err())
	}
}
