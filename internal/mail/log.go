// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package mail

import (
	"context"
	"log/slog"
)

// LogTransport logs deliveries instead of sending them. Bodies are never
// logged since they carry codes.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a LogTransport. A nil logger uses slog.Default.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

// Deliver logs the recipient and subject.
func (t *LogTransport) Deliver(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "email delivery skipped",
		"to", msg.To,
		"subject", msg.Subject,
		"template", msg.Template)
	return nil
}
