// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package mail

import "context"

// Recorder receives one event per delivery attempt.
type Recorder interface {
	RecordEmail(template, status string)
}

type instrumented struct {
	next     Transport
	recorder Recorder
}

// Instrumented wraps next so every delivery is counted as "sent" or "failed".
func Instrumented(next Transport, recorder Recorder) Transport {
	return &instrumented{next: next, recorder: recorder}
}

func (t *instrumented) Deliver(ctx context.Context, msg Message) error {
	err := t.next.Deliver(ctx, msg)
	status := "sent"
	if err != nil {
		status = "failed"
	}
	t.recorder.RecordEmail(msg.Template, status)
	return err
}
