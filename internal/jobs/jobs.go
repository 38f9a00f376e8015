// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package jobs

import (
	"context"
	"time"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/reminder"
)

// Job names.
const (
	DailyReminderJob = "daily-expense-reminder"
	ExpirySweepJob   = "expiry-sweep"
)

// Default schedules.
const (
	DefaultReminderSpec     = "0 0 21 * * *"
	DefaultReminderTimezone = "America/New_York"
	DefaultSweepSpec        = "@every 1h"
)

// DailyReminder sends the scheduled reminder to every user.
type DailyReminder interface {
	SendDaily(ctx context.Context) (*reminder.Tally, error)
}

// Sweeper removes expired credentials.
type Sweeper interface {
	SweepExpired(ctx context.Context) (auth.SweepResult, error)
}

// SweepRecorder counts swept rows by kind.
type SweepRecorder interface {
	RecordSweep(kind string, n int64)
}

// Sweep kinds reported to a SweepRecorder.
const (
	SweepRefreshTokens = "refresh_tokens"
	SweepOTPChallenges = "otp_challenges"
)

// ReminderJob runs the daily expense reminder.
func ReminderJob(spec string, timeout time.Duration, reminders DailyReminder) Job {
	return Job{
		Name:    DailyReminderJob,
		Spec:    spec,
		Timeout: timeout,
		Run: func(ctx context.Context) error {
			_, err := reminders.SendDaily(ctx)
			return err
		},
	}
}

// SweepJob prunes expired refresh tokens and OTP challenges. recorder may be nil.
func SweepJob(spec string, timeout time.Duration, sweeper Sweeper, recorder SweepRecorder) Job {
	return Job{
		Name:    ExpirySweepJob,
		Spec:    spec,
		Timeout: timeout,
		Run: func(ctx context.Context) error {
			res, err := sweeper.SweepExpired(ctx)
			if recorder != nil {
				recorder.RecordSweep(SweepRefreshTokens, res.RefreshTokens)
				recorder.RecordSweep(SweepOTPChallenges, res.OTPChallenges)
			}
			return err
		},
	}
}
