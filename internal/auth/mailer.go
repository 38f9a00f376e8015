// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth

import "context"

// Mailer delivers authentication emails. Delivery is best-effort: callers
// log failures and carry on.
type Mailer interface {
	// SendOTP emails a registration code.
	SendOTP(ctx context.Context, email, code string) error

	// SendFamilyCode emails a user their family's join code.
	SendFamilyCode(ctx context.Context, email, userName, familyCode, familyName string) error
}

// Transactor runs fn inside a single storage transaction. Repository calls
// made with the context passed to fn participate in that transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
