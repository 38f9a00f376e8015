// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth

import (
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/samber/oops"
)

const (
	codeMin   = 100000
	codeRange = 900000
)

// GenerateNumericCode draws a six-digit code uniformly from [100000, 999999].
// It backs both OTPs and family codes.
func GenerateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", oops.Code("CODE_GENERATE_FAILED").
			With("operation", "crypto/rand.Int").
			Wrap(err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}
