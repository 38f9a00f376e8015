// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

package auth_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famtrack/famtrack/internal/auth"
)

func TestGenerateNumericCode(t *testing.T) {
	seen := make(map[string]struct{})
	for range 500 {
		code, err := auth.GenerateNumericCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
		seen[code] = struct{}{}
	}
	// 500 draws from 900000 values; collisions are possible but rare.
	assert.Greater(t, len(seen), 490)
}
