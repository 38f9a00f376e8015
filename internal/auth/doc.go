// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package auth implements the FamTrack identity and session lifecycle.
//
// # Domain Types
//
// Domain types (User, Family, RefreshToken) should be created using their
// constructors:
//   - NewUser - creates a User with a normalized email and a valid role
//   - NewFamily - creates a Family with a name and join code
//   - NewRefreshToken - creates a RefreshToken record with a token hash
//
// Repository implementations receive pre-validated types from these constructors.
//
// # Components
//
//   - OTPManager - issues and verifies email registration codes
//   - FamilyResolver - finds a family by code or prepares a new one
//   - BcryptHasher - hashes and verifies passwords
//   - TokenIssuer - mints, refreshes and revokes JWTs
//   - Service - the public registration, login and session operations
//
// Errors carry samber/oops codes. KindOf classifies them for transports.
package auth
