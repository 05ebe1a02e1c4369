// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidToken marks every failure to redeem a signed payload or a
	// key/token pair: expired, tampered, malformed, or mismatched.
	ErrInvalidToken = errors.New("invalid token")

	// ErrDuplicateUsername is returned by repositories on a unique violation.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrUnauthenticated is returned by ValidateSession when a session id
	// does not resolve to an active account.
	ErrUnauthenticated = errors.New("unauthenticated")
)
