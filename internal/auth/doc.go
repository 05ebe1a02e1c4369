// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package auth implements the credential and session lifecycle of the
// back-office API.
//
// # Domain Types
//
//   - Account and Profile - identity records persisted by an AccountRepository
//   - Claims - the payload carried by tokens produced by Codec
//   - AccountDraft - a staged candidate account waiting for activation
//
// Ephemeral credentials (sessions, reset and activation key/token pairs,
// captcha answers, login failure counters) live only in a TokenStore and
// expire on their own.
//
// # Services
//
//   - Service - login for the staff and candidate portals
//   - SessionManager - create, validate and destroy sessions
//   - PasswordResetService - request and redeem password resets
//   - RegistrationService - stage, check and activate candidate accounts
//   - CaptchaService - issue and check image challenges
//   - Catalog - service descriptors and role-based access to them
//
// Services are created with New* constructors that validate dependencies.
package auth
