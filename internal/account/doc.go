// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package account implements the credential and session-token lifecycle.
//
// # Services
//
// Each flow is a service created by a New*Service constructor that validates
// its dependencies:
//   - RegistrationService - provisional account creation, verification email,
//     compensating delete when the email cannot be delivered
//   - SessionService - token renewal and password login, both rotating a
//     device-scoped token
//   - ResetService - single-use, time-bounded password reset tokens
//   - LookupService - name lookups for logged-in connections
//   - EmailService - email verification and settings
//
// Services never hold a connection. Work that completes after the request
// returned carries a plain value (PendingRegistration and friends) and
// reports through a Notifier keyed by connection id; a connection that is
// gone by then is a dropped reply, not an error.
//
// # Replies and errors
//
// Synchronous operations return the reply to send together with an error.
// The reply is always complete; the error is there for logging and metrics
// and is classified by KindOf.
package account
