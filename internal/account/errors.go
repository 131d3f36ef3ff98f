// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/beachbev/accountd/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write collides with a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// ErrDevicesExhausted is returned when an account has no device id left.
var ErrDevicesExhausted = errors.New("device ids exhausted")

// Error codes carried by the errors this package returns.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNameTaken          = "NAME_TAKEN"
	CodeNameIsEmail        = "NAME_IS_EMAIL"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeEmailNotFound      = "EMAIL_NOT_FOUND"
	CodeTokenMalformed     = "TOKEN_MALFORMED"
	CodeInvalidLogin       = "INVALID_LOGIN"
	CodeTokenMismatch      = "TOKEN_MISMATCH"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenMissing       = "TOKEN_MISSING"
	CodeLoginThrottled     = "LOGIN_THROTTLED"
	CodeNotLoggedIn        = "NOT_LOGGED_IN"
	CodeNotPrivileged      = "NOT_PRIVILEGED"
	CodeMailSendFailed     = "MAIL_SEND_FAILED"
	CodeFederationFailed   = "FEDERATION_FAILED"
	CodeListingFailed      = "LISTING_FAILED"
	CodeSwallowedWrite     = "SWALLOWED_WRITE"
	CodeIdentityLookup     = "IDENTITY_LOOKUP_FAILED"
	CodeRegistrationFailed = "REGISTRATION_FAILED"
)

// Kind classifies an error for the caller and for observability.
type Kind int

// Error kinds.
const (
	KindNone Kind = iota
	KindValidation
	KindAuthentication
	KindStorage
	KindExternal
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindStorage:
		return "storage"
	case KindExternal:
		return "external"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

var kindByCode = map[string]Kind{
	CodeValidationFailed: KindValidation,
	CodeNameTaken:        KindValidation,
	CodeNameIsEmail:      KindValidation,
	CodeEmailTaken:       KindValidation,
	CodeEmailNotVerified: KindValidation,
	CodeEmailNotFound:    KindValidation,
	CodeTokenMalformed:   KindValidation,
	CodeInvalidLogin:     KindAuthentication,
	CodeTokenMismatch:    KindAuthentication,
	CodeTokenExpired:     KindAuthentication,
	CodeTokenInvalid:     KindAuthentication,
	CodeTokenMissing:     KindAuthentication,
	CodeLoginThrottled:   KindAuthentication,
	CodeNotLoggedIn:      KindAuthentication,
	CodeNotPrivileged:    KindAuthentication,
	CodeMailSendFailed:   KindExternal,
	CodeFederationFailed: KindExternal,
	CodeListingFailed:    KindExternal,
	CodeSwallowedWrite:   KindInternal,
}

// KindOf maps the code carried by err onto the error taxonomy. Repository
// codes ending in _FAILED are storage errors; anything else unrecognised is
// internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	code := errutil.Code(err)
	if k, ok := kindByCode[code]; ok {
		return k
	}
	if strings.HasSuffix(code, "_FAILED") {
		return KindStorage
	}
	if errors.Is(err, ErrNotFound) {
		return KindStorage
	}
	return KindInternal
}

// fail builds a caller-facing error whose message is the reply text.
func fail(code, message string) error {
	return oops.Code(code).Errorf("%s", message)
}

// failWith is fail carrying the error that caused it. The cause is kept as
// context rather than wrapped so the code stays the one given here.
func failWith(code, message string, cause error) error {
	b := oops.Code(code)
	if cause != nil {
		b = b.With("cause", cause.Error())
		if c := errutil.Code(cause); c != "" {
			b = b.With("cause_code", c)
		}
	}
	return b.Errorf("%s", message)
}
