// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package wire defines the newline-delimited JSON protocol spoken with
// clients: frame kinds, payloads, the frame codec and payload validation.
package wire

// Kind names a frame's payload type.
type Kind string

// Request kinds.
const (
	KindRegister             Kind = "register"
	KindRenewSession         Kind = "renew_session"
	KindPasswordLogin        Kind = "password_login"
	KindRequestPasswordReset Kind = "request_password_reset"
	KindCheckResetToken      Kind = "check_reset_token"
	KindConsumeResetToken    Kind = "consume_reset_token"
	KindLookupNamePrivileged Kind = "lookup_name_privileged"
	KindLookupOwnName        Kind = "lookup_own_name"
	KindVerifyEmail          Kind = "verify_email"
	KindResendVerification   Kind = "resend_verification"
	KindGetEmailSettings     Kind = "get_email_settings"
	KindRequestResumeAccess  Kind = "request_resume_access"
	KindRequestMasterAccess  Kind = "request_master_resume_access"
	KindHasResume            Kind = "has_resume"
)

// Response kinds. KindHasResume doubles as its own response.
const (
	KindAccountCreated Kind = "account_created"
	KindResetAck       Kind = "reset_ack"
	KindResetCheck     Kind = "reset_check"
	KindNameResult     Kind = "name_result"
	KindEmailAck       Kind = "email_ack"
	KindEmailSettings  Kind = "email_settings"
	KindResumeAccess   Kind = "resume_access"
	KindError          Kind = "error"
)

// requests maps every request kind to a zero value of its payload.
var requests = map[Kind]func() any{
	KindRegister:             func() any { return &RegisterRequest{} },
	KindRenewSession:         func() any { return &RenewSessionRequest{} },
	KindPasswordLogin:        func() any { return &PasswordLoginRequest{} },
	KindRequestPasswordReset: func() any { return &PasswordResetRequest{} },
	KindCheckResetToken:      func() any { return &TokenRequest{} },
	KindConsumeResetToken:    func() any { return &ConsumeResetRequest{} },
	KindLookupNamePrivileged: func() any { return &LookupNameRequest{} },
	KindLookupOwnName:        func() any { return &Empty{} },
	KindVerifyEmail:          func() any { return &TokenRequest{} },
	KindResendVerification:   func() any { return &Empty{} },
	KindGetEmailSettings:     func() any { return &Empty{} },
	KindRequestResumeAccess:  func() any { return &Empty{} },
	KindRequestMasterAccess:  func() any { return &Empty{} },
	KindHasResume:            func() any { return &Empty{} },
}

// IsRequest reports whether clients may send k.
func (k Kind) IsRequest() bool {
	_, ok := requests[k]
	return ok
}

// RequestKinds lists every request kind.
func RequestKinds() []Kind {
	kinds := make([]Kind, 0, len(requests))
	for k := range requests {
		kinds = append(kinds, k)
	}
	return kinds
}
