// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package wire

import "time"

// Empty is the payload of requests that carry nothing.
type Empty struct{}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name     string `json:"name" jsonschema:"maxLength=256"`
	Email    string `json:"email" jsonschema:"maxLength=512"`
	Password string `json:"password" jsonschema:"maxLength=1024"`
}

// RenewSessionRequest trades a device token for a fresh one.
type RenewSessionRequest struct {
	AccountID int64  `json:"account_id" jsonschema:"minimum=1"`
	DeviceID  int32  `json:"device_id" jsonschema:"minimum=1,maximum=1048576"`
	Token     string `json:"token" jsonschema:"maxLength=256"`
}

// PasswordLoginRequest logs in by name or email. DeviceID 0 asks for a new
// device.
type PasswordLoginRequest struct {
	Handle   string `json:"handle" jsonschema:"maxLength=512"`
	Password string `json:"password" jsonschema:"maxLength=1024"`
	DeviceID int32  `json:"device_id,omitempty" jsonschema:"minimum=0,maximum=1048576"`
}

// PasswordResetRequest asks for a reset email.
type PasswordResetRequest struct {
	Email string `json:"email" jsonschema:"maxLength=512"`
}

// TokenRequest carries an emailed token.
type TokenRequest struct {
	Token string `json:"token" jsonschema:"maxLength=256"`
}

// ConsumeResetRequest sets a new password with a reset token.
type ConsumeResetRequest struct {
	Token    string `json:"token" jsonschema:"maxLength=256"`
	Password string `json:"password" jsonschema:"maxLength=1024"`
}

// LookupNameRequest asks for the name of any account.
type LookupNameRequest struct {
	AccountID int64 `json:"account_id" jsonschema:"minimum=1"`
}

// AccountCreated carries a device token. An empty Token means failure,
// explained by Message.
type AccountCreated struct {
	Token     string `json:"token"`
	DeviceID  int32  `json:"device_id"`
	AccountID int64  `json:"account_id"`
	Message   string `json:"message"`
}

// Ack answers reset and email requests.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NameResult answers name lookups.
type NameResult struct {
	Name string `json:"name"`
}

// EmailSettings lists both addresses of an account.
type EmailSettings struct {
	Verified   string `json:"verified"`
	Unverified string `json:"unverified"`
}

// ResumeAccess carries temporary storage credentials.
type ResumeAccess struct {
	Folder          string     `json:"folder,omitempty"`
	AccessKeyID     string     `json:"access_key_id,omitempty"`
	SecretAccessKey string     `json:"secret_access_key,omitempty"`
	SessionToken    string     `json:"session_token,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Message         string     `json:"message,omitempty"`
}

// HasResume answers whether a resume was uploaded.
type HasResume struct {
	HasResume bool `json:"has_resume"`
}

// Error rejects a frame that could not be handled.
type Error struct {
	Message string `json:"message"`
}
