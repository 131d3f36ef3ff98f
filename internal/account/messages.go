// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

// Reply texts sent to clients. Existing clients match on some of these, so
// their wording (spelling included) is part of the protocol.
const (
	MsgAccountAdded        = "Account Added"
	MsgNameTaken           = "Name already used"
	MsgNameIsEmail         = "Name cannot be a used email"
	MsgEmailTaken          = "Email already used"
	MsgInvalidName         = "Name must be 1 to 50 characters"
	MsgInvalidEmail        = "Invalid email"
	MsgEmptyPassword       = "Password cannot be empty"
	MsgRegistrationFailed  = "Could not create account"
	MsgBindFailed          = "Could not set unverifiedEmail after verification email"
	MsgVerificationSendErr = "Failed to send verification email: "

	MsgLoginSuccessful = "Login successful"
	MsgTokenMismatch   = "Tokens did not match"
	MsgTokenExpired    = "Token expired"
	MsgNoToken         = "Could not aquire a token"
	MsgInvalidLogin    = "Invalid login"
	MsgNoPasswordData  = "Could not get pwd data from database"
	MsgInvalidDevice   = "Invalid device"

	MsgMustUseVerified  = "Must use verified email"
	MsgEmailNotFound    = "Email not found"
	MsgResetStoreFailed = "Failed to set pwdResetToken"
	MsgResetSent        = "Password reset email sent"
	MsgSendFailed       = "Failed to send email"
	MsgValidToken       = "Valid token"
	MsgInvalidToken     = "Invalid token"
	MsgResetSuccessful  = "Successful"
	MsgSetPasswordFail  = "Could not set password"

	MsgEmailVerified       = "Email verified"
	MsgEmailClaimed        = "Email already verified by another account"
	MsgVerificationSent    = "Verification email sent"
	MsgNothingToVerify     = "No unverified email"
	MsgVerificationFailed  = "Failed to set verification token"
	MsgNotLoggedIn         = "Not logged in"
	MsgEmailSettingsFailed = "Could not get email settings"

	// NameError is the sentinel name returned by lookups that fail or are
	// not permitted.
	NameError = "ERROR"
)
