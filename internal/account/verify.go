// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/core"
	"github.com/beachbev/accountd/internal/token"
)

// pendingVerification is what a resend carries across the email send.
type pendingVerification struct {
	correlationID ulid.ULID
	connID        ulid.ULID
	accountID     int64
}

// EmailService verifies email addresses and reports email settings.
type EmailService struct {
	flow
	emails   EmailDirectory
	mailer   Mailer
	notifier Notifier
}

// NewEmailService creates an EmailService.
func NewEmailService(store Store, mailer Mailer, sessions SessionTracker, notifier Notifier, opts ...Option) (*EmailService, error) {
	if err := store.validate(); err != nil {
		return nil, err
	}
	if mailer == nil {
		return nil, oops.Errorf("mailer is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session tracker is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	return &EmailService{
		flow:     newFlow(store.Devices, sessions, opts),
		emails:   store.Emails,
		mailer:   mailer,
		notifier: notifier,
	}, nil
}

// VerifyEmail promotes the unverified email whose verification secret was
// supplied. It needs no login: the secret arrives by email.
func (s *EmailService) VerifyEmail(ctx context.Context, encoded string) (Ack, error) {
	digest, err := token.DigestEncoded(encoded)
	if err != nil {
		return Ack{Message: MsgInvalidToken}, failWith(CodeTokenInvalid, MsgInvalidToken, err)
	}
	v, err := s.emails.VerificationByDigest(ctx, digest)
	if errors.Is(err, ErrNotFound) {
		return Ack{Message: MsgInvalidToken}, fail(CodeTokenInvalid, MsgInvalidToken)
	}
	if err != nil {
		return Ack{Message: MsgInvalidToken}, oops.Code("VERIFICATION_GET_FAILED").Wrap(err)
	}
	if s.expired(v.IssuedAt) {
		return Ack{Message: MsgTokenExpired}, oops.Code(CodeTokenExpired).
			With("account_id", v.AccountID).
			Errorf("%s", MsgTokenExpired)
	}

	if err := s.emails.PromoteVerified(ctx, v.AccountID); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return Ack{Message: MsgEmailClaimed}, failWith(CodeEmailTaken, MsgEmailClaimed, err)
		}
		return Ack{Message: MsgInvalidToken}, oops.Code("VERIFICATION_PROMOTE_FAILED").
			With("account_id", v.AccountID).
			Wrap(err)
	}
	s.logger.InfoContext(ctx, "email verified", "account_id", v.AccountID)
	return Ack{Success: true, Message: MsgEmailVerified}, nil
}

// ResendVerification mails a fresh verification secret for the unverified
// email of the account connID is logged in as. A non-nil reply is final;
// otherwise the outcome arrives through the Notifier.
func (s *EmailService) ResendVerification(ctx context.Context, connID ulid.ULID) (*Ack, error) {
	accountID, ok := s.sessions.AccountOf(connID)
	if !ok {
		return &Ack{Message: MsgNotLoggedIn}, fail(CodeNotLoggedIn, MsgNotLoggedIn)
	}
	binding, err := s.emails.Binding(ctx, accountID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return &Ack{Message: MsgVerificationFailed}, oops.Code("BINDING_GET_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	if binding == nil || binding.Unverified == "" {
		return &Ack{Message: MsgNothingToVerify}, fail(CodeValidationFailed, MsgNothingToVerify)
	}

	secret, digest, err := token.Generate()
	if err != nil {
		return &Ack{Message: MsgVerificationFailed}, err
	}
	if err := s.emails.BindUnverified(ctx, &Verification{
		AccountID: accountID,
		Email:     binding.Unverified,
		Digest:    digest,
		IssuedAt:  s.now(),
	}); err != nil {
		return &Ack{Message: MsgVerificationFailed}, oops.Code("BINDING_PUT_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}

	p := pendingVerification{correlationID: core.NewCorrelationID(), connID: connID, accountID: accountID}
	s.mailer.SendVerification(context.WithoutCancel(ctx), binding.Unverified, token.Encode(secret), func(sendErr error) {
		s.completeResend(context.WithoutCancel(ctx), p, sendErr)
	})
	return nil, nil
}

func (s *EmailService) completeResend(ctx context.Context, p pendingVerification, sendErr error) {
	s.metrics.AsyncOutcome("verification_email", sendErr == nil)

	ack := Ack{Success: true, Message: MsgVerificationSent}
	if sendErr != nil {
		s.logger.WarnContext(ctx, "verification email failed",
			"correlation_id", p.correlationID.String(),
			"account_id", p.accountID,
			"error", sendErr,
		)
		ack = Ack{Message: MsgSendFailed}
	}
	if !s.notifier.NotifyAck(p.connID, AckEmail, ack) {
		s.metrics.DroppedReply(AckEmail.String())
	}
}

// EmailSettings returns the email binding of the account connID is logged in
// as. An account without any binding has empty addresses.
func (s *EmailService) EmailSettings(ctx context.Context, connID ulid.ULID) (EmailBinding, error) {
	accountID, ok := s.sessions.AccountOf(connID)
	if !ok {
		return EmailBinding{}, fail(CodeNotLoggedIn, MsgNotLoggedIn)
	}
	binding, err := s.emails.Binding(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return EmailBinding{AccountID: accountID}, nil
	}
	if err != nil {
		return EmailBinding{}, oops.Code("BINDING_GET_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	return *binding, nil
}
