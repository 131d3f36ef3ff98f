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

// pendingReset is what a reset request carries across the email send.
type pendingReset struct {
	correlationID ulid.ULID
	connID        ulid.ULID
}

// ResetService issues and consumes single-use password reset tokens.
type ResetService struct {
	flow
	resets   ResetTokenRepository
	resolver *Resolver
	mailer   Mailer
	notifier Notifier
}

// NewResetService creates a ResetService.
func NewResetService(store Store, mailer Mailer, sessions SessionTracker, notifier Notifier, opts ...Option) (*ResetService, error) {
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
	resolver, err := NewResolver(store.Accounts, store.Emails)
	if err != nil {
		return nil, err
	}
	return &ResetService{
		flow:     newFlow(store.Devices, sessions, opts),
		resets:   store.Resets,
		resolver: resolver,
		mailer:   mailer,
		notifier: notifier,
	}, nil
}

// RequestReset stores a reset token for the account owning email and mails
// the secret. A non-nil reply means nothing was sent and the reply is final;
// otherwise the outcome of the send arrives through the Notifier.
//
// A failed send leaves the token in place; it expires on its own.
func (s *ResetService) RequestReset(ctx context.Context, connID ulid.ULID, email string) (*Ack, error) {
	accountID, err := s.resolver.ResolveResetEmail(ctx, email)
	if err != nil {
		if KindOf(err) == KindValidation {
			return &Ack{Message: err.Error()}, err
		}
		return &Ack{Message: MsgResetStoreFailed}, err
	}

	secret, digest, err := token.Generate()
	if err != nil {
		return &Ack{Message: MsgResetStoreFailed}, err
	}
	if err := s.resets.Put(ctx, &ResetToken{
		AccountID: accountID,
		Digest:    digest,
		IssuedAt:  s.now(),
	}); err != nil {
		return &Ack{Message: MsgResetStoreFailed}, oops.Code("RESET_TOKEN_PUT_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}

	p := pendingReset{correlationID: core.NewCorrelationID(), connID: connID}
	s.mailer.SendPasswordReset(context.WithoutCancel(ctx), email, token.Encode(secret), func(sendErr error) {
		s.completeRequest(context.WithoutCancel(ctx), p, sendErr)
	})
	return nil, nil
}

func (s *ResetService) completeRequest(ctx context.Context, p pendingReset, sendErr error) {
	s.metrics.AsyncOutcome("reset_email", sendErr == nil)

	ack := Ack{Success: true, Message: MsgResetSent}
	if sendErr != nil {
		s.logger.WarnContext(ctx, "password reset email failed",
			"correlation_id", p.correlationID.String(),
			"error", sendErr,
		)
		ack = Ack{Message: MsgSendFailed}
	}
	if !s.notifier.NotifyAck(p.connID, AckReset, ack) {
		s.metrics.DroppedReply(AckReset.String())
	}
}

// CheckReset reports whether a reset token is still usable. It never
// consumes the token.
func (s *ResetService) CheckReset(ctx context.Context, encoded string) (Ack, error) {
	if _, err := s.lookup(ctx, encoded); err != nil {
		return Ack{Message: resetFailureMessage(err)}, err
	}
	return Ack{Success: true, Message: MsgValidToken}, nil
}

// ConsumeReset sets a new password with a reset token. The token is removed
// in the same step as the password change and the clearing of every device
// token, so it authorizes at most one change. connID is then logged in on a
// new device.
func (s *ResetService) ConsumeReset(ctx context.Context, connID ulid.ULID, encoded, password string) (Issued, error) {
	if password == "" {
		return issuedFailure(MsgEmptyPassword), fail(CodeValidationFailed, MsgEmptyPassword)
	}

	digest, err := token.DigestEncoded(encoded)
	if err != nil {
		return issuedFailure(MsgInvalidToken), failWith(CodeTokenInvalid, MsgInvalidToken, err)
	}

	hash, salt, err := s.hashPassword(password)
	if err != nil {
		return issuedFailure(MsgSetPasswordFail), oops.Code("PASSWORD_SET_FAILED").Wrap(err)
	}

	rt, err := s.resets.Consume(ctx, digest, s.checkAge, hash, salt)
	switch {
	case errors.Is(err, ErrNotFound):
		return issuedFailure(MsgInvalidToken), fail(CodeTokenInvalid, MsgInvalidToken)
	case KindOf(err) == KindAuthentication:
		return issuedFailure(err.Error()), err
	case err != nil:
		return issuedFailure(MsgSetPasswordFail), oops.Code("PASSWORD_SET_FAILED").Wrap(err)
	}

	deviceID, err := s.allocateDevice(ctx, rt.AccountID)
	if err != nil {
		return issuedFailure(MsgNoToken), err
	}
	return s.grant(ctx, connID, rt.AccountID, deviceID, MsgResetSuccessful)
}

// lookup finds the reset token an encoded secret belongs to and checks its
// age.
func (s *ResetService) lookup(ctx context.Context, encoded string) (*ResetToken, error) {
	digest, err := token.DigestEncoded(encoded)
	if err != nil {
		return nil, failWith(CodeTokenInvalid, MsgInvalidToken, err)
	}
	rt, err := s.resets.GetByDigest(ctx, digest)
	if errors.Is(err, ErrNotFound) {
		return nil, fail(CodeTokenInvalid, MsgInvalidToken)
	}
	if err != nil {
		return nil, oops.Code("RESET_TOKEN_GET_FAILED").Wrap(err)
	}
	if err := s.checkAge(rt); err != nil {
		return nil, err
	}
	return rt, nil
}

func (s *ResetService) checkAge(rt *ResetToken) error {
	if s.expired(rt.IssuedAt) {
		return oops.Code(CodeTokenExpired).
			With("account_id", rt.AccountID).
			With("issued_at", rt.IssuedAt).
			Errorf("%s", MsgTokenExpired)
	}
	return nil
}

func resetFailureMessage(err error) string {
	if KindOf(err) == KindAuthentication {
		return err.Error()
	}
	return MsgInvalidToken
}
