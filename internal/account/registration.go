// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/core"
	"github.com/beachbev/accountd/internal/token"
	"github.com/beachbev/accountd/pkg/errutil"
)

// RegistrationState is a step of the registration saga.
type RegistrationState string

// Registration saga states. A registration ends Finalized, RolledBack, or
// at EmailSent when the email went out but the binding could not be stored.
const (
	StateRequested                 RegistrationState = "requested"
	StateProvisionalAccountCreated RegistrationState = "provisional_account_created"
	StateEmailSent                 RegistrationState = "email_sent"
	StateFinalized                 RegistrationState = "finalized"
	StateRolledBack                RegistrationState = "rolled_back"
)

// PendingRegistration is what a registration carries across the email send.
// It holds values only; the connection is looked up again on completion.
type PendingRegistration struct {
	CorrelationID ulid.ULID
	ConnID        ulid.ULID
	AccountID     int64
	DeviceID      int32
	Token         string
	Email         string
	VerifyDigest  []byte
	IssuedAt      time.Time
}

// RegistrationService creates accounts. The account is provisional until the
// verification email has been delivered and is deleted again if delivery
// fails.
type RegistrationService struct {
	flow
	accounts AccountRepository
	emails   EmailDirectory
	resolver *Resolver
	mailer   Mailer
	notifier Notifier
}

// NewRegistrationService creates a RegistrationService.
func NewRegistrationService(store Store, mailer Mailer, sessions SessionTracker, notifier Notifier, opts ...Option) (*RegistrationService, error) {
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
	return &RegistrationService{
		flow:     newFlow(store.Devices, sessions, opts),
		accounts: store.Accounts,
		emails:   store.Emails,
		resolver: resolver,
		mailer:   mailer,
		notifier: notifier,
	}, nil
}

// Register starts a registration for connID. A non-nil reply means the
// request failed before anything was scheduled and the reply is final.
// Otherwise the reply arrives later through the Notifier.
func (s *RegistrationService) Register(ctx context.Context, connID ulid.ULID, name, email, password string) (*Issued, error) {
	p := PendingRegistration{
		CorrelationID: core.NewCorrelationID(),
		ConnID:        connID,
		Email:         email,
		DeviceID:      FirstDevice,
	}
	s.transition(ctx, p, StateRequested)

	if err := validateRegistration(name, email, password); err != nil {
		return s.reject(err.Error(), err)
	}
	if err := s.resolver.CheckAvailable(ctx, name, email); err != nil {
		if KindOf(err) == KindValidation {
			return s.reject(err.Error(), err)
		}
		return s.reject(MsgRegistrationFailed, err)
	}

	id, err := s.accounts.Create(ctx, name)
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return s.reject(MsgNameTaken, failWith(CodeNameTaken, MsgNameTaken, err))
		}
		return s.reject(MsgRegistrationFailed, err)
	}
	p.AccountID = id
	s.transition(ctx, p, StateProvisionalAccountCreated)

	hash, salt, err := s.hashPassword(password)
	if err == nil {
		err = s.accounts.SetPassword(ctx, id, hash, salt)
	}
	if err != nil {
		s.swallow(ctx, "set_password", err)
	}

	p.Token, err = s.issue(ctx, id, p.DeviceID)
	if err != nil {
		s.rollback(ctx, p)
		return s.reject(MsgRegistrationFailed, err)
	}

	secret, digest, err := token.Generate()
	if err != nil {
		s.rollback(ctx, p)
		return s.reject(MsgRegistrationFailed, err)
	}
	p.VerifyDigest = digest
	p.IssuedAt = s.now()

	s.mailer.SendVerification(context.WithoutCancel(ctx), email, token.Encode(secret), func(sendErr error) {
		s.complete(context.WithoutCancel(ctx), p, sendErr)
	})
	return nil, nil
}

// complete finishes a registration once the email provider answered.
func (s *RegistrationService) complete(ctx context.Context, p PendingRegistration, sendErr error) {
	s.metrics.AsyncOutcome("verification_email", sendErr == nil)

	if sendErr != nil {
		s.rollback(ctx, p)
		s.logger.WarnContext(ctx, "verification email failed, registration rolled back",
			"correlation_id", p.CorrelationID.String(),
			"account_id", p.AccountID,
			"error", sendErr,
		)
		s.reply(p, issuedFailure(MsgVerificationSendErr+sendErr.Error()))
		return
	}
	s.transition(ctx, p, StateEmailSent)

	if err := s.emails.BindUnverified(ctx, &Verification{
		AccountID: p.AccountID,
		Email:     p.Email,
		Digest:    p.VerifyDigest,
		IssuedAt:  p.IssuedAt,
	}); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "binding unverified email failed", oops.
			With("correlation_id", p.CorrelationID.String()).
			With("account_id", p.AccountID).
			Wrap(err))
		s.reply(p, issuedFailure(MsgBindFailed))
		return
	}
	s.transition(ctx, p, StateFinalized)

	// A connection that closes concurrently has its login undone by its own
	// disconnect, which runs after the registry lets go of it.
	s.notifier.WhileConnected(p.ConnID, func() {
		s.sessions.Login(p.AccountID, p.ConnID)
	})
	s.reply(p, Issued{
		AccountID: p.AccountID,
		DeviceID:  p.DeviceID,
		Token:     p.Token,
		Message:   MsgAccountAdded,
	})
}

// rollback is the compensating action of the saga. A failed delete is only
// logged.
func (s *RegistrationService) rollback(ctx context.Context, p PendingRegistration) {
	if err := s.accounts.Delete(ctx, p.AccountID); err != nil {
		s.swallow(ctx, "compensating_delete", err)
	}
	s.transition(ctx, p, StateRolledBack)
}

func (s *RegistrationService) reply(p PendingRegistration, reply Issued) {
	if !s.notifier.NotifyIssued(p.ConnID, reply) {
		s.metrics.DroppedReply("account_created")
		s.logger.Debug("registration reply dropped, connection gone",
			"correlation_id", p.CorrelationID.String(),
			"conn_id", p.ConnID.String(),
		)
	}
}

func (s *RegistrationService) reject(message string, err error) (*Issued, error) {
	reply := issuedFailure(message)
	return &reply, err
}

func (s *RegistrationService) transition(ctx context.Context, p PendingRegistration, state RegistrationState) {
	s.metrics.RegistrationState(state)
	s.logger.DebugContext(ctx, "registration state",
		"correlation_id", p.CorrelationID.String(),
		"account_id", p.AccountID,
		"state", string(state),
	)
}
