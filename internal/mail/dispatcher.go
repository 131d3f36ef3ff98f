// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mail

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/cloud"
	"github.com/beachbev/accountd/internal/worker"
)

// Submitter schedules a task off the caller's goroutine.
type Submitter interface {
	Submit(ctx context.Context, name string, task worker.Task) error
}

// RetryConfig bounds the retries of a throttled send.
type RetryConfig struct {
	Base     time.Duration `koanf:"base"`
	Attempts uint64        `koanf:"attempts"`
}

// DefaultRetryConfig returns three retries starting at 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Base: 200 * time.Millisecond, Attempts: 3}
}

// Dispatcher implements account.Mailer: it renders messages and sends them
// on a worker pool, then reports the outcome through the done callback.
type Dispatcher struct {
	sender Sender
	pool   Submitter
	links  Links
	retry  RetryConfig
	logger *slog.Logger
}

var _ account.Mailer = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sender Sender, pool Submitter, links Links, retryCfg RetryConfig, logger *slog.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, oops.Errorf("sender is required")
	}
	if pool == nil {
		return nil, oops.Errorf("worker pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if retryCfg.Base <= 0 {
		retryCfg.Base = DefaultRetryConfig().Base
	}
	return &Dispatcher{sender: sender, pool: pool, links: links, retry: retryCfg, logger: logger}, nil
}

// SendVerification implements account.Mailer.
func (d *Dispatcher) SendVerification(ctx context.Context, to, encodedToken string, done func(error)) {
	msg, err := d.links.VerificationMessage(to, encodedToken)
	d.dispatch(ctx, "verification_email", msg, err, done)
}

// SendPasswordReset implements account.Mailer.
func (d *Dispatcher) SendPasswordReset(ctx context.Context, to, encodedToken string, done func(error)) {
	msg, err := d.links.ResetMessage(to, encodedToken)
	d.dispatch(ctx, "reset_email", msg, err, done)
}

// dispatch runs the send on the pool. done is called exactly once: on the
// pool, or on the caller's goroutine when nothing could be scheduled.
func (d *Dispatcher) dispatch(ctx context.Context, name string, msg Message, renderErr error, done func(error)) {
	if renderErr != nil {
		done(renderErr)
		return
	}
	err := d.pool.Submit(ctx, name, func(ctx context.Context) error {
		sendErr := d.send(ctx, msg)
		if sendErr != nil {
			// Replies quote this text; keep it to the provider's code and message.
			sendErr = oops.Code("MAIL_SEND_FAILED").
				With("task", name).
				With("cause", sendErr.Error()).
				Errorf("%s", cloud.ErrorText(sendErr))
		}
		done(sendErr)
		return sendErr
	})
	if err != nil {
		d.logger.WarnContext(ctx, "email not scheduled", "task", name, "error", err)
		done(err)
	}
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	backoff := retry.WithMaxRetries(d.retry.Attempts, retry.NewExponential(d.retry.Base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := d.sender.Send(ctx, msg)
		if err != nil && cloud.IsThrottle(err) {
			d.logger.DebugContext(ctx, "email send throttled, retrying", "subject", msg.Subject)
			return retry.RetryableError(err)
		}
		return err
	})
}
