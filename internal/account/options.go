// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/token"
	"github.com/beachbev/accountd/pkg/errutil"
)

// Option configures a service.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	metrics     Metrics
	now         func() time.Time
	tokenWindow time.Duration
	hasher      PasswordHasher
	throttle    *Throttle
}

func defaultOptions() options {
	return options{
		logger:      slog.New(slog.DiscardHandler),
		metrics:     nopMetrics{},
		now:         time.Now,
		tokenWindow: DefaultTokenWindow,
		hasher:      token.DefaultArgon2id,
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink. Nil is ignored.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTokenWindow sets how long device and reset tokens stay valid.
func WithTokenWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tokenWindow = d
		}
	}
}

// WithHasher sets the password hasher.
func WithHasher(h PasswordHasher) Option {
	return func(o *options) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithThrottle enables the password login throttle.
func WithThrottle(t *Throttle) Option {
	return func(o *options) { o.throttle = t }
}

// flow carries what every service shares: options and the helpers that
// issue device tokens and account for swallowed writes.
type flow struct {
	options
	devices  DeviceTokenRepository
	sessions SessionTracker
}

func newFlow(devices DeviceTokenRepository, sessions SessionTracker, opts []Option) flow {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return flow{options: o, devices: devices, sessions: sessions}
}

// expired reports whether a token issued at issuedAt is outside the window.
// A token exactly at the window edge is still valid.
func (f *flow) expired(issuedAt time.Time) bool {
	return f.now().Sub(issuedAt) > f.tokenWindow
}

// swallow records a failed write that the flow carries on from as if it had
// succeeded.
func (f *flow) swallow(ctx context.Context, operation string, err error) {
	swallowed := oops.Code(CodeSwallowedWrite).
		With("operation", operation).
		With("cause", err.Error()).
		With("cause_code", errutil.Code(err)).
		Errorf("write failed, continuing: %s", operation)
	errutil.LogErrorContext(ctx, f.logger, "swallowed write", swallowed)
	f.metrics.SwallowedWrite(operation)
}

// issue mints a token for a device and stores its digest. A failed store is
// swallowed: the client still gets the token, which will not renew.
func (f *flow) issue(ctx context.Context, accountID int64, deviceID int32) (string, error) {
	secret, digest, err := token.Generate()
	if err != nil {
		return "", err
	}
	if err := f.devices.Put(ctx, &DeviceToken{
		AccountID: accountID,
		DeviceID:  deviceID,
		Digest:    digest,
		IssuedAt:  f.now(),
	}); err != nil {
		f.swallow(ctx, "put_device_token", err)
	}
	return token.Encode(secret), nil
}

// allocateDevice returns the next device id of an account, or FirstDevice
// when the store fails. Running out of ids is an error: falling back would
// overwrite the token of device 1.
func (f *flow) allocateDevice(ctx context.Context, accountID int64) (int32, error) {
	id, err := f.devices.NextDeviceID(ctx, accountID)
	switch {
	case errors.Is(err, ErrDevicesExhausted), err == nil && id > MaxDeviceID:
		return 0, oops.Code(CodeValidationFailed).
			With("account_id", accountID).
			With("next_device_id", id).
			Wrap(ErrDevicesExhausted)
	case err != nil:
		f.swallow(ctx, "allocate_device_id", err)
		return FirstDevice, nil
	}
	return id, nil
}

// hashPassword salts and hashes a new password.
func (f *flow) hashPassword(password string) (hash, salt []byte, err error) {
	salt, err = token.NewSalt()
	if err != nil {
		return nil, nil, err
	}
	return f.hasher.Hash(password, salt), salt, nil
}

// grant rotates the device token and logs the connection in.
func (f *flow) grant(ctx context.Context, connID ulid.ULID, accountID int64, deviceID int32, message string) (Issued, error) {
	encoded, err := f.issue(ctx, accountID, deviceID)
	if err != nil {
		return issuedFailure(MsgNoToken), err
	}
	f.sessions.Login(accountID, connID)
	f.logger.DebugContext(ctx, "connection logged in",
		"account_id", accountID,
		"device_id", deviceID,
	)
	return Issued{
		AccountID: accountID,
		DeviceID:  deviceID,
		Token:     encoded,
		Message:   message,
	}, nil
}
