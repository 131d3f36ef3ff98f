// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package gateway

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/resume"
)

// mockServices implements every service interface the gateway dispatches to.
type mockServices struct {
	mock.Mock
}

func (m *mockServices) services() Services {
	return Services{
		Registration: m,
		Sessions:     m,
		Resets:       m,
		Emails:       m,
		Lookups:      m,
		Resume:       m,
	}
}

func issuedPtr(v any) *account.Issued {
	if v == nil {
		return nil
	}
	return v.(*account.Issued)
}

func ackPtr(v any) *account.Ack {
	if v == nil {
		return nil
	}
	return v.(*account.Ack)
}

func (m *mockServices) Register(ctx context.Context, connID ulid.ULID, name, email, password string) (*account.Issued, error) {
	args := m.Called(ctx, connID, name, email, password)
	return issuedPtr(args.Get(0)), args.Error(1)
}

func (m *mockServices) Renew(ctx context.Context, connID ulid.ULID, accountID int64, deviceID int32, encoded string) (account.Issued, error) {
	args := m.Called(ctx, connID, accountID, deviceID, encoded)
	return args.Get(0).(account.Issued), args.Error(1)
}

func (m *mockServices) PasswordLogin(ctx context.Context, connID ulid.ULID, handle, password string, deviceID int32) (account.Issued, error) {
	args := m.Called(ctx, connID, handle, password, deviceID)
	return args.Get(0).(account.Issued), args.Error(1)
}

func (m *mockServices) RequestReset(ctx context.Context, connID ulid.ULID, email string) (*account.Ack, error) {
	args := m.Called(ctx, connID, email)
	return ackPtr(args.Get(0)), args.Error(1)
}

func (m *mockServices) CheckReset(ctx context.Context, encoded string) (account.Ack, error) {
	args := m.Called(ctx, encoded)
	return args.Get(0).(account.Ack), args.Error(1)
}

func (m *mockServices) ConsumeReset(ctx context.Context, connID ulid.ULID, encoded, password string) (account.Issued, error) {
	args := m.Called(ctx, connID, encoded, password)
	return args.Get(0).(account.Issued), args.Error(1)
}

func (m *mockServices) VerifyEmail(ctx context.Context, encoded string) (account.Ack, error) {
	args := m.Called(ctx, encoded)
	return args.Get(0).(account.Ack), args.Error(1)
}

func (m *mockServices) ResendVerification(ctx context.Context, connID ulid.ULID) (*account.Ack, error) {
	args := m.Called(ctx, connID)
	return ackPtr(args.Get(0)), args.Error(1)
}

func (m *mockServices) EmailSettings(ctx context.Context, connID ulid.ULID) (account.EmailBinding, error) {
	args := m.Called(ctx, connID)
	return args.Get(0).(account.EmailBinding), args.Error(1)
}

func (m *mockServices) LookupNameByIDPrivileged(ctx context.Context, connID ulid.ULID, accountID int64) (string, error) {
	args := m.Called(ctx, connID, accountID)
	return args.String(0), args.Error(1)
}

func (m *mockServices) LookupOwnName(ctx context.Context, connID ulid.ULID) (string, error) {
	args := m.Called(ctx, connID)
	return args.String(0), args.Error(1)
}

func (m *mockServices) RequestAccess(ctx context.Context, connID ulid.ULID) (*resume.Access, error) {
	args := m.Called(ctx, connID)
	if v := args.Get(0); v != nil {
		return v.(*resume.Access), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockServices) RequestMasterAccess(ctx context.Context, connID ulid.ULID) (*resume.Access, error) {
	args := m.Called(ctx, connID)
	if v := args.Get(0); v != nil {
		return v.(*resume.Access), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockServices) HasResume(ctx context.Context, connID ulid.ULID) (*bool, error) {
	args := m.Called(ctx, connID)
	if v := args.Get(0); v != nil {
		return v.(*bool), args.Error(1)
	}
	return nil, args.Error(1)
}

// recordingMetrics captures gateway metrics.
type recordingMetrics struct {
	mu       sync.Mutex
	requests []string
	open     int
	opened   int
}

func (r *recordingMetrics) Request(kind, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, kind+":"+status)
}

func (r *recordingMetrics) ConnectionOpened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open++
	r.opened++
}

func (r *recordingMetrics) ConnectionClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open--
}

func (r *recordingMetrics) snapshot() (requests []string, open, opened int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...), r.open, r.opened
}
