// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/account/mocks"
	"github.com/beachbev/accountd/internal/core"
	"github.com/beachbev/accountd/pkg/errutil"
)

func TestNewRegistrationService_NilDependencies(t *testing.T) {
	m := newMockStore(t)
	sessions := core.NewSessionManager()

	tests := []struct {
		name        string
		mailer      account.Mailer
		sessions    account.SessionTracker
		notifier    account.Notifier
		expectError string
	}{
		{"nil mailer", nil, sessions, mocks.NewMockNotifier(t), "mailer is required"},
		{"nil session tracker", mocks.NewMockMailer(t), nil, mocks.NewMockNotifier(t), "session tracker is required"},
		{"nil notifier", mocks.NewMockMailer(t), sessions, nil, "notifier is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := account.NewRegistrationService(m.store(), tt.mailer, tt.sessions, tt.notifier)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

// expectAvailable sets up the collision checks of a registration to pass.
func expectAvailable(m *mockStore, name, email string) {
	m.accounts.On("IDByName", mock.Anything, name).Return(int64(0), account.ErrNotFound)
	for _, e := range []string{name, email} {
		m.emails.On("AccountByVerified", mock.Anything, e).Return(int64(0), account.ErrNotFound)
		m.emails.On("AccountByUnverified", mock.Anything, e).Return(int64(0), account.ErrNotFound)
	}
}

func TestRegistrationService_Register_Validation(t *testing.T) {
	tests := []struct {
		name, regName, email, password, message string
	}{
		{"empty name", "", "a@x.com", "pw", account.MsgInvalidName},
		{"long name", string(make([]byte, account.MaxNameLength+1)), "a@x.com", "pw", account.MsgInvalidName},
		{"email without at", "bob", "bobx.com", "pw", account.MsgInvalidEmail},
		{"empty password", "bob", "a@x.com", "", account.MsgEmptyPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockStore(t)
			svc, err := account.NewRegistrationService(m.store(), mocks.NewMockMailer(t),
				core.NewSessionManager(), mocks.NewMockNotifier(t))
			require.NoError(t, err)

			reply, err := svc.Register(context.Background(), core.NewConnID(), tt.regName, tt.email, tt.password)
			errutil.AssertErrorCode(t, err, account.CodeValidationFailed)
			require.NotNil(t, reply)
			assert.Equal(t, tt.message, reply.Message)
		})
	}
}

func TestRegistrationService_Register_ConcurrentNameInsert(t *testing.T) {
	m := newMockStore(t)
	expectAvailable(m, "bob", "bob@x.com")
	m.accounts.On("Create", mock.Anything, "bob").Return(int64(0), account.ErrDuplicate)

	svc, err := account.NewRegistrationService(m.store(), mocks.NewMockMailer(t),
		core.NewSessionManager(), mocks.NewMockNotifier(t))
	require.NoError(t, err)

	reply, err := svc.Register(context.Background(), core.NewConnID(), "bob", "bob@x.com", "pw")
	errutil.AssertErrorCode(t, err, account.CodeNameTaken)
	require.NotNil(t, reply)
	assert.Equal(t, account.MsgNameTaken, reply.Message)
}

func TestRegistrationService_Register_BindFailureKeepsAccount(t *testing.T) {
	m := newMockStore(t)
	expectAvailable(m, "bob", "bob@x.com")
	m.accounts.On("Create", mock.Anything, "bob").Return(int64(11), nil)
	m.accounts.On("SetPassword", mock.Anything, int64(11), mock.Anything, mock.Anything).Return(nil)
	m.devices.On("Put", mock.Anything, mock.AnythingOfType("*account.DeviceToken")).Return(nil)
	m.emails.On("BindUnverified", mock.Anything, mock.AnythingOfType("*account.Verification")).Return(assert.AnError)

	mailer := mocks.NewMockMailer(t)
	mailer.On("SendVerification", mock.Anything, "bob@x.com", mock.Anything, mock.Anything).
		Run(mocks.Complete(nil))

	conn := core.NewConnID()
	notifier := mocks.NewMockNotifier(t)
	notifier.On("NotifyIssued", conn, account.Issued{Message: account.MsgBindFailed}).Return(true)

	sessions := core.NewSessionManager()
	svc, err := account.NewRegistrationService(m.store(), mailer, sessions, notifier, account.WithHasher(testHasher))
	require.NoError(t, err)

	reply, err := svc.Register(context.Background(), conn, "bob", "bob@x.com", "pw")
	require.NoError(t, err)
	assert.Nil(t, reply)

	m.accounts.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	_, loggedIn := sessions.AccountOf(conn)
	assert.False(t, loggedIn)
}

func TestRegistrationService_Register_SendFailure(t *testing.T) {
	m := newMockStore(t)
	expectAvailable(m, "bob", "bob@x.com")
	m.accounts.On("Create", mock.Anything, "bob").Return(int64(11), nil)
	m.accounts.On("SetPassword", mock.Anything, int64(11), mock.Anything, mock.Anything).Return(assert.AnError)
	m.devices.On("Put", mock.Anything, mock.AnythingOfType("*account.DeviceToken")).Return(nil)
	m.accounts.On("Delete", mock.Anything, int64(11)).Return(assert.AnError)

	mailer := mocks.NewMockMailer(t)
	mailer.On("SendVerification", mock.Anything, "bob@x.com", mock.Anything, mock.Anything).
		Run(mocks.Complete(assert.AnError))

	conn := core.NewConnID()
	notifier := mocks.NewMockNotifier(t)
	notifier.On("NotifyIssued", conn, account.Issued{Message: account.MsgVerificationSendErr + assert.AnError.Error()}).
		Return(false)

	metrics := &recordingMetrics{}
	svc, err := account.NewRegistrationService(m.store(), mailer, core.NewSessionManager(), notifier,
		account.WithHasher(testHasher), account.WithMetrics(metrics))
	require.NoError(t, err)

	reply, err := svc.Register(context.Background(), conn, "bob", "bob@x.com", "pw")
	require.NoError(t, err)
	assert.Nil(t, reply)

	assert.Equal(t, []string{"set_password", "compensating_delete"}, metrics.swallowed)
	assert.Equal(t, []string{"account_created"}, metrics.dropped)
	assert.Equal(t, account.StateRolledBack, metrics.states[len(metrics.states)-1])
}
