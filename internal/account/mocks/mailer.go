// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/beachbev/accountd/internal/account"
)

// MockMailer is a mock account.Mailer. Tests complete a send by calling the
// done callback from a Run function.
type MockMailer struct {
	mock.Mock
}

var _ account.Mailer = (*MockMailer)(nil)

// NewMockMailer creates a mock that asserts its expectations on cleanup.
func NewMockMailer(t testingT) *MockMailer {
	m := &MockMailer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockMailer) SendVerification(ctx context.Context, to, encodedToken string, done func(error)) {
	m.Called(ctx, to, encodedToken, done)
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, to, encodedToken string, done func(error)) {
	m.Called(ctx, to, encodedToken, done)
}

// Complete returns a Run function that calls the done callback with err.
func Complete(err error) func(mock.Arguments) {
	return func(args mock.Arguments) {
		args.Get(3).(func(error))(err)
	}
}
