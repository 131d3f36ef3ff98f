// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/beachbev/accountd/internal/account"
)

// MockEmailDirectory is a mock account.EmailDirectory.
type MockEmailDirectory struct {
	mock.Mock
}

var _ account.EmailDirectory = (*MockEmailDirectory)(nil)

// NewMockEmailDirectory creates a mock that asserts its expectations on cleanup.
func NewMockEmailDirectory(t testingT) *MockEmailDirectory {
	m := &MockEmailDirectory{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockEmailDirectory) AccountByVerified(ctx context.Context, email string) (int64, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEmailDirectory) AccountByUnverified(ctx context.Context, email string) (int64, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEmailDirectory) Binding(ctx context.Context, accountID int64) (*account.EmailBinding, error) {
	args := m.Called(ctx, accountID)
	b, _ := args.Get(0).(*account.EmailBinding)
	return b, args.Error(1)
}

func (m *MockEmailDirectory) BindUnverified(ctx context.Context, v *account.Verification) error {
	return m.Called(ctx, v).Error(0)
}

func (m *MockEmailDirectory) VerificationByDigest(ctx context.Context, digest []byte) (*account.Verification, error) {
	args := m.Called(ctx, digest)
	v, _ := args.Get(0).(*account.Verification)
	return v, args.Error(1)
}

func (m *MockEmailDirectory) PromoteVerified(ctx context.Context, accountID int64) error {
	return m.Called(ctx, accountID).Error(0)
}
