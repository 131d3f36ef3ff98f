// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/beachbev/accountd/internal/account"
)

// MockResetTokenRepository is a mock account.ResetTokenRepository.
type MockResetTokenRepository struct {
	mock.Mock
}

var _ account.ResetTokenRepository = (*MockResetTokenRepository)(nil)

// NewMockResetTokenRepository creates a mock that asserts its expectations on cleanup.
func NewMockResetTokenRepository(t testingT) *MockResetTokenRepository {
	m := &MockResetTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResetTokenRepository) Put(ctx context.Context, tok *account.ResetToken) error {
	return m.Called(ctx, tok).Error(0)
}

func (m *MockResetTokenRepository) GetByDigest(ctx context.Context, digest []byte) (*account.ResetToken, error) {
	args := m.Called(ctx, digest)
	tok, _ := args.Get(0).(*account.ResetToken)
	return tok, args.Error(1)
}

func (m *MockResetTokenRepository) Consume(
	ctx context.Context,
	digest []byte,
	check func(*account.ResetToken) error,
	hash, salt []byte,
) (*account.ResetToken, error) {
	args := m.Called(ctx, digest, check, hash, salt)
	tok, _ := args.Get(0).(*account.ResetToken)
	return tok, args.Error(1)
}

func (m *MockResetTokenRepository) DeleteIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}
