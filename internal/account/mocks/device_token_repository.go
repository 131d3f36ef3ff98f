// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/beachbev/accountd/internal/account"
)

// MockDeviceTokenRepository is a mock account.DeviceTokenRepository.
type MockDeviceTokenRepository struct {
	mock.Mock
}

var _ account.DeviceTokenRepository = (*MockDeviceTokenRepository)(nil)

// NewMockDeviceTokenRepository creates a mock that asserts its expectations on cleanup.
func NewMockDeviceTokenRepository(t testingT) *MockDeviceTokenRepository {
	m := &MockDeviceTokenRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockDeviceTokenRepository) Get(ctx context.Context, accountID int64, deviceID int32) (*account.DeviceToken, error) {
	args := m.Called(ctx, accountID, deviceID)
	tok, _ := args.Get(0).(*account.DeviceToken)
	return tok, args.Error(1)
}

func (m *MockDeviceTokenRepository) Put(ctx context.Context, tok *account.DeviceToken) error {
	return m.Called(ctx, tok).Error(0)
}

func (m *MockDeviceTokenRepository) NextDeviceID(ctx context.Context, accountID int64) (int32, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int32), args.Error(1)
}
