// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/beachbev/accountd/internal/account"
)

// MockMasterDirectory is a mock account.MasterDirectory.
type MockMasterDirectory struct {
	mock.Mock
}

var _ account.MasterDirectory = (*MockMasterDirectory)(nil)

// NewMockMasterDirectory creates a mock that asserts its expectations on cleanup.
func NewMockMasterDirectory(t testingT) *MockMasterDirectory {
	m := &MockMasterDirectory{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockMasterDirectory) IsMaster(ctx context.Context, accountID int64) (bool, error) {
	args := m.Called(ctx, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMasterDirectory) Grant(ctx context.Context, accountID int64) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *MockMasterDirectory) Revoke(ctx context.Context, accountID int64) error {
	return m.Called(ctx, accountID).Error(0)
}
