// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/beachbev/accountd/internal/account"
)

// MockAccountRepository is a mock account.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

var _ account.AccountRepository = (*MockAccountRepository)(nil)

// NewMockAccountRepository creates a mock that asserts its expectations on cleanup.
func NewMockAccountRepository(t testingT) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccountRepository) IDByName(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) NameByID(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockAccountRepository) Credentials(ctx context.Context, id int64) (account.Credentials, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(account.Credentials), args.Error(1)
}

func (m *MockAccountRepository) SetPassword(ctx context.Context, id int64, hash, salt []byte) error {
	return m.Called(ctx, id, hash, salt).Error(0)
}
