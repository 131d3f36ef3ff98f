// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mocks

import (
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/beachbev/accountd/internal/account"
)

// MockNotifier is a mock account.Notifier.
type MockNotifier struct {
	mock.Mock
}

var _ account.Notifier = (*MockNotifier)(nil)

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t testingT) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// WhileConnected runs fn when the expectation returns true.
func (m *MockNotifier) WhileConnected(connID ulid.ULID, fn func()) bool {
	ok := m.Called(connID).Bool(0)
	if ok && fn != nil {
		fn()
	}
	return ok
}

func (m *MockNotifier) NotifyIssued(connID ulid.ULID, reply account.Issued) bool {
	return m.Called(connID, reply).Bool(0)
}

func (m *MockNotifier) NotifyAck(connID ulid.ULID, kind account.AckKind, reply account.Ack) bool {
	return m.Called(connID, kind, reply).Bool(0)
}
