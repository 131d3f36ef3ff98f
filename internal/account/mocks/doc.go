// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package mocks holds testify mocks of the account package interfaces.
package mocks

import "github.com/stretchr/testify/mock"

// testingT is what the constructors need from *testing.T.
type testingT interface {
	mock.TestingT
	Cleanup(func())
}
