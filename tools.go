// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

//go:build tools

// Package main pins the test and tool dependencies that only build-tagged
// suites import, so go mod tidy keeps them.
package main

import (
	_ "github.com/onsi/ginkgo/v2/ginkgo"
	_ "github.com/onsi/gomega"
	_ "github.com/testcontainers/testcontainers-go/modules/postgres"
)
