// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new ULID. IDs minted in the same millisecond still sort
// in creation order.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// NewConnID identifies an accepted connection for its whole lifetime.
func NewConnID() ulid.ULID { return NewULID() }

// NewCorrelationID identifies one logical operation across an async boundary.
func NewCorrelationID() ulid.ULID { return NewULID() }
