// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package core

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Conn is a live client connection that replies can be written to.
type Conn interface {
	ID() ulid.ULID
	// Send writes one message to the client. It is safe for concurrent use.
	Send(msg any) error
}

// Registry tracks live connections by id so work that completes after the
// originating request returned can find its recipient again, or learn that
// it is gone.
type Registry struct {
	mu    sync.RWMutex
	conns map[ulid.ULID]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[ulid.ULID]Conn)}
}

// Add registers a connection.
func (r *Registry) Add(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.ID()] = c
}

// Remove forgets a connection. Removing an unknown id is a no-op.
func (r *Registry) Remove(id ulid.ULID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Lookup returns the connection with the given id, if it is still open.
func (r *Registry) Lookup(id ulid.ULID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// WhileRegistered runs fn if the connection is registered and keeps it
// registered until fn returns; a concurrent Remove waits for fn. fn must not
// call Add or Remove. It reports whether fn ran.
func (r *Registry) WhileRegistered(id ulid.ULID, fn func()) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.conns[id]; !ok {
		return false
	}
	fn()
	return true
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
