// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package worker runs asynchronous collaborator calls on a bounded set of
// goroutines.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds concurrent tasks when no limit is configured.
const DefaultLimit = 32

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = oops.Code("POOL_CLOSED").Errorf("worker pool is closed")

// Task is one unit of asynchronous work. Its context is never the request
// context: tasks outlive the connection that scheduled them.
type Task func(ctx context.Context) error

// Pool runs tasks with bounded concurrency. Submit blocks while the pool is
// full.
type Pool struct {
	group  errgroup.Group
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a pool running at most limit tasks at once.
func New(limit int, logger *slog.Logger) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{logger: logger}
	p.group.SetLimit(limit)
	return p
}

// Submit schedules task under a context detached from ctx's cancellation.
// Errors and panics from the task are logged, never propagated.
func (p *Pool) Submit(ctx context.Context, name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	detached := context.WithoutCancel(ctx)
	p.group.Go(func() error {
		p.run(detached, name, task)
		return nil
	})
	return nil
}

func (p *Pool) run(ctx context.Context, name string, task Task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "task panicked", "task", name, "panic", r)
		}
	}()
	if err := task(ctx); err != nil {
		p.logger.WarnContext(ctx, "task failed", "task", name, "error", err, "duration", time.Since(start))
		return
	}
	p.logger.DebugContext(ctx, "task finished", "task", name, "duration", time.Since(start))
}

// Shutdown stops accepting tasks and waits for running ones until ctx is
// done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait() //nolint:errcheck // tasks never return errors to the group
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("POOL_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}
