// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/beachbev/accountd/pkg/errutil"
)

// SweeperConfig controls how long reset tokens are kept and how often they
// are purged.
type SweeperConfig struct {
	Retention time.Duration
	Interval  time.Duration
	// OnSwept, if set, receives the count of every successful sweep.
	OnSwept func(n int64)
}

// DefaultSweeperConfig keeps reset tokens for a week and purges hourly.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Retention: 7 * 24 * time.Hour,
		Interval:  time.Hour,
	}
}

// ResetSweeper deletes reset tokens that outlived the retention period.
// Expired tokens never authorize anything; this only keeps the table small.
type ResetSweeper struct {
	cfg    SweeperConfig
	resets ResetTokenRepository
	logger *slog.Logger
	clock  func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewResetSweeper creates a ResetSweeper.
func NewResetSweeper(cfg SweeperConfig, resets ResetTokenRepository, logger *slog.Logger) (*ResetSweeper, error) {
	if resets == nil {
		return nil, oops.Errorf("reset token repository is required")
	}
	if cfg.Interval <= 0 || cfg.Retention <= 0 {
		return nil, oops.With("interval", cfg.Interval).
			With("retention", cfg.Retention).
			Errorf("sweeper interval and retention must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetSweeper{cfg: cfg, resets: resets, logger: logger, clock: time.Now}, nil
}

// RunOnce purges once and returns how many tokens were removed.
func (w *ResetSweeper) RunOnce(ctx context.Context) (int64, error) {
	n, err := w.resets.DeleteIssuedBefore(ctx, w.clock().Add(-w.cfg.Retention))
	if err != nil {
		return 0, oops.Code("RESET_SWEEP_FAILED").Wrap(err)
	}
	if w.cfg.OnSwept != nil {
		w.cfg.OnSwept(n)
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "purged stale reset tokens", "count", n)
	}
	return n, nil
}

// Start begins periodic purging until Stop is called or ctx ends.
func (w *ResetSweeper) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the sweeper and waits for it to exit.
func (w *ResetSweeper) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *ResetSweeper) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			errutil.LogErrorContext(ctx, w.logger, "reset token sweep failed", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
