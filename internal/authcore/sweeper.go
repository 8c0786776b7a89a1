package authcore

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RefreshTokenSweeper periodically deletes expired refresh token records so
// abandoned sessions do not accumulate. Live tokens are untouched; a swept
// token was past its expiry and would have been rejected anyway.
type RefreshTokenSweeper struct {
	store    RefreshTokenStore
	interval time.Duration
	clock    Clock
	logger   *zap.Logger
}

// NewRefreshTokenSweeper constructs a sweeper. A non-positive interval
// falls back to one hour.
func NewRefreshTokenSweeper(store RefreshTokenStore, interval time.Duration, clock Clock, logger *zap.Logger) *RefreshTokenSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshTokenSweeper{
		store:    store,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (sweeper *RefreshTokenSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweeper.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single expiry pass.
func (sweeper *RefreshTokenSweeper) SweepOnce(ctx context.Context) {
	removed, sweepErr := sweeper.store.DeleteExpiredBefore(ctx, sweeper.clock.Now())
	if sweepErr != nil {
		sweeper.logger.Error("refresh token sweep failed", zap.Error(sweepErr))
		return
	}
	if removed > 0 {
		sweeper.logger.Info("swept expired refresh tokens", zap.Int64("removed", removed))
	}
}
