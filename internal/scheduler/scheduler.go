// Package scheduler runs periodic maintenance over bookings.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type bookingExpirer interface {
	ExpireStale(ctx context.Context, batchSize int) (int, error)
}

// Scheduler cancels pending bookings whose scheduled time has passed
// without a provider.
type Scheduler struct {
	bookings  bookingExpirer
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

const (
	defaultInterval  = time.Minute
	defaultBatchSize = 100
)

// New creates a Scheduler. Non-positive settings fall back to the defaults.
func New(bookings bookingExpirer, interval time.Duration, batchSize int, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Scheduler{
		bookings:  bookings,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick drains full batches so a backlog clears in one run.
func (s *Scheduler) tick(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := s.bookings.ExpireStale(ctx, s.batchSize)
		if err != nil {
			s.logger.Error("failed to expire stale bookings", zap.Error(err))
			return
		}
		if n < s.batchSize {
			return
		}
	}
}
