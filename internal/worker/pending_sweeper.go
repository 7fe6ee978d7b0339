package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/observability"
	"github.com/spec-kit/realty-service/internal/repository"
)

// PendingSweeper removes abandoned signups.
type PendingSweeper struct {
	pending   repository.PendingRegistrationRepository
	retention time.Duration
	interval  time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPendingSweeper builds a sweeper. Retention never drops below the code
// lifetime, so a code that can still be verified is never swept.
func NewPendingSweeper(pending repository.PendingRegistrationRepository, retention, interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *PendingSweeper {
	if retention < domain.OTPTTL {
		retention = domain.OTPTTL
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingSweeper{
		pending:   pending,
		retention: retention,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *PendingSweeper) WithClock(now func() time.Time) *PendingSweeper {
	s.now = now
	return s
}

// SweepOnce deletes pending registrations untouched for longer than the retention.
func (s *PendingSweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.pending.DeleteUpdatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSwept(n)
	if n > 0 {
		s.logger.Info("stale pending registrations swept", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Run sweeps every interval until ctx is done.
func (s *PendingSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("pending sweep failed", zap.Error(err))
			}
		}
	}
}
