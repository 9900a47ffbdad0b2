package job

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"presence-service/internal/metrics"
	"presence-service/internal/repository"
)

const PresenceSweepJobName = "presence-sweep"

// PresenceSweeper marks users offline when their tab stopped reporting without
// delivering an unload beacon. last_active_at is left untouched.
type PresenceSweeper struct {
	repo       repository.PresenceRepository
	staleAfter time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewPresenceSweeper(repo repository.PresenceRepository, staleAfter time.Duration, m *metrics.Metrics, logger *zap.Logger) *PresenceSweeper {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &PresenceSweeper{
		repo:       repo,
		staleAfter: staleAfter,
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *PresenceSweeper) Name() string { return PresenceSweepJobName }

func (s *PresenceSweeper) Run(ctx context.Context) (*Result, error) {
	n, err := s.repo.MarkStaleOffline(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PresenceSweepJobName, err)
	}
	if n > 0 {
		s.metrics.AddPresenceMarkedOffline(n)
		s.logger.Info("Marked stale presence offline", zap.Int64("count", n))
	}
	return &Result{Processed: int(n)}, nil
}
