package job

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"presence-service/internal/config"
	"presence-service/internal/domain"
	"presence-service/internal/metrics"
	"presence-service/internal/repository"
)

const DecayJobName = "decay"

// DecayJob ages learned patterns and memories by half-life. A run is a single
// transaction: either every row and the run record are written, or nothing is.
type DecayJob struct {
	repo     repository.DecayRepository
	cfg      config.DecayConfig
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewDecayJob(repo repository.DecayRepository, cfg config.DecayConfig, notifier Notifier, m *metrics.Metrics, logger *zap.Logger) *DecayJob {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if notifier == nil {
		notifier = NewNotifier(nil, nil, m, logger)
	}
	return &DecayJob{
		repo:     repo,
		cfg:      cfg,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (j *DecayJob) Name() string { return DecayJobName }

func (j *DecayJob) Run(ctx context.Context) (*Result, error) {
	startedAt := j.now()
	j.logger.Info("Starting decay job")

	var (
		summary domain.DecaySummary
		created []*domain.Notification
	)

	err := j.repo.Transaction(ctx, func(tx repository.DecayRepository) error {
		// Reset in case the driver retries the closure.
		created = nil

		patterns, notes, err := j.decayPatterns(ctx, tx, startedAt)
		if err != nil {
			return err
		}
		memories, err := j.decayMemories(ctx, tx, startedAt)
		if err != nil {
			return err
		}
		summary = domain.DecaySummary{Patterns: patterns, Memories: memories}
		created = notes

		data, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		return tx.CreateRun(ctx, &domain.DecayRun{
			StartedAt:  startedAt,
			FinishedAt: j.now(),
			Summary:    datatypes.JSON(data),
		})
	})
	if err != nil {
		j.logger.Error("Decay job failed, transaction rolled back", zap.Error(err))
		return nil, fmt.Errorf("decay: %w", err)
	}

	for _, n := range created {
		j.notifier.NotificationCreated(ctx, n)
	}

	j.metrics.AddDecayRows("pattern", "decayed", summary.Patterns.Decayed)
	j.metrics.AddDecayRows("pattern", "flagged", summary.Patterns.Flagged)
	j.metrics.AddDecayRows("memory", "decayed", summary.Memories.Decayed)
	j.metrics.AddDecayRows("memory", "deleted", summary.Memories.Deleted)

	j.logger.Info("Decay job completed",
		zap.Int("patterns", summary.Patterns.Before.Count),
		zap.Int("patterns_decayed", summary.Patterns.Decayed),
		zap.Int("patterns_flagged", summary.Patterns.Flagged),
		zap.Int("memories", summary.Memories.Before.Count),
		zap.Int("memories_decayed", summary.Memories.Decayed),
		zap.Int("memories_deleted", summary.Memories.Deleted),
	)

	return &Result{
		Processed:            summary.Patterns.Before.Count + summary.Memories.Before.Count,
		NotificationsCreated: len(created),
		Summary:              &summary,
	}, nil
}

func (j *DecayJob) decayPatterns(ctx context.Context, tx repository.DecayRepository, now time.Time) (domain.PatternDecaySummary, []*domain.Notification, error) {
	var (
		out           domain.PatternDecaySummary
		before, after statsAccumulator
		notes         []*domain.Notification
		flaggedUsers  = make(map[uuid.UUID]bool)
	)

	afterID := uuid.Nil
	for {
		batch, err := tx.FindPatterns(ctx, afterID, j.cfg.BatchSize)
		if err != nil {
			return out, nil, fmt.Errorf("load patterns: %w", err)
		}

		for _, p := range batch {
			before.add(p.Confidence)

			elapsed := now.Sub(decayReference(p.CreatedAt, p.UpdatedAt, p.LastDecayedAt))
			next := decayPattern(p.Confidence, elapsed, j.cfg.PatternHalfLife, j.cfg.PatternFloor)
			after.add(next)
			if elapsed <= 0 {
				continue
			}

			flag := !p.NeedsRecalculation && next < j.cfg.PatternFlagThreshold

			if err := tx.UpdatePattern(ctx, p.ID, next, flag, now); err != nil {
				return out, nil, fmt.Errorf("update pattern %s: %w", p.ID, err)
			}
			out.Decayed++

			if !flag {
				continue
			}
			out.Flagged++
			if flaggedUsers[p.UserID] {
				continue
			}
			flaggedUsers[p.UserID] = true

			n := recalculationNotification(p.UserID, now)
			if err := tx.CreateNotification(ctx, n); err != nil {
				return out, nil, fmt.Errorf("create notification: %w", err)
			}
			notes = append(notes, n)
		}

		if len(batch) < j.cfg.BatchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	out.Before = before.stats()
	out.After = after.stats()
	return out, notes, nil
}

func (j *DecayJob) decayMemories(ctx context.Context, tx repository.DecayRepository, now time.Time) (domain.MemoryDecaySummary, error) {
	var (
		out           domain.MemoryDecaySummary
		before, after statsAccumulator
	)

	afterID := uuid.Nil
	for {
		batch, err := tx.FindMemories(ctx, afterID, j.cfg.BatchSize)
		if err != nil {
			return out, fmt.Errorf("load memories: %w", err)
		}

		var doomed []uuid.UUID
		for _, m := range batch {
			before.add(m.Importance)

			elapsed := now.Sub(decayReference(m.CreatedAt, m.UpdatedAt, m.LastDecayedAt))
			if elapsed <= 0 {
				after.add(m.Importance)
				continue
			}

			next := m.Importance * decayFactor(elapsed, j.cfg.MemoryHalfLife)
			if next < j.cfg.MemoryDeleteThreshold {
				doomed = append(doomed, m.ID)
				continue
			}
			after.add(next)

			if err := tx.UpdateMemory(ctx, m.ID, next, now); err != nil {
				return out, fmt.Errorf("update memory %s: %w", m.ID, err)
			}
			out.Decayed++
		}

		deleted, err := tx.DeleteMemories(ctx, doomed)
		if err != nil {
			return out, fmt.Errorf("delete memories: %w", err)
		}
		out.Deleted += int(deleted)

		if len(batch) < j.cfg.BatchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	out.Before = before.stats()
	out.After = after.stats()
	return out, nil
}

func recalculationNotification(userID uuid.UUID, now time.Time) *domain.Notification {
	actionURL := "/clara"
	meta, _ := json.Marshal(map[string]string{"job": DecayJobName})
	return &domain.Notification{
		UserID:    userID,
		Title:     "A Clara precisa rever o que aprendeu",
		Message:   "Algumas preferências que a Clara aprendeu sobre você ficaram desatualizadas. Converse com ela para atualizá-las.",
		Category:  domain.CategoryRecalculation,
		ActionURL: &actionURL,
		Metadata:  datatypes.JSON(meta),
		CreatedAt: now,
	}
}

// decayReference is the instant a weight was last set: the latest of creation,
// explicit update and previous decay.
func decayReference(createdAt, updatedAt time.Time, lastDecayedAt *time.Time) time.Time {
	ref := createdAt
	if updatedAt.After(ref) {
		ref = updatedAt
	}
	if lastDecayedAt != nil && lastDecayedAt.After(ref) {
		ref = *lastDecayedAt
	}
	return ref
}

// decayFactor is 0.5^(elapsed/halfLife).
func decayFactor(elapsed, halfLife time.Duration) float64 {
	if elapsed <= 0 || halfLife <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(elapsed)/float64(halfLife))
}

// decayPattern never raises a confidence and never pushes it below floor.
func decayPattern(confidence float64, elapsed, halfLife time.Duration, floor float64) float64 {
	if confidence <= floor {
		return confidence
	}
	return math.Max(floor, confidence*decayFactor(elapsed, halfLife))
}

type statsAccumulator struct {
	n             int
	sum, min, max float64
}

func (a *statsAccumulator) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.n++
	a.sum += v
}

func (a statsAccumulator) stats() domain.WeightStats {
	if a.n == 0 {
		return domain.WeightStats{}
	}
	return domain.WeightStats{
		Count: a.n,
		Avg:   round4(a.sum / float64(a.n)),
		Min:   round4(a.min),
		Max:   round4(a.max),
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
