package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"presence-service/internal/domain"
	"presence-service/internal/metrics"
	"presence-service/internal/repository"
)

// UserContext is everything a rule may look at for one candidate.
type UserContext struct {
	UserID uuid.UUID
	// Reference is the timestamp that made the user a candidate.
	Reference           time.Time
	Now                 time.Time
	Score               float64
	HasScore            bool
	UnreadOpportunities int64
}

// DaysSince returns whole days between Reference and Now.
func (u UserContext) DaysSince() int {
	return int(u.Now.Sub(u.Reference).Hours() / 24)
}

type Template struct {
	Title     string
	Message   string
	ActionURL string
}

// Rule is one row of a scanner's rule table. Rules are evaluated in order and
// the first match decides the notification.
type Rule struct {
	Name     string
	Matches  func(UserContext) bool
	Template func(UserContext) Template
}

func always(UserContext) bool { return true }

// CandidateFunc returns up to limit candidates whose reference time is strictly
// before cutoff, ordered by user id and starting after afterUserID.
type CandidateFunc func(ctx context.Context, cutoff time.Time, afterUserID uuid.UUID, limit int) ([]UserContext, error)

// EnrichFunc fills rule inputs that are not part of the candidate query.
type EnrichFunc func(ctx context.Context, uc *UserContext) error

// Scanner finds users matching a staleness condition and sends each at most one
// notification per cooldown window.
type Scanner struct {
	name         string
	category     domain.NotificationCategory
	titlePattern string
	threshold    time.Duration
	cooldown     time.Duration
	batchSize    int

	candidates    CandidateFunc
	enrich        EnrichFunc
	rules         []Rule
	notifications repository.NotificationRepository
	notifier      Notifier
	metrics       *metrics.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

func (s *Scanner) Name() string { return s.name }

// Run scans every candidate once. A failing candidate is logged and skipped;
// only failures to page through candidates abort the run.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	now := s.now()
	cutoff := now.Add(-s.threshold)
	cooldownSince := now.Add(-s.cooldown)

	s.logger.Info("Starting scanner",
		zap.String("job", s.name),
		zap.Time("cutoff", cutoff),
	)

	result := &Result{}
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.candidates(ctx, cutoff, after, s.batchSize)
		if err != nil {
			s.logger.Error("Failed to load candidates", zap.String("job", s.name), zap.Error(err))
			return result, fmt.Errorf("%s: load candidates: %w", s.name, err)
		}

		for i := range batch {
			uc := batch[i]
			uc.Now = now
			result.Processed++

			created, err := s.process(ctx, uc, cooldownSince)
			if err != nil {
				result.Failed++
				s.logger.Warn("Failed to process candidate",
					zap.String("job", s.name),
					zap.String("user_id", uc.UserID.String()),
					zap.Error(err),
				)
				continue
			}
			if created {
				result.NotificationsCreated++
			}
		}

		if len(batch) < s.batchSize {
			break
		}
		after = batch[len(batch)-1].UserID
	}

	s.metrics.AddJobItems(s.name, result.Processed, result.Failed)
	s.logger.Info("Scanner completed",
		zap.String("job", s.name),
		zap.Int("processed", result.Processed),
		zap.Int("notifications_created", result.NotificationsCreated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Scanner) process(ctx context.Context, uc UserContext, cooldownSince time.Time) (bool, error) {
	exists, err := s.notifications.ExistsRecent(ctx, uc.UserID, s.category, s.titlePattern, cooldownSince)
	if err != nil {
		return false, fmt.Errorf("check recent notification: %w", err)
	}
	if exists {
		return false, nil
	}

	if s.enrich != nil {
		if err := s.enrich(ctx, &uc); err != nil {
			return false, fmt.Errorf("enrich: %w", err)
		}
	}

	rule, ok := s.match(uc)
	if !ok {
		return false, nil
	}
	tpl := rule.Template(uc)

	meta, err := json.Marshal(map[string]interface{}{
		"rule":       rule.Name,
		"days_since": uc.DaysSince(),
		"job":        s.name,
	})
	if err != nil {
		return false, err
	}

	notification := &domain.Notification{
		UserID:    uc.UserID,
		Title:     tpl.Title,
		Message:   tpl.Message,
		Category:  s.category,
		Metadata:  datatypes.JSON(meta),
		CreatedAt: uc.Now,
	}
	if tpl.ActionURL != "" {
		notification.ActionURL = &tpl.ActionURL
	}

	if err := s.notifications.Create(ctx, notification); err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	s.notifier.NotificationCreated(ctx, notification)
	return true, nil
}

func (s *Scanner) match(uc UserContext) (Rule, bool) {
	for _, r := range s.rules {
		if r.Matches(uc) {
			return r, true
		}
	}
	return Rule{}, false
}
