package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"presence-service/internal/client"
	"presence-service/internal/domain"
	"presence-service/internal/events"
	"presence-service/internal/metrics"
	"presence-service/internal/repository"
	"presence-service/internal/response"
)

// ErrInvalidStatus is returned for a status outside online, away and offline.
var ErrInvalidStatus = response.NewValidationError("Invalid status", "status must be one of online, away, offline")

const (
	maxPagePathLen  = 2048
	maxUserAgentLen = 1024
	maxActiveLimit  = 500
)

// PresenceService records presence reports and serves presence reads.
type PresenceService interface {
	Report(ctx context.Context, report domain.PresenceReport) (*domain.GeoLocation, error)
	GetPresence(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error)
	ListActive(ctx context.Context, window time.Duration, limit int) ([]domain.UserPresence, error)
}

type presenceServiceImpl struct {
	presenceRepo repository.PresenceRepository
	profileRepo  repository.ProfileRepository
	geo          client.GeoLocator
	publisher    events.Publisher
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewPresenceService creates a PresenceService. geo and publisher may be nil.
func NewPresenceService(
	presenceRepo repository.PresenceRepository,
	profileRepo repository.ProfileRepository,
	geo client.GeoLocator,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) PresenceService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &presenceServiceImpl{
		presenceRepo: presenceRepo,
		profileRepo:  profileRepo,
		geo:          geo,
		publisher:    publisher,
		metrics:      m,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Report stores one presence report. Only the presence upsert can fail the call;
// geolocation, the profile write and event publication are best-effort.
func (s *presenceServiceImpl) Report(ctx context.Context, report domain.PresenceReport) (*domain.GeoLocation, error) {
	if !report.Status.IsValid() {
		return nil, ErrInvalidStatus
	}
	if report.UserID == uuid.Nil {
		return nil, response.NewUnauthorizedError("Unauthorized")
	}

	now := s.now()
	loc := s.locate(ctx, report)

	presence := &domain.UserPresence{
		UserID:       report.UserID,
		Status:       report.Status,
		LastActiveAt: now,
		PagePath:     optional(truncate(report.PagePath, maxPagePathLen)),
		UserAgent:    optional(truncate(report.UserAgent, maxUserAgentLen)),
		UpdatedAt:    now,
	}
	if loc != nil {
		presence.CountryCode = optional(loc.CountryCode)
		presence.CountryName = optional(loc.CountryName)
		presence.City = optional(loc.City)
	}

	if err := s.presenceRepo.Upsert(ctx, presence); err != nil {
		s.logger.Error("Failed to upsert presence",
			zap.String("user_id", report.UserID.String()),
			zap.Error(err),
		)
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to update presence", err.Error())
	}

	if err := s.profileRepo.TouchLastSeen(ctx, report.UserID, now, loc); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Debug("No profile to update", zap.String("user_id", report.UserID.String()))
		} else {
			s.metrics.IncrementProfileWriteFailures()
			s.logger.Warn("Failed to update profile last seen",
				zap.String("user_id", report.UserID.String()),
				zap.Error(err),
			)
		}
	}

	event := domain.PresenceEvent{
		Type:       "USER_STATUS",
		UserID:     report.UserID,
		Status:     report.Status,
		PagePath:   report.PagePath,
		OccurredAt: now,
	}
	if err := s.publisher.Publish(ctx, events.TopicPresence, report.UserID, event); err != nil {
		s.metrics.IncrementEventPublishFailures(events.TopicPresence)
		s.logger.Warn("Failed to publish presence event", zap.Error(err))
	}

	channel := report.Channel
	if channel == "" {
		channel = "request"
	}
	s.metrics.RecordPresenceReport(string(report.Status), channel)

	return loc, nil
}

func (s *presenceServiceImpl) locate(ctx context.Context, report domain.PresenceReport) *domain.GeoLocation {
	if s.geo == nil || report.ClientIP == "" {
		return nil
	}
	loc, err := s.geo.Lookup(ctx, report.ClientIP)
	if err != nil {
		if !errors.Is(err, client.ErrPrivateAddress) {
			s.logger.Debug("Geolocation skipped",
				zap.String("user_id", report.UserID.String()),
				zap.Error(err),
			)
		}
		return nil
	}
	return loc
}

func (s *presenceServiceImpl) GetPresence(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error) {
	presence, err := s.presenceRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Presence not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to load presence", err.Error())
	}
	return presence, nil
}

func (s *presenceServiceImpl) ListActive(ctx context.Context, window time.Duration, limit int) ([]domain.UserPresence, error) {
	if window <= 0 {
		return nil, response.NewValidationError("Invalid window", "since must be a positive duration")
	}
	if limit <= 0 || limit > maxActiveLimit {
		limit = maxActiveLimit
	}

	list, err := s.presenceRepo.FindActiveSince(ctx, s.now().Add(-window), limit)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to list presence", err.Error())
	}
	return list, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
