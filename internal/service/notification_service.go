package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"presence-service/internal/domain"
	"presence-service/internal/repository"
	"presence-service/internal/response"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	unreadCacheTTL   = 5 * time.Minute
)

// NotificationService serves the in-app notification inbox.
type NotificationService interface {
	GetNotifications(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) (*domain.PaginatedNotifications, error)
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (*domain.UnreadCount, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	// InvalidateUnreadCount drops the cached unread count after notifications were created elsewhere.
	InvalidateUnreadCount(ctx context.Context, userID uuid.UUID)
}

type notificationServiceImpl struct {
	repo   repository.NotificationRepository
	redis  *redis.Client
	logger *zap.Logger
}

// NewNotificationService creates a NotificationService. rdb may be nil, which disables caching.
func NewNotificationService(repo repository.NotificationRepository, rdb *redis.Client, logger *zap.Logger) NotificationService {
	return &notificationServiceImpl{
		repo:   repo,
		redis:  rdb,
		logger: logger,
	}
}

func (s *notificationServiceImpl) GetNotifications(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) (*domain.PaginatedNotifications, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	notifications, total, err := s.repo.ListByUser(ctx, userID, page, limit, unreadOnly)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to list notifications", err.Error())
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}

	return &domain.PaginatedNotifications{
		Notifications: notifications,
		Total:         total,
		Page:          page,
		Limit:         limit,
		HasMore:       int64(page*limit) < total,
	}, nil
}

func (s *notificationServiceImpl) GetUnreadCount(ctx context.Context, userID uuid.UUID) (*domain.UnreadCount, error) {
	key := unreadCacheKey(userID)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Int64(); err == nil {
			return &domain.UnreadCount{Count: cached}, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to count notifications", err.Error())
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, count, unreadCacheTTL).Err(); err != nil {
			s.logger.Debug("Failed to cache unread count", zap.Error(err))
		}
	}

	return &domain.UnreadCount{Count: count}, nil
}

func (s *notificationServiceImpl) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error) {
	notification, err := s.repo.MarkAsRead(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Notification not found", "")
		}
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to update notification", err.Error())
	}

	s.InvalidateUnreadCount(ctx, userID)
	return notification, nil
}

func (s *notificationServiceImpl) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, response.NewAppError(response.ErrCodeInternal, "Failed to update notifications", err.Error())
	}

	s.InvalidateUnreadCount(ctx, userID)
	return count, nil
}

func (s *notificationServiceImpl) InvalidateUnreadCount(ctx context.Context, userID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, unreadCacheKey(userID)).Err(); err != nil {
		s.logger.Warn("Failed to invalidate unread count cache",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

func unreadCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("unread:%s", userID.String())
}
