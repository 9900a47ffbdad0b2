package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"presence-service/internal/domain"
	"presence-service/internal/job"
	"presence-service/internal/util"
)

// MockPresenceService is a mock implementation of PresenceService
type MockPresenceService struct {
	ReportFunc      func(ctx context.Context, report domain.PresenceReport) (*domain.GeoLocation, error)
	GetPresenceFunc func(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error)
	ListActiveFunc  func(ctx context.Context, window time.Duration, limit int) ([]domain.UserPresence, error)
}

func (m *MockPresenceService) Report(ctx context.Context, report domain.PresenceReport) (*domain.GeoLocation, error) {
	if m.ReportFunc != nil {
		return m.ReportFunc(ctx, report)
	}
	return nil, nil
}

func (m *MockPresenceService) GetPresence(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error) {
	if m.GetPresenceFunc != nil {
		return m.GetPresenceFunc(ctx, userID)
	}
	return &domain.UserPresence{UserID: userID}, nil
}

func (m *MockPresenceService) ListActive(ctx context.Context, window time.Duration, limit int) ([]domain.UserPresence, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, window, limit)
	}
	return []domain.UserPresence{}, nil
}

// MockNotificationService is a mock implementation of NotificationService
type MockNotificationService struct {
	GetNotificationsFunc      func(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) (*domain.PaginatedNotifications, error)
	GetUnreadCountFunc        func(ctx context.Context, userID uuid.UUID) (*domain.UnreadCount, error)
	MarkAsReadFunc            func(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)
	MarkAllAsReadFunc         func(ctx context.Context, userID uuid.UUID) (int64, error)
	InvalidateUnreadCountFunc func(ctx context.Context, userID uuid.UUID)
}

func (m *MockNotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) (*domain.PaginatedNotifications, error) {
	if m.GetNotificationsFunc != nil {
		return m.GetNotificationsFunc(ctx, userID, page, limit, unreadOnly)
	}
	return &domain.PaginatedNotifications{Notifications: []domain.Notification{}, Page: page, Limit: limit}, nil
}

func (m *MockNotificationService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (*domain.UnreadCount, error) {
	if m.GetUnreadCountFunc != nil {
		return m.GetUnreadCountFunc(ctx, userID)
	}
	return &domain.UnreadCount{}, nil
}

func (m *MockNotificationService) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error) {
	if m.MarkAsReadFunc != nil {
		return m.MarkAsReadFunc(ctx, id, userID)
	}
	return &domain.Notification{ID: id, UserID: userID, IsRead: true}, nil
}

func (m *MockNotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if m.MarkAllAsReadFunc != nil {
		return m.MarkAllAsReadFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockNotificationService) InvalidateUnreadCount(ctx context.Context, userID uuid.UUID) {
	if m.InvalidateUnreadCountFunc != nil {
		m.InvalidateUnreadCountFunc(ctx, userID)
	}
}

// MockJobRunner is a mock implementation of JobRunner
type MockJobRunner struct {
	RunFunc  func(ctx context.Context, name string) (*job.Result, error)
	ListFunc func() []job.JobInfo
}

func (m *MockJobRunner) Run(ctx context.Context, name string) (*job.Result, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name)
	}
	return &job.Result{}, nil
}

func (m *MockJobRunner) List() []job.JobInfo {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil
}

// withUser stands in for the auth middleware.
func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(util.ContextUserID, userID)
			c.Set(util.ContextToken, "test-token")
		}
		c.Next()
	}
}
