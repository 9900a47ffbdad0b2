package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"presence-service/internal/domain"
	"presence-service/internal/repository"
)

// MockPresenceRepository is a mock implementation of PresenceRepository
type MockPresenceRepository struct {
	UpsertFunc                 func(ctx context.Context, presence *domain.UserPresence) error
	FindByUserIDFunc           func(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error)
	FindActiveSinceFunc        func(ctx context.Context, since time.Time, limit int) ([]domain.UserPresence, error)
	MarkStaleOfflineFunc       func(ctx context.Context, before time.Time) (int64, error)
	FindInactiveCandidatesFunc func(ctx context.Context, before time.Time, afterUserID uuid.UUID, limit int) ([]repository.InactiveCandidate, error)
}

func (m *MockPresenceRepository) Upsert(ctx context.Context, presence *domain.UserPresence) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, presence)
	}
	return nil
}

func (m *MockPresenceRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error) {
	if m.FindByUserIDFunc != nil {
		return m.FindByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockPresenceRepository) FindActiveSince(ctx context.Context, since time.Time, limit int) ([]domain.UserPresence, error) {
	if m.FindActiveSinceFunc != nil {
		return m.FindActiveSinceFunc(ctx, since, limit)
	}
	return nil, nil
}

func (m *MockPresenceRepository) MarkStaleOffline(ctx context.Context, before time.Time) (int64, error) {
	if m.MarkStaleOfflineFunc != nil {
		return m.MarkStaleOfflineFunc(ctx, before)
	}
	return 0, nil
}

func (m *MockPresenceRepository) FindInactiveCandidates(ctx context.Context, before time.Time, afterUserID uuid.UUID, limit int) ([]repository.InactiveCandidate, error) {
	if m.FindInactiveCandidatesFunc != nil {
		return m.FindInactiveCandidatesFunc(ctx, before, afterUserID, limit)
	}
	return nil, nil
}

// MockProfileRepository is a mock implementation of ProfileRepository
type MockProfileRepository struct {
	TouchLastSeenFunc func(ctx context.Context, userID uuid.UUID, seenAt time.Time, location *domain.GeoLocation) error
	FindByUserIDFunc  func(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

func (m *MockProfileRepository) TouchLastSeen(ctx context.Context, userID uuid.UUID, seenAt time.Time, location *domain.GeoLocation) error {
	if m.TouchLastSeenFunc != nil {
		return m.TouchLastSeenFunc(ctx, userID, seenAt, location)
	}
	return nil
}

func (m *MockProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	if m.FindByUserIDFunc != nil {
		return m.FindByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

// MockNotificationRepository is a mock implementation of NotificationRepository
type MockNotificationRepository struct {
	CreateFunc        func(ctx context.Context, notification *domain.Notification) error
	ExistsRecentFunc  func(ctx context.Context, userID uuid.UUID, category domain.NotificationCategory, titlePattern string, since time.Time) (bool, error)
	ListByUserFunc    func(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) ([]domain.Notification, int64, error)
	CountUnreadFunc   func(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkAsReadFunc    func(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error)
	MarkAllAsReadFunc func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (m *MockNotificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, notification)
	}
	return nil
}

func (m *MockNotificationRepository) ExistsRecent(ctx context.Context, userID uuid.UUID, category domain.NotificationCategory, titlePattern string, since time.Time) (bool, error) {
	if m.ExistsRecentFunc != nil {
		return m.ExistsRecentFunc(ctx, userID, category, titlePattern, since)
	}
	return false, nil
}

func (m *MockNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) ([]domain.Notification, int64, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, page, limit, unreadOnly)
	}
	return nil, 0, nil
}

func (m *MockNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if m.CountUnreadFunc != nil {
		return m.CountUnreadFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockNotificationRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) (*domain.Notification, error) {
	if m.MarkAsReadFunc != nil {
		return m.MarkAsReadFunc(ctx, id, userID)
	}
	return nil, nil
}

func (m *MockNotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if m.MarkAllAsReadFunc != nil {
		return m.MarkAllAsReadFunc(ctx, userID)
	}
	return 0, nil
}

// MockGeoLocator is a mock implementation of client.GeoLocator
type MockGeoLocator struct {
	LookupFunc func(ctx context.Context, ip string) (*domain.GeoLocation, error)
}

func (m *MockGeoLocator) Lookup(ctx context.Context, ip string) (*domain.GeoLocation, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, ip)
	}
	return nil, nil
}

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	PublishFunc func(ctx context.Context, topic string, userID uuid.UUID, v any) error
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, userID uuid.UUID, v any) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, userID, v)
	}
	return nil
}

func (m *MockPublisher) Close() {}
