package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"presence-service/internal/database"
	"presence-service/internal/domain"
	"presence-service/internal/metrics"
)

var baseTime = time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

// recordingNotifier keeps every notification reported as created.
type recordingNotifier struct {
	mu    sync.Mutex
	items []*domain.Notification
}

func (r *recordingNotifier) NotificationCreated(ctx context.Context, n *domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func seedProfile(t *testing.T, db *gorm.DB, userID uuid.UUID, onboarded bool) {
	t.Helper()
	require.NoError(t, db.Create(&domain.Profile{UserID: userID, OnboardingComplete: onboarded}).Error)
}

func seedPresence(t *testing.T, db *gorm.DB, userID uuid.UUID, status domain.PresenceStatus, lastActive time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&domain.UserPresence{
		UserID:       userID,
		Status:       status,
		LastActiveAt: lastActive,
		UpdatedAt:    lastActive,
	}).Error)
}

func seedScore(t *testing.T, db *gorm.DB, userID uuid.UUID, score float64, updatedAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&domain.TaxScore{
		UserID:    userID,
		Score:     score,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}).Error)
}

func notificationsFor(t *testing.T, db *gorm.DB, userID uuid.UUID) []domain.Notification {
	t.Helper()
	var out []domain.Notification
	require.NoError(t, db.Where("user_id = ?", userID).Order("created_at").Find(&out).Error)
	return out
}
