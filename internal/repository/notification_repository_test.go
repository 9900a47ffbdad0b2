package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"presence-service/internal/domain"
)

func TestNotificationRepository_ExistsRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Create(ctx, &domain.Notification{
		UserID:    userID,
		Title:     "Sentimos sua falta! Você tem oportunidades novas",
		Message:   "msg",
		Category:  domain.CategorySaudade,
		CreatedAt: baseTime.Add(-3 * 24 * time.Hour),
	}))

	tests := []struct {
		name     string
		userID   uuid.UUID
		category domain.NotificationCategory
		pattern  string
		since    time.Time
		want     bool
	}{
		{"same category within window", userID, domain.CategorySaudade, "", baseTime.Add(-14 * 24 * time.Hour), true},
		{"matching title pattern", userID, domain.CategorySaudade, "Sentimos sua falta%", baseTime.Add(-14 * 24 * time.Hour), true},
		{"non matching title pattern", userID, domain.CategorySaudade, "Seu score%", baseTime.Add(-14 * 24 * time.Hour), false},
		{"outside window", userID, domain.CategorySaudade, "", baseTime.Add(-2 * 24 * time.Hour), false},
		{"other category", userID, domain.CategoryStaleScore, "", baseTime.Add(-14 * 24 * time.Hour), false},
		{"other user", uuid.New(), domain.CategorySaudade, "", baseTime.Add(-14 * 24 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ExistsRecent(ctx, tt.userID, tt.category, tt.pattern, tt.since)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotificationRepository_ListAndRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		n := &domain.Notification{
			UserID:    userID,
			Title:     "title",
			Message:   "message",
			Category:  domain.CategoryStaleScore,
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, n))
		ids = append(ids, n.ID)
	}
	require.NoError(t, repo.Create(ctx, &domain.Notification{UserID: other, Title: "t", Message: "m", Category: domain.CategorySaudade, CreatedAt: baseTime}))

	list, total, err := repo.ListByUser(ctx, userID, 1, 2, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID, "newest first")

	unread, err := repo.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	read, err := repo.MarkAsRead(ctx, ids[0], userID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	_, err = repo.MarkAsRead(ctx, ids[1], other)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound), "cannot read another user's notification")

	list, total, err = repo.ListByUser(ctx, userID, 1, 10, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	n, err := repo.MarkAllAsRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err = repo.CountUnread(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	unread, err = repo.CountUnread(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}
