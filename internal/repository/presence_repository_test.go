package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence-service/internal/domain"
)

func TestPresenceRepository_UpsertKeepsOneRowLastWriteWins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPresenceRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{
		UserID:       userID,
		Status:       domain.PresenceOnline,
		LastActiveAt: baseTime,
		PagePath:     strPtr("/dashboard"),
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{
		UserID:       userID,
		Status:       domain.PresenceAway,
		LastActiveAt: baseTime.Add(time.Minute),
		PagePath:     strPtr("/dashboard/score"),
	}))

	var count int64
	require.NoError(t, db.Model(&domain.UserPresence{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceAway, got.Status)
	assert.Equal(t, "/dashboard/score", *got.PagePath)
	assert.True(t, got.LastActiveAt.Equal(baseTime.Add(time.Minute)))
}

func TestPresenceRepository_UpsertWithoutLocationKeepsLastKnownLocation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPresenceRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{
		UserID:       userID,
		Status:       domain.PresenceOnline,
		LastActiveAt: baseTime,
		CountryCode:  strPtr("BR"),
		CountryName:  strPtr("Brazil"),
		City:         strPtr("São Paulo"),
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{
		UserID:       userID,
		Status:       domain.PresenceOffline,
		LastActiveAt: baseTime.Add(time.Hour),
	}))

	got, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOffline, got.Status)
	require.NotNil(t, got.CountryCode)
	assert.Equal(t, "BR", *got.CountryCode)
	assert.Equal(t, "São Paulo", *got.City)

	require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{
		UserID:       userID,
		Status:       domain.PresenceOnline,
		LastActiveAt: baseTime.Add(2 * time.Hour),
		CountryCode:  strPtr("PT"),
		CountryName:  strPtr("Portugal"),
		City:         strPtr("Lisbon"),
	}))
	got, err = repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "PT", *got.CountryCode)
	assert.Equal(t, "Lisbon", *got.City)
}

func TestPresenceRepository_FindActiveSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPresenceRepository(db)
	ctx := context.Background()

	recentOnline := uuid.New()
	recentAway := uuid.New()
	recentOffline := uuid.New()
	oldOnline := uuid.New()

	for id, p := range map[uuid.UUID]domain.UserPresence{
		recentOnline:  {Status: domain.PresenceOnline, LastActiveAt: baseTime},
		recentAway:    {Status: domain.PresenceAway, LastActiveAt: baseTime.Add(-time.Minute)},
		recentOffline: {Status: domain.PresenceOffline, LastActiveAt: baseTime},
		oldOnline:     {Status: domain.PresenceOnline, LastActiveAt: baseTime.Add(-time.Hour)},
	} {
		p.UserID = id
		require.NoError(t, repo.Upsert(ctx, &p))
	}

	got, err := repo.FindActiveSince(ctx, baseTime.Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recentOnline, got[0].UserID)
	assert.Equal(t, recentAway, got[1].UserID)
}

func TestPresenceRepository_MarkStaleOffline(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPresenceRepository(db)
	ctx := context.Background()

	stale := uuid.New()
	fresh := uuid.New()
	alreadyOffline := uuid.New()

	require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{UserID: stale, Status: domain.PresenceAway, LastActiveAt: baseTime.Add(-10 * time.Minute)}))
	require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{UserID: fresh, Status: domain.PresenceOnline, LastActiveAt: baseTime.Add(-time.Minute)}))
	require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{UserID: alreadyOffline, Status: domain.PresenceOffline, LastActiveAt: baseTime.Add(-time.Hour)}))

	n, err := repo.MarkStaleOffline(ctx, baseTime.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.FindByUserID(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOffline, got.Status)
	assert.True(t, got.LastActiveAt.Equal(baseTime.Add(-10*time.Minute)), "last_active_at must not move")

	got, err = repo.FindByUserID(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, domain.PresenceOnline, got.Status)
}

func TestPresenceRepository_FindInactiveCandidates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPresenceRepository(db)
	ctx := context.Background()
	threshold := baseTime.Add(-7 * 24 * time.Hour)

	inactive := uuid.New()
	notOnboarded := uuid.New()
	exactlyAtBoundary := uuid.New()
	active := uuid.New()

	for id, lastActive := range map[uuid.UUID]time.Time{
		inactive:          baseTime.Add(-10 * 24 * time.Hour),
		notOnboarded:      baseTime.Add(-10 * 24 * time.Hour),
		exactlyAtBoundary: threshold,
		active:            baseTime.Add(-time.Hour),
	} {
		require.NoError(t, repo.Upsert(ctx, &domain.UserPresence{UserID: id, Status: domain.PresenceOffline, LastActiveAt: lastActive}))
		require.NoError(t, db.Create(&domain.Profile{UserID: id, OnboardingComplete: id != notOnboarded}).Error)
	}

	got, err := repo.FindInactiveCandidates(ctx, threshold, uuid.Nil, 100)
	require.NoError(t, err)
	require.Len(t, got, 1, "boundary is exclusive and onboarding is required")
	assert.Equal(t, inactive, got[0].UserID)

	got, err = repo.FindInactiveCandidates(ctx, threshold, inactive, 100)
	require.NoError(t, err)
	assert.Empty(t, got, "keyset paging starts after the given user")
}
