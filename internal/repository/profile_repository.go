package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"presence-service/internal/domain"
)

// ProfileRepository writes the presence-derived columns of a user profile.
type ProfileRepository interface {
	TouchLastSeen(ctx context.Context, userID uuid.UUID, seenAt time.Time, location *domain.GeoLocation) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

type profileRepositoryImpl struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepositoryImpl{db: db}
}

// TouchLastSeen refreshes last_seen_at and, when location is set, merges it into the profile.
// Profiles are created elsewhere; gorm.ErrRecordNotFound is returned when none exists.
func (r *profileRepositoryImpl) TouchLastSeen(ctx context.Context, userID uuid.UUID, seenAt time.Time, location *domain.GeoLocation) error {
	updates := map[string]interface{}{
		"last_seen_at": seenAt,
	}
	if location != nil {
		updates["country_code"] = location.CountryCode
		updates["country_name"] = location.CountryName
		updates["city"] = location.City
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *profileRepositoryImpl) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
