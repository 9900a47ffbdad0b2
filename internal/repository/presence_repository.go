package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"presence-service/internal/domain"
)

// PresenceRepository defines the interface for presence data access
type PresenceRepository interface {
	Upsert(ctx context.Context, presence *domain.UserPresence) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error)
	FindActiveSince(ctx context.Context, since time.Time, limit int) ([]domain.UserPresence, error)
	MarkStaleOffline(ctx context.Context, before time.Time) (int64, error)
	FindInactiveCandidates(ctx context.Context, before time.Time, afterUserID uuid.UUID, limit int) ([]InactiveCandidate, error)
}

// InactiveCandidate is an onboarded user whose last activity is older than the scan threshold.
type InactiveCandidate struct {
	UserID       uuid.UUID
	LastActiveAt time.Time
}

type presenceRepositoryImpl struct {
	db *gorm.DB
}

// NewPresenceRepository creates a new instance of PresenceRepository
func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepositoryImpl{db: db}
}

var presenceUpdateColumns = []string{"status", "last_active_at", "page_path", "user_agent", "updated_at"}

var presenceLocationColumns = []string{"country_code", "country_name", "city"}

// Upsert writes the record in a single INSERT ... ON CONFLICT statement keyed by user_id.
// The last write wins. Location columns are only replaced when the record carries a location,
// so a report without geo data keeps the last known location.
func (r *presenceRepositoryImpl) Upsert(ctx context.Context, presence *domain.UserPresence) error {
	columns := presenceUpdateColumns
	if presence.CountryCode != nil {
		columns = append(append([]string{}, presenceUpdateColumns...), presenceLocationColumns...)
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(presence).Error
}

func (r *presenceRepositoryImpl) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserPresence, error) {
	var presence domain.UserPresence
	if err := r.db.WithContext(ctx).First(&presence, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &presence, nil
}

// FindActiveSince returns online and away users that reported at or after since, most recent first.
func (r *presenceRepositoryImpl) FindActiveSince(ctx context.Context, since time.Time, limit int) ([]domain.UserPresence, error) {
	var presences []domain.UserPresence
	err := r.db.WithContext(ctx).
		Where("status IN ? AND last_active_at >= ?", []domain.PresenceStatus{domain.PresenceOnline, domain.PresenceAway}, since).
		Order("last_active_at DESC").
		Limit(limit).
		Find(&presences).Error
	return presences, err
}

// MarkStaleOffline moves records that stopped reporting before the cutoff to offline.
// last_active_at is left untouched and the WHERE clause is re-evaluated per row, so a
// report that lands concurrently is never overwritten.
func (r *presenceRepositoryImpl) MarkStaleOffline(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.UserPresence{}).
		Where("status <> ? AND last_active_at < ?", domain.PresenceOffline, before).
		Update("status", domain.PresenceOffline)
	return result.RowsAffected, result.Error
}

// FindInactiveCandidates pages through onboarded users whose last activity is strictly
// older than before. Pages are keyed by user_id so a run never revisits a row.
func (r *presenceRepositoryImpl) FindInactiveCandidates(ctx context.Context, before time.Time, afterUserID uuid.UUID, limit int) ([]InactiveCandidate, error) {
	var candidates []InactiveCandidate
	err := r.db.WithContext(ctx).
		Table("user_presence AS p").
		Select("p.user_id, p.last_active_at").
		Joins("JOIN profiles pr ON pr.user_id = p.user_id").
		Where("p.last_active_at < ?", before).
		Where("pr.onboarding_complete = ?", true).
		Where("p.user_id > ?", afterUserID).
		Order("p.user_id").
		Limit(limit).
		Scan(&candidates).Error
	return candidates, err
}
