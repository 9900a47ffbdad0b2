package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"presence-service/internal/domain"
)

// ScoreRepository reads tax scores and opportunities. Both tables are owned by the
// dashboard; scanners only read them.
type ScoreRepository interface {
	FindStaleScores(ctx context.Context, before time.Time, afterUserID uuid.UUID, limit int) ([]domain.TaxScore, error)
	HasScore(ctx context.Context, userID uuid.UUID) (bool, error)
	CountUnreadOpportunities(ctx context.Context, userID uuid.UUID) (int64, error)
}

type scoreRepositoryImpl struct {
	db *gorm.DB
}

func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepositoryImpl{db: db}
}

// FindStaleScores pages through positive scores last updated strictly before the cutoff.
func (r *scoreRepositoryImpl) FindStaleScores(ctx context.Context, before time.Time, afterUserID uuid.UUID, limit int) ([]domain.TaxScore, error) {
	var scores []domain.TaxScore
	err := r.db.WithContext(ctx).
		Where("score > ? AND updated_at < ? AND user_id > ?", 0, before, afterUserID).
		Order("user_id").
		Limit(limit).
		Find(&scores).Error
	return scores, err
}

func (r *scoreRepositoryImpl) HasScore(ctx context.Context, userID uuid.UUID) (bool, error) {
	var score domain.TaxScore
	err := r.db.WithContext(ctx).Select("user_id").First(&score, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *scoreRepositoryImpl) CountUnreadOpportunities(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
