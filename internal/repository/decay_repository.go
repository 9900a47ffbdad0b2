package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"presence-service/internal/domain"
)

// DecayRepository gives the decay job access to the assistant's learned state.
// Every method runs on the transaction the repository was bound to by Transaction.
type DecayRepository interface {
	Transaction(ctx context.Context, fn func(tx DecayRepository) error) error
	FindPatterns(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.LearnedPattern, error)
	UpdatePattern(ctx context.Context, id uuid.UUID, confidence float64, flag bool, decayedAt time.Time) error
	FindMemories(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Memory, error)
	UpdateMemory(ctx context.Context, id uuid.UUID, importance float64, decayedAt time.Time) error
	DeleteMemories(ctx context.Context, ids []uuid.UUID) (int64, error)
	CreateNotification(ctx context.Context, notification *domain.Notification) error
	CreateRun(ctx context.Context, run *domain.DecayRun) error
	LatestRun(ctx context.Context) (*domain.DecayRun, error)
}

type decayRepositoryImpl struct {
	db *gorm.DB
}

func NewDecayRepository(db *gorm.DB) DecayRepository {
	return &decayRepositoryImpl{db: db}
}

// Transaction runs fn inside one database transaction. Returning an error from fn
// rolls back every write made through tx.
func (r *decayRepositoryImpl) Transaction(ctx context.Context, fn func(tx DecayRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&decayRepositoryImpl{db: tx})
	})
}

func (r *decayRepositoryImpl) FindPatterns(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.LearnedPattern, error) {
	var patterns []domain.LearnedPattern
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&patterns).Error
	return patterns, err
}

func (r *decayRepositoryImpl) UpdatePattern(ctx context.Context, id uuid.UUID, confidence float64, flag bool, decayedAt time.Time) error {
	updates := map[string]interface{}{
		"confidence":      confidence,
		"last_decayed_at": decayedAt,
	}
	if flag {
		updates["needs_recalculation"] = true
	}
	return r.db.WithContext(ctx).
		Model(&domain.LearnedPattern{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *decayRepositoryImpl) FindMemories(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Memory, error) {
	var memories []domain.Memory
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id").
		Limit(limit).
		Find(&memories).Error
	return memories, err
}

func (r *decayRepositoryImpl) UpdateMemory(ctx context.Context, id uuid.UUID, importance float64, decayedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Memory{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"importance":      importance,
			"last_decayed_at": decayedAt,
		}).Error
}

func (r *decayRepositoryImpl) DeleteMemories(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Memory{})
	return result.RowsAffected, result.Error
}

func (r *decayRepositoryImpl) CreateNotification(ctx context.Context, notification *domain.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *decayRepositoryImpl) CreateRun(ctx context.Context, run *domain.DecayRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *decayRepositoryImpl) LatestRun(ctx context.Context) (*domain.DecayRun, error) {
	var run domain.DecayRun
	if err := r.db.WithContext(ctx).Order("started_at DESC").First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}
