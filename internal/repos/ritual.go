package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sanctuarylabs/sanctuary-backend/internal/logger"
	"github.com/sanctuarylabs/sanctuary-backend/internal/types"
)

type RitualRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rituals []*types.Ritual) ([]*types.Ritual, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ritualIDs []uuid.UUID) ([]*types.Ritual, error)
	GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Ritual, error)
	UpdateRating(ctx context.Context, tx *gorm.DB, ritualID uuid.UUID, rating int) error
}

type ritualRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRitualRepo(db *gorm.DB, baseLog *logger.Logger) RitualRepo {
	repoLog := baseLog.With("repo", "RitualRepo")
	return &ritualRepo{db: db, log: repoLog}
}

func (rr *ritualRepo) Create(ctx context.Context, tx *gorm.DB, rituals []*types.Ritual) ([]*types.Ritual, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	if len(rituals) == 0 {
		return []*types.Ritual{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rituals).Error; err != nil {
		return nil, err
	}
	return rituals, nil
}

func (rr *ritualRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ritualIDs []uuid.UUID) ([]*types.Ritual, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.Ritual
	if len(ritualIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ritualIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *ritualRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Ritual, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.Ritual
	if len(userIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id IN ?", userIDs).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateRating is last-write-wins: a second feedback submission for the same
// ritual replaces the previous rating.
func (rr *ritualRepo) UpdateRating(ctx context.Context, tx *gorm.DB, ritualID uuid.UUID, rating int) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Ritual{}).
		Where("id = ?", ritualID).
		Update("rating", rating).Error
}
