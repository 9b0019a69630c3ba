package repository

import (
	"context"
	"errors"

	"project0/internal/models"

	"gorm.io/gorm"
)

// MVPRepository stores generated prototypes.
type MVPRepository interface {
	Create(ctx context.Context, mvp *models.MVP) error
	GetForUser(ctx context.Context, id string, userID uint) (*models.MVP, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.MVP, error)
	Count(ctx context.Context) (int64, error)
}

type mvpRepository struct {
	db *gorm.DB
}

// NewMVPRepository returns a gorm-backed MVPRepository.
func NewMVPRepository(db *gorm.DB) MVPRepository {
	return &mvpRepository{db: db}
}

func (r *mvpRepository) Create(ctx context.Context, mvp *models.MVP) error {
	if err := r.db.WithContext(ctx).Create(mvp).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("MVP id already taken")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GetForUser treats records owned by someone else as missing.
func (r *mvpRepository) GetForUser(ctx context.Context, id string, userID uint) (*models.MVP, error) {
	var mvp models.MVP
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&mvp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("MVP", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &mvp, nil
}

func (r *mvpRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.MVP, error) {
	var mvps []models.MVP
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&mvps).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return mvps, nil
}

func (r *mvpRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.MVP{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
