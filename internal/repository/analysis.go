package repository

import (
	"context"
	"errors"

	"project0/internal/models"

	"gorm.io/gorm"
)

// AnalysisRepository stores resume analyses.
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *models.Analysis) error
	GetForUser(ctx context.Context, id, userID uint) (*models.Analysis, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Analysis, error)
	Count(ctx context.Context) (int64, error)
}

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository returns a gorm-backed AnalysisRepository.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, analysis *models.Analysis) error {
	if err := r.db.WithContext(ctx).Create(analysis).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *analysisRepository) GetForUser(ctx context.Context, id, userID uint) (*models.Analysis, error) {
	var analysis models.Analysis
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Analysis", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &analysis, nil
}

func (r *analysisRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Analysis, error) {
	var analyses []models.Analysis
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&analyses).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return analyses, nil
}

func (r *analysisRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Analysis{}).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
