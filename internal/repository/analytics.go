package repository

import (
	"context"

	"project0/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsRepository maintains named monotonic counters.
type AnalyticsRepository interface {
	Increment(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (int64, error)
	All(ctx context.Context) (map[string]int64, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository returns a gorm-backed AnalyticsRepository.
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) Increment(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value": gorm.Expr("analytics_counters.value + 1"),
		}),
	}).Create(&models.AnalyticsCounter{Key: key, Value: 1}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Get returns 0 for counters that were never incremented.
func (r *analyticsRepository) Get(ctx context.Context, key string) (int64, error) {
	var counters []models.AnalyticsCounter
	if err := r.db.WithContext(ctx).Where(&models.AnalyticsCounter{Key: key}).Limit(1).Find(&counters).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	if len(counters) == 0 {
		return 0, nil
	}
	return counters[0].Value, nil
}

func (r *analyticsRepository) All(ctx context.Context) (map[string]int64, error) {
	var counters []models.AnalyticsCounter
	if err := r.db.WithContext(ctx).Find(&counters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	out := make(map[string]int64, len(counters))
	for _, c := range counters {
		out[c.Key] = c.Value
	}
	return out, nil
}
