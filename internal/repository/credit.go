package repository

import (
	"context"
	"errors"
	"time"

	"project0/internal/cache"
	"project0/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditRepository stores credit top-up requests.
type CreditRepository interface {
	Create(ctx context.Context, req *models.CreditRequest) error
	GetPendingByUser(ctx context.Context, userID uint) (*models.CreditRequest, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.CreditRequest, error)
	CountPending(ctx context.Context) (int64, error)
	Process(ctx context.Context, id uint, approve bool, at time.Time) (*models.CreditRequest, error)
}

type creditRepository struct {
	db *gorm.DB
}

// NewCreditRepository returns a gorm-backed CreditRepository.
func NewCreditRepository(db *gorm.DB) CreditRepository {
	return &creditRepository{db: db}
}

var errPendingExists = models.NewConflictError("A credit request is already pending")

// Create inserts the request. A second pending request for the same user is a
// conflict, checked inside the insert transaction and backed by a partial
// unique index.
func (r *creditRepository) Create(ctx context.Context, req *models.CreditRequest) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Status == models.CreditRequestPending {
			if tx.Dialector.Name() == "postgres" {
				// Serializes concurrent requests from the same user.
				var user models.User
				if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Select("id").First(&user, req.UserID).Error; err != nil {
					return err
				}
			}
			var n int64
			if err := tx.Model(&models.CreditRequest{}).
				Where("user_id = ? AND status = ?", req.UserID, models.CreditRequestPending).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return errPendingExists
			}
		}
		return tx.Create(req).Error
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errPendingExists), isUniqueConstraintError(err):
		return models.NewConflictError("A credit request is already pending")
	default:
		return models.NewInternalError(err)
	}
}

// GetPendingByUser returns nil, nil when the user has no open request.
func (r *creditRepository) GetPendingByUser(ctx context.Context, userID uint) (*models.CreditRequest, error) {
	var req models.CreditRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.CreditRequestPending).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

// List returns requests newest first; an empty status matches all.
func (r *creditRepository) List(ctx context.Context, status string, limit, offset int) ([]models.CreditRequest, error) {
	var reqs []models.CreditRequest
	q := r.db.WithContext(ctx).Preload("User")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *creditRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.CreditRequest{}).
		Where("status = ?", models.CreditRequestPending).Count(&n).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// Process approves or rejects a pending request. Approval credits the user
// in the same transaction.
func (r *creditRepository) Process(ctx context.Context, id uint, approve bool, at time.Time) (*models.CreditRequest, error) {
	var req models.CreditRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&req, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Credit request", id)
			}
			return err
		}
		if req.Status != models.CreditRequestPending {
			return models.NewConflictError("Credit request already processed")
		}

		status := models.CreditRequestRejected
		if approve {
			status = models.CreditRequestApproved
		}
		res := tx.Model(&models.CreditRequest{}).
			Where("id = ? AND status = ?", id, models.CreditRequestPending).
			Updates(map[string]interface{}{"status": status, "processed_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("Credit request already processed")
		}

		if approve {
			if err := tx.Model(&models.User{}).Where("id = ?", req.UserID).
				UpdateColumn("credits", gorm.Expr("credits + ?", req.Amount)).Error; err != nil {
				return err
			}
		}
		req.Status = status
		req.ProcessedAt = &at
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(err)
	}
	if approve {
		cache.InvalidateUser(ctx, req.UserID)
	}
	return &req, nil
}
