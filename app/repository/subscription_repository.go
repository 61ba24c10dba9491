package repository

import (
	"context"
	"errors"

	"github.com/ManuelReschke/NutriFox/app/models"
	"gorm.io/gorm"
)

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) WithContext(ctx context.Context) SubscriptionRepository {
	return &subscriptionRepository{db: r.db.WithContext(ctx)}
}

// GetByUserID returns nil, nil for users that never had a billing event.
func (r *subscriptionRepository) GetByUserID(userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListPaymentsByUserID returns the newest payments first
func (r *subscriptionRepository) ListPaymentsByUserID(userID string, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 10
	}
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).Order("paid_at DESC").Limit(limit).Find(&payments).Error
	return payments, err
}
