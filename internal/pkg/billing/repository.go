package billing

import (
	"context"
	"errors"

	"github.com/ManuelReschke/NutriFox/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	// WithTx runs fn inside one transaction; fn receives a repository bound to it.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
	// GetSubscriptionByUser returns nil, nil when the user has no row yet.
	GetSubscriptionByUser(ctx context.Context, userID string, forUpdate bool) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	// InsertPaymentIfNotExists reports false when the provider order id is already stored.
	InsertPaymentIfNotExists(ctx context.Context, payment *models.Payment) (bool, error)
	RecordDelivery(ctx context.Context, delivery *models.BillingWebhookDelivery) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) GetSubscriptionByUser(ctx context.Context, userID string, forUpdate bool) (*models.Subscription, error) {
	q := r.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var sub models.Subscription
	err := q.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan",
			"status",
			"current_period_start",
			"current_period_end",
			"provider_order_id",
			"provider_subscription_id",
			"provider_plan_id",
			"last_event_type",
			"last_event_at",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("user_id = ?", sub.UserID).First(sub).Error
}

func (r *gormRepository) InsertPaymentIfNotExists(ctx context.Context, payment *models.Payment) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_order_id"}},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) RecordDelivery(ctx context.Context, delivery *models.BillingWebhookDelivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}
