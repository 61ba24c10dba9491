package repository

import (
	"context"

	"github.com/ManuelReschke/NutriFox/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	WithContext(ctx context.Context) UserRepository
	Create(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	List(offset, limit int) ([]models.User, error)
}

// UserSettingsRepository defines the interface for per-user settings
type UserSettingsRepository interface {
	GetOrCreate(userID string) (*models.UserSettings, error)
	Save(settings *models.UserSettings) error
}

// SubscriptionRepository is the read side of the billing tables
type SubscriptionRepository interface {
	WithContext(ctx context.Context) SubscriptionRepository
	GetByUserID(userID string) (*models.Subscription, error)
	ListPaymentsByUserID(userID string, limit int) ([]models.Payment, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	UserSettings UserSettingsRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		UserSettings: NewUserSettingsRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}
