package models

import "time"

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCancelled  = "cancelled"
)

// Subscription is the converged per-user subscription state. Exactly one row
// exists per user; webhook deliveries overwrite it in place.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_subscriptions_user_id" json:"user_id"`
	Plan                   string     `gorm:"type:varchar(32);not null;default:'free';index" json:"plan"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	ProviderOrderID        string     `gorm:"type:varchar(191);default:''" json:"provider_order_id"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);default:'';index" json:"provider_subscription_id"`
	ProviderPlanID         string     `gorm:"type:varchar(191);default:''" json:"provider_plan_id"`
	LastEventType          string     `gorm:"type:varchar(100);default:''" json:"last_event_type"`
	LastEventAt            *time.Time `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription currently grants a paid plan.
func (s *Subscription) IsActive() bool {
	return s != nil && s.Status == SubscriptionStatusActive
}
