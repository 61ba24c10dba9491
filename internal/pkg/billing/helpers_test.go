package billing_test

import (
	"time"

	"github.com/ManuelReschke/NutriFox/app/models"
)

func billingtestActive(userID string) models.Subscription {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return models.Subscription{
		ID:                 7,
		UserID:             userID,
		Plan:               "premium_monthly",
		Status:             models.SubscriptionStatusActive,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		LastEventType:      "order_approved",
		LastEventAt:        &start,
	}
}
