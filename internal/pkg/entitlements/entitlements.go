package entitlements

import (
	"strings"

	"github.com/ManuelReschke/NutriFox/app/models"
)

type Plan string

const (
	PlanFree             Plan = "free"
	PlanPremiumMonthly   Plan = "premium_monthly"
	PlanPremiumQuarterly Plan = "premium_quarterly"
	PlanPremiumAnnual    Plan = "premium_annual"
)

// Unlimited marks a quota without an upper bound.
const Unlimited = -1

// Limits are the feature allowances derived from a subscription.
type Limits struct {
	Plan                 Plan `json:"plan"`
	Premium              bool `json:"premium"`
	HistoryDays          int  `json:"history_days"`
	AIChat               bool `json:"ai_chat"`
	DailyMealGenerations int  `json:"daily_meal_generations"`
}

// ParsePlan maps stored plan text to a known plan, defaulting to free.
func ParsePlan(plan string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(plan))) {
	case PlanPremiumMonthly:
		return PlanPremiumMonthly
	case PlanPremiumQuarterly:
		return PlanPremiumQuarterly
	case PlanPremiumAnnual:
		return PlanPremiumAnnual
	default:
		return PlanFree
	}
}

// IsPremium reports whether the plan is one of the paid tiers.
func (p Plan) IsPremium() bool {
	return ParsePlan(string(p)) != PlanFree
}

// Months is the billing period length of a paid tier, 0 for free.
func (p Plan) Months() int {
	switch ParsePlan(string(p)) {
	case PlanPremiumMonthly:
		return 1
	case PlanPremiumQuarterly:
		return 3
	case PlanPremiumAnnual:
		return 12
	default:
		return 0
	}
}

// ForPlan returns the allowances of a plan.
func ForPlan(plan Plan) Limits {
	p := ParsePlan(string(plan))
	if !p.IsPremium() {
		return Limits{
			Plan:                 PlanFree,
			HistoryDays:          7,
			AIChat:               false,
			DailyMealGenerations: 1,
		}
	}
	return Limits{
		Plan:                 p,
		Premium:              true,
		HistoryDays:          Unlimited,
		AIChat:               true,
		DailyMealGenerations: Unlimited,
	}
}

// ForSubscription combines stored plan and status. Anything but an active
// subscription gets the free allowances, as does a user without a row.
func ForSubscription(sub *models.Subscription) Limits {
	if sub == nil || !sub.IsActive() {
		return ForPlan(PlanFree)
	}
	return ForPlan(Plan(sub.Plan))
}
