package billing

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/internal/pkg/entitlements"
)

// PlanResolver turns provider plan identifiers and status words into the
// internal plan and status vocabulary.
type PlanResolver struct {
	cfg Config
}

func NewPlanResolver(cfg Config) *PlanResolver {
	return &PlanResolver{cfg: cfg}
}

// ResolvePlan returns the tier implied by the envelope and the first provider
// plan id seen. Configured plan ids win over frequency text.
func (p *PlanResolver) ResolvePlan(env *Envelope) (entitlements.Plan, string) {
	ids := PlanIDRules.Values(env.Root)
	providerPlanID := ""
	if len(ids) > 0 {
		providerPlanID = ids[0]
	}
	for _, id := range ids {
		if plan, ok := p.planForID(id); ok {
			return plan, id
		}
	}

	texts := PlanFrequencyRules.Values(env.Root)
	for i := range texts {
		texts[i] = strings.ToLower(texts[i])
	}
	switch {
	case anyContains(texts, "month"):
		return entitlements.PlanPremiumMonthly, providerPlanID
	case anyContains(texts, "quarter"):
		return entitlements.PlanPremiumQuarterly, providerPlanID
	case anyContains(texts, "year"), anyContains(texts, "annual"):
		return entitlements.PlanPremiumAnnual, providerPlanID
	}
	return entitlements.PlanPremiumMonthly, providerPlanID
}

func (p *PlanResolver) planForID(id string) (entitlements.Plan, bool) {
	switch {
	case p.cfg.PlanIDMonthly != "" && id == p.cfg.PlanIDMonthly:
		return entitlements.PlanPremiumMonthly, true
	case p.cfg.PlanIDQuarterly != "" && id == p.cfg.PlanIDQuarterly:
		return entitlements.PlanPremiumQuarterly, true
	case p.cfg.PlanIDAnnual != "" && id == p.cfg.PlanIDAnnual:
		return entitlements.PlanPremiumAnnual, true
	}
	return "", false
}

// ResolveStatus maps the event type and provider status text to an internal
// status. Terms are checked in a fixed order, so "unpaid" never reads as paid
// and a cancellation wins over everything else.
func ResolveStatus(eventType, status string) string {
	s := strings.ToLower(eventType + " " + status)
	switch {
	case strings.Contains(s, "cancel"):
		return models.SubscriptionStatusCancelled
	case strings.Contains(s, "past_due"), strings.Contains(s, "overdue"):
		return models.SubscriptionStatusPastDue
	case containsAny(s, []string{"unpaid", "refused", "failed", "refund"}):
		return models.SubscriptionStatusIncomplete
	case containsAny(s, []string{"approved", "paid", "completed", "active"}):
		return models.SubscriptionStatusActive
	default:
		return models.SubscriptionStatusIncomplete
	}
}

// EffectivePlan forces the free plan for every status but active.
func EffectivePlan(plan entitlements.Plan, status string) entitlements.Plan {
	if status != models.SubscriptionStatusActive {
		return entitlements.PlanFree
	}
	return entitlements.ParsePlan(string(plan))
}

// Resolve computes plan, status and period for an envelope received at now.
func (p *PlanResolver) Resolve(env *Envelope, now time.Time) Resolution {
	requested, providerPlanID := p.ResolvePlan(env)
	statusText, _, _ := StatusRules.First(env.Root)
	status := ResolveStatus(env.EventType, statusText)
	plan := EffectivePlan(requested, status)

	res := Resolution{
		Plan:               string(plan),
		RequestedPlan:      string(requested),
		Status:             status,
		ProviderPlanID:     providerPlanID,
		CurrentPeriodStart: firstTime(env, PeriodStartRules, now),
		EventAt:            firstTime(env, EventTimeRules, now),
	}

	if end, ok := lookupTime(env, PeriodEndRules); ok {
		res.CurrentPeriodEnd = &end
	} else if status == models.SubscriptionStatusActive && plan.Months() > 0 {
		end := res.CurrentPeriodStart.AddDate(0, plan.Months(), 0)
		res.CurrentPeriodEnd = &end
	}
	return res
}

func anyContains(texts []string, term string) bool {
	for _, t := range texts {
		if strings.Contains(t, term) {
			return true
		}
	}
	return false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

func firstTime(env *Envelope, rules Rules, fallback time.Time) time.Time {
	if t, ok := lookupTime(env, rules); ok {
		return t
	}
	return fallback.UTC()
}

func lookupTime(env *Envelope, rules Rules) (time.Time, bool) {
	for _, r := range rules {
		v, ok := r.Lookup(env.Root)
		if !ok {
			continue
		}
		if t, ok := parseTimeValue(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimeValue accepts the common timestamp layouts and unix epochs in
// seconds or milliseconds.
func parseTimeValue(v any) (time.Time, bool) {
	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return time.Time{}, false
	}
	if text == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
