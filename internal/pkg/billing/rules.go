package billing

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Rule names one dotted location inside the webhook body, e.g.
// "data.customer.email". Segments are matched case-sensitively.
type Rule struct {
	Path     string
	segments []string
}

// Rules is an ordered list of locations; earlier rules win.
type Rules []Rule

// NewRules builds rules from dotted paths, keeping their order.
func NewRules(paths ...string) Rules {
	rs := make(Rules, 0, len(paths))
	for _, p := range paths {
		rs = append(rs, Rule{Path: p, segments: strings.Split(p, ".")})
	}
	return rs
}

// Lookup returns the raw value at the rule's location.
func (r Rule) Lookup(root map[string]any) (any, bool) {
	var cur any = root
	for _, seg := range r.segments {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at the rule's location as trimmed text. Objects,
// arrays and empty strings count as absent.
func (r Rule) String(root map[string]any) (string, bool) {
	v, ok := r.Lookup(root)
	if !ok {
		return "", false
	}
	s := scalarText(v)
	return s, s != ""
}

// First returns the first non-empty value and the rule that produced it.
func (rs Rules) First(root map[string]any) (string, Rule, bool) {
	for _, r := range rs {
		if s, ok := r.String(root); ok {
			return s, r, true
		}
	}
	return "", Rule{}, false
}

// Values returns every non-empty value in rule order.
func (rs Rules) Values(root map[string]any) []string {
	var out []string
	for _, r := range rs {
		if s, ok := r.String(root); ok {
			out = append(out, s)
		}
	}
	return out
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

var (
	EventTypeRules = NewRules("event_type", "type", "event", "webhook_event_type", "data.event_type")

	UserIDRules = NewRules(
		"metadata.user_id",
		"metadata.userId",
		"metadata.internal_user_id",
		"customer.external_id",
		"customer.externalId",
		"data.metadata.user_id",
	)

	EmailRules = NewRules(
		"customer.email",
		"data.customer.email",
		"data.Customer.email",
		"data.buyer.email",
		"data.email",
	)

	OrderIDRules = NewRules("data.order_id", "data.order_ref", "data.order.id", "data.id", "order_id")

	SubscriptionIDRules = NewRules(
		"data.subscription_id",
		"data.subscription.id",
		"data.Subscription.id",
		"data.subscription_code",
		"subscription_id",
	)

	TransactionIDRules = NewRules("data.transaction_id", "data.charge_id", "data.payment.id", "data.transaction.id")

	PlanIDRules = NewRules(
		"data.plan_id",
		"data.plan.id",
		"data.product_id",
		"data.product.id",
		"data.Product.product_id",
		"data.Subscription.plan.id",
	)

	PlanFrequencyRules = NewRules(
		"data.plan.frequency",
		"data.Subscription.plan.frequency",
		"data.billing_cycle",
		"data.interval",
		"data.plan.name",
		"data.plan_name",
		"data.product_name",
		"data.Product.product_name",
	)

	StatusRules = NewRules(
		"data.status",
		"data.order_status",
		"data.subscription.status",
		"data.Subscription.status",
		"status",
	)

	PeriodStartRules = NewRules("data.current_period_start", "data.Subscription.start_date", "data.approved_date")
	PeriodEndRules   = NewRules("data.current_period_end", "data.Subscription.next_payment", "data.next_payment")
	EventTimeRules   = NewRules("data.updated_at", "data.created_at", "created_at", "timestamp")

	AmountCentsRules = NewRules("data.amount_cents", "data.charge_amount", "data.Commissions.charge_amount")
	AmountMajorRules = NewRules("data.amount", "data.total", "data.price")
	CurrencyRules    = NewRules("data.currency", "data.Commissions.currency")
	MethodRules      = NewRules("data.payment_method", "data.payment.method")
	PaidAtRules      = NewRules("data.paid_at", "data.approved_date", "data.created_at")
)
