package billing

import (
	"strings"

	"github.com/ManuelReschke/NutriFox/internal/pkg/env"
)

const DefaultSignatureHeader = "X-Webhook-Signature"

// Config holds the webhook settings read from the environment.
type Config struct {
	WebhookSecret   string
	SignatureHeader string
	PlanIDMonthly   string
	PlanIDQuarterly string
	PlanIDAnnual    string
	DefaultCurrency string
	OrderingGuard   bool
}

// LoadConfig reads BILLING_* and PLAN_ID_* variables.
func LoadConfig() Config {
	return Config{
		WebhookSecret:   strings.TrimSpace(env.GetEnv("BILLING_WEBHOOK_SECRET", "")),
		SignatureHeader: strings.TrimSpace(env.GetEnv("BILLING_SIGNATURE_HEADER", DefaultSignatureHeader)),
		PlanIDMonthly:   strings.TrimSpace(env.GetEnv("PLAN_ID_MONTHLY", "")),
		PlanIDQuarterly: strings.TrimSpace(env.GetEnv("PLAN_ID_QUARTERLY", "")),
		PlanIDAnnual:    strings.TrimSpace(env.GetEnv("PLAN_ID_ANNUAL", "")),
		DefaultCurrency: strings.ToUpper(strings.TrimSpace(env.GetEnv("BILLING_DEFAULT_CURRENCY", "BRL"))),
		OrderingGuard:   env.GetEnvBool("BILLING_ORDERING_GUARD", false),
	}
}

// SignatureHeaderName is the transport header carrying the signature.
func (c Config) SignatureHeaderName() string {
	if c.SignatureHeader == "" {
		return DefaultSignatureHeader
	}
	return c.SignatureHeader
}

func (c Config) currency() string {
	if c.DefaultCurrency == "" {
		return "BRL"
	}
	return c.DefaultCurrency
}
