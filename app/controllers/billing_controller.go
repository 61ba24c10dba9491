package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/app/repository"
	"github.com/ManuelReschke/NutriFox/internal/pkg/billing"
	"github.com/ManuelReschke/NutriFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NutriFox/internal/pkg/usercontext"
)

const recentPaymentsLimit = 10

// OutcomeReader reads the webhook outcome counters.
type OutcomeReader interface {
	Totals(ctx context.Context) (map[string]int64, error)
	Day(ctx context.Context, t time.Time) (map[string]int64, error)
}

// BillingController serves the payment webhook and the subscription reader API
type BillingController struct {
	service       *billing.Service
	subscriptions repository.SubscriptionRepository
	outcomes      OutcomeReader
}

// NewBillingController creates a billing controller from its collaborators
func NewBillingController(service *billing.Service, subscriptions repository.SubscriptionRepository, outcomes OutcomeReader) *BillingController {
	return &BillingController{
		service:       service,
		subscriptions: subscriptions,
		outcomes:      outcomes,
	}
}

var billingController *BillingController

// InitializeBillingController installs the controller used by the router
func InitializeBillingController(service *billing.Service, subscriptions repository.SubscriptionRepository, outcomes OutcomeReader) {
	billingController = NewBillingController(service, subscriptions, outcomes)
}

// GetBillingController returns the installed billing controller
func GetBillingController() *BillingController {
	if billingController == nil {
		panic("billing controller not initialized. Call InitializeBillingController first.")
	}
	return billingController
}

// HandlePaymentWebhook ingests one payment provider notification.
func (bc *BillingController) HandlePaymentWebhook(c *fiber.Ctx) error {
	setCORSHeaders(c)

	// fasthttp reuses the body buffer after the handler returns
	body := append([]byte(nil), c.Body()...)
	header := bc.service.Config().SignatureHeaderName()

	res, err := bc.service.ProcessWebhook(c.UserContext(), billing.Request{
		Body:            body,
		SignatureHeader: c.Get(header),
		ReceivedAt:      time.Now(),
	})
	if err != nil {
		return webhookErrorResponse(c, res, err)
	}

	switch res.Outcome {
	case billing.OutcomeIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "ignored": true})
	case billing.OutcomeDeferred:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"deferred": true,
			"message":  "no matching user for this event",
		})
	default:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	}
}

func webhookErrorResponse(c *fiber.Ctx, res billing.Result, err error) error {
	switch {
	case errors.Is(err, billing.ErrConfiguration):
		log.Errorf("[Billing] webhook rejected, service misconfigured: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "server_misconfigured"})
	case errors.Is(err, billing.ErrPayloadParse):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid_payload"})
	case errors.Is(err, billing.ErrAuthentication):
		log.Warnf("[Billing] webhook signature rejected from %s (correlation %s)", usercontext.ClientIP(c), res.CorrelationID)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "invalid_signature"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "processing_failed"})
	}
}

// HandleWebhookPreflight answers CORS preflight requests for the webhook.
func HandleWebhookPreflight(c *fiber.Ctx) error {
	setCORSHeaders(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func setCORSHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "authorization, x-client-info, apikey, content-type, x-webhook-signature")
}

// HandleGetSubscription returns the converged subscription of the API caller.
func (bc *BillingController) HandleGetSubscription(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}
	return bc.subscriptionResponse(c, usercontext.GetUserID(c))
}

// HandleGetUserSubscription returns any user's subscription (admin only).
func (bc *BillingController) HandleGetUserSubscription(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "user_id missing")
	}
	return bc.subscriptionResponse(c, userID)
}

func (bc *BillingController) subscriptionResponse(c *fiber.Ctx, userID string) error {
	repo := bc.subscriptions.WithContext(c.UserContext())
	sub, err := repo.GetByUserID(userID)
	if err != nil {
		log.Errorf("[Billing] loading subscription for %s failed: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscription")
	}
	payments, err := repo.ListPaymentsByUserID(userID, recentPaymentsLimit)
	if err != nil {
		log.Errorf("[Billing] loading payments for %s failed: %v", userID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load payments")
	}

	limits := entitlements.ForSubscription(sub)
	response := fiber.Map{
		"user_id":      userID,
		"plan":         limits.Plan,
		"status":       models.SubscriptionStatusIncomplete,
		"subscription": nil,
		"entitlements": limits,
		"payments":     paymentsResponse(payments),
	}
	if sub != nil {
		response["status"] = sub.Status
		response["subscription"] = fiber.Map{
			"id":                       sub.ID,
			"plan":                     sub.Plan,
			"status":                   sub.Status,
			"current_period_start":     formatTimePtr(sub.CurrentPeriodStart),
			"current_period_end":       formatTimePtr(sub.CurrentPeriodEnd),
			"provider_subscription_id": sub.ProviderSubscriptionID,
			"provider_plan_id":         sub.ProviderPlanID,
			"last_event_type":          sub.LastEventType,
			"last_event_at":            formatTimePtr(sub.LastEventAt),
			"updated_at":               sub.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	return c.JSON(response)
}

func paymentsResponse(payments []models.Payment) []fiber.Map {
	out := make([]fiber.Map, 0, len(payments))
	for _, p := range payments {
		out = append(out, fiber.Map{
			"id":                p.ID,
			"plan":              p.Plan,
			"amount_cents":      p.AmountCents,
			"currency":          p.Currency,
			"payment_method":    p.PaymentMethod,
			"provider_order_id": p.ProviderOrderID,
			"payment_status":    p.PaymentStatus,
			"paid_at":           p.PaidAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// HandleBillingMetrics reports webhook outcome counters.
func (bc *BillingController) HandleBillingMetrics(c *fiber.Ctx) error {
	if bc.outcomes == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "unavailable", "Outcome counters are not configured")
	}
	ctx := c.UserContext()
	totals, err := bc.outcomes.Totals(ctx)
	if err != nil {
		log.Warnf("[Billing] reading outcome totals failed: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "unavailable", "Failed to read counters")
	}
	now := time.Now().UTC()
	today, err := bc.outcomes.Day(ctx, now)
	if err != nil {
		log.Warnf("[Billing] reading daily outcomes failed: %v", err)
		return jsonError(c, fiber.StatusServiceUnavailable, "unavailable", "Failed to read counters")
	}
	return c.JSON(fiber.Map{
		"totals": totals,
		"today":  today,
		"date":   now.Format("2006-01-02"),
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
