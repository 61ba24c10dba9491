package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/app/repository"
	"github.com/ManuelReschke/NutriFox/internal/pkg/billing"
	"github.com/ManuelReschke/NutriFox/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/NutriFox/internal/pkg/usercontext"
)

const controllerSecret = "whsec_controller"

type fakeSubscriptions struct {
	subs     map[string]*models.Subscription
	payments map[string][]models.Payment
	err      error
}

func (f *fakeSubscriptions) WithContext(ctx context.Context) repository.SubscriptionRepository {
	return f
}

func (f *fakeSubscriptions) GetByUserID(userID string) (*models.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[userID], nil
}

func (f *fakeSubscriptions) ListPaymentsByUserID(userID string, limit int) ([]models.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payments[userID], nil
}

type fakeOutcomes struct {
	err error
}

func (f fakeOutcomes) Totals(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{"processed": 3, "rejected": 1}, f.err
}

func (f fakeOutcomes) Day(ctx context.Context, t time.Time) (map[string]int64, error) {
	return map[string]int64{"processed": 1}, f.err
}

type controllerFixture struct {
	app  *fiber.App
	repo *billingtest.Repository
	subs *fakeSubscriptions
}

func newControllerFixture(t *testing.T, secret string, caller *usercontext.UserContext) *controllerFixture {
	t.Helper()
	repo := billingtest.NewRepository()
	dir := billingtest.NewDirectory(map[string]string{"ana@example.com": "user-ana"})
	svc := billing.NewService(billing.Config{
		WebhookSecret:   secret,
		SignatureHeader: billing.DefaultSignatureHeader,
		PlanIDMonthly:   "plan-monthly",
		DefaultCurrency: "BRL",
	}, repo, dir)
	subs := &fakeSubscriptions{subs: map[string]*models.Subscription{}, payments: map[string][]models.Payment{}}
	bc := NewBillingController(svc, subs, fakeOutcomes{})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if caller != nil {
			usercontext.SetUserContext(c, *caller)
		}
		return c.Next()
	})
	app.Options("/webhooks/payments", HandleWebhookPreflight)
	app.Post("/webhooks/payments", bc.HandlePaymentWebhook)
	app.Get("/subscription", bc.HandleGetSubscription)
	app.Get("/admin/users/:user_id/subscription", bc.HandleGetUserSubscription)
	app.Get("/metrics/billing", bc.HandleBillingMetrics)
	return &controllerFixture{app: app, repo: repo, subs: subs}
}

func signBody(t *testing.T, body string) string {
	t.Helper()
	_, canonical, _, err := billing.Canonicalize([]byte(body))
	require.NoError(t, err)
	return billing.Sign(canonical, controllerSecret, billing.AlgorithmSHA256)
}

func postWebhook(t *testing.T, app *fiber.App, body, signature string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/webhooks/payments", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(billing.DefaultSignatureHeader, signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp.Body)
}

func decodeBody(t *testing.T, r io.Reader) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(r)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

const approvedBody = `{"event_type":"order_approved","customer":{"email":"ana@example.com"},"data":{"order_id":"ord-1","plan_id":"plan-monthly","amount":"19.90"}}`

func TestHandlePaymentWebhookProcessed(t *testing.T) {
	f := newControllerFixture(t, controllerSecret, nil)

	status, body := postWebhook(t, f.app, approvedBody, signBody(t, approvedBody))

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	sub, ok := f.repo.Subscription("user-ana")
	require.True(t, ok)
	assert.Equal(t, "premium_monthly", sub.Plan)
	assert.Len(t, f.repo.Payments(), 1)
}

func TestHandlePaymentWebhookDuplicateStillSucceeds(t *testing.T) {
	f := newControllerFixture(t, controllerSecret, nil)
	sig := signBody(t, approvedBody)

	status, _ := postWebhook(t, f.app, approvedBody, sig)
	require.Equal(t, fiber.StatusOK, status)
	status, body := postWebhook(t, f.app, approvedBody, sig)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Len(t, f.repo.Payments(), 1)
}

func TestHandlePaymentWebhookResponses(t *testing.T) {
	ignored := `{"event_type":"profile_updated","customer":{"email":"ana@example.com"}}`
	unknown := `{"event_type":"order_approved","customer":{"email":"nobody@example.com"},"data":{"order_id":"ord-2"}}`

	tests := []struct {
		name       string
		secret     string
		body       string
		signature  string
		wantStatus int
		wantKey    string
		wantValue  interface{}
	}{
		{"missing secret", "", approvedBody, "abc", fiber.StatusInternalServerError, "error", "server_misconfigured"},
		{"malformed body", controllerSecret, `{"event_type":`, "abc", fiber.StatusBadRequest, "error", "invalid_payload"},
		{"missing signature", controllerSecret, approvedBody, "", fiber.StatusUnauthorized, "error", "invalid_signature"},
		{"wrong signature", controllerSecret, approvedBody, strings.Repeat("ab", 32), fiber.StatusUnauthorized, "error", "invalid_signature"},
		{"irrelevant event", controllerSecret, ignored, "", fiber.StatusOK, "ignored", true},
		{"unknown identity", controllerSecret, unknown, "", fiber.StatusAccepted, "deferred", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newControllerFixture(t, tt.secret, nil)
			sig := tt.signature
			if sig == "" && tt.wantStatus != fiber.StatusUnauthorized {
				sig = signBody(t, tt.body)
			}

			status, body := postWebhook(t, f.app, tt.body, sig)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantValue, body[tt.wantKey])
			assert.Empty(t, f.repo.Deliveries())
		})
	}
}

func TestHandlePaymentWebhookPersistenceFailure(t *testing.T) {
	f := newControllerFixture(t, controllerSecret, nil)
	f.repo.FailOn["UpsertSubscription"] = true

	status, body := postWebhook(t, f.app, approvedBody, signBody(t, approvedBody))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "processing_failed", body["error"])
	assert.NotContains(t, body, "message")
}

func TestHandleWebhookPreflight(t *testing.T) {
	f := newControllerFixture(t, controllerSecret, nil)

	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodOptions, "/webhooks/payments", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), "POST")
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), "x-webhook-signature")
}

func TestHandleGetSubscriptionRequiresCaller(t *testing.T) {
	f := newControllerFixture(t, controllerSecret, nil)

	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, "/subscription", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHandleGetSubscription(t *testing.T) {
	caller := &usercontext.UserContext{UserID: "user-ana", IsLoggedIn: true}
	f := newControllerFixture(t, controllerSecret, caller)
	end := time.Now().Add(24 * time.Hour)
	f.subs.subs["user-ana"] = &models.Subscription{
		ID:               4,
		UserID:           "user-ana",
		Plan:             "premium_annual",
		Status:           models.SubscriptionStatusActive,
		CurrentPeriodEnd: &end,
	}
	f.subs.payments["user-ana"] = []models.Payment{{ID: 9, ProviderOrderID: "ord-9", AmountCents: 19900, Currency: "BRL"}}

	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, "/subscription", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp.Body)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "premium_annual", body["plan"])
	assert.Equal(t, "active", body["status"])
	limits := body["entitlements"].(map[string]interface{})
	assert.Equal(t, true, limits["premium"])
	assert.Equal(t, true, limits["ai_chat"])
	assert.Len(t, body["payments"], 1)
}

func TestHandleGetSubscriptionWithoutRow(t *testing.T) {
	caller := &usercontext.UserContext{UserID: "user-new", IsLoggedIn: true}
	f := newControllerFixture(t, controllerSecret, caller)

	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, "/subscription", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp.Body)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "free", body["plan"])
	assert.Nil(t, body["subscription"])
}

func TestHandleGetUserSubscriptionStoreError(t *testing.T) {
	f := newControllerFixture(t, controllerSecret, nil)
	f.subs.err = errors.New("db down")

	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, "/admin/users/user-ana/subscription", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestHandleBillingMetrics(t *testing.T) {
	f := newControllerFixture(t, controllerSecret, nil)

	resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics/billing", nil))
	require.NoError(t, err)
	body := decodeBody(t, resp.Body)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["totals"].(map[string]interface{})["processed"])
	assert.Equal(t, float64(1), body["today"].(map[string]interface{})["processed"])
}
