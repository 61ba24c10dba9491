package router

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/NutriFox/app/controllers"
	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/app/repository"
	"github.com/ManuelReschke/NutriFox/internal/pkg/billing"
	"github.com/ManuelReschke/NutriFox/internal/pkg/billing/billingtest"
	"github.com/ManuelReschke/NutriFox/internal/pkg/ratelimit"
	"github.com/ManuelReschke/NutriFox/internal/pkg/usercontext"
)

type emptySubscriptions struct{}

func (emptySubscriptions) WithContext(ctx context.Context) repository.SubscriptionRepository {
	return emptySubscriptions{}
}

func (emptySubscriptions) GetByUserID(userID string) (*models.Subscription, error) {
	return nil, nil
}

func (emptySubscriptions) ListPaymentsByUserID(userID string, limit int) ([]models.Payment, error) {
	return nil, nil
}

type zeroOutcomes struct{}

func (zeroOutcomes) Totals(ctx context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (zeroOutcomes) Day(ctx context.Context, t time.Time) (map[string]int64, error) {
	return map[string]int64{}, nil
}

// headerAuth trusts X-Test-User and X-Test-Admin instead of API keys.
func headerAuth(c *fiber.Ctx) error {
	if id := c.Get("X-Test-User"); id != "" {
		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     id,
			IsLoggedIn: true,
			IsAdmin:    c.Get("X-Test-Admin") == "1",
		})
	}
	return c.Next()
}

func pass(c *fiber.Ctx) error { return c.Next() }

func newRoutedApp(metricsUsers map[string]string) *fiber.App {
	svc := billing.NewService(billing.Config{WebhookSecret: "secret"}, billingtest.NewRepository(), billingtest.NewDirectory(nil))
	bc := controllers.NewBillingController(svc, emptySubscriptions{}, zeroOutcomes{})

	app := fiber.New()
	setup(app,
		&HttpRouter{billing: bc, MetricsUsers: metricsUsers},
		&ApiRouter{billing: bc, Limiter: pass, Auth: headerAuth, CallerLimiter: pass},
	)
	return app
}

func TestRoutes(t *testing.T) {
	app := newRoutedApp(map[string]string{"admin": "pw"})

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		status  int
	}{
		{"health", fiber.MethodGet, "/healthz", nil, fiber.StatusOK},
		{"webhook preflight", fiber.MethodOptions, "/webhooks/payments", nil, fiber.StatusNoContent},
		{"webhook without signature", fiber.MethodPost, "/webhooks/payments", nil, fiber.StatusBadRequest},
		{"metrics without credentials", fiber.MethodGet, "/metrics/billing", nil, fiber.StatusUnauthorized},
		{"metrics with credentials", fiber.MethodGet, "/metrics/billing", map[string]string{"Authorization": "Basic YWRtaW46cHc="}, fiber.StatusOK},
		{"api ping", fiber.MethodGet, "/api/v1/ping", nil, fiber.StatusOK},
		{"subscription anonymous", fiber.MethodGet, "/api/v1/subscription", nil, fiber.StatusUnauthorized},
		{"subscription as user", fiber.MethodGet, "/api/v1/subscription", map[string]string{"X-Test-User": "u1"}, fiber.StatusOK},
		{"admin route as user", fiber.MethodGet, "/api/v1/admin/users/u2/subscription", map[string]string{"X-Test-User": "u1"}, fiber.StatusForbidden},
		{"admin route as admin", fiber.MethodGet, "/api/v1/admin/users/u2/subscription", map[string]string{"X-Test-User": "a1", "X-Test-Admin": "1"}, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestMetricsDisabledWithoutCredentials(t *testing.T) {
	app := newRoutedApp(nil)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics/billing", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestMetricsUsersFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("METRICS_PASSWORD", "")
	assert.Nil(t, metricsUsersFromEnv())

	t.Setenv("METRICS_USER", "ops")
	t.Setenv("METRICS_PASSWORD", "s3cret")
	assert.Equal(t, map[string]string{"ops": "s3cret"}, metricsUsersFromEnv())
}

func TestAPICallerLimitAppliesAfterAuth(t *testing.T) {
	svc := billing.NewService(billing.Config{WebhookSecret: "secret"}, billingtest.NewRepository(), billingtest.NewDirectory(nil))
	bc := controllers.NewBillingController(svc, emptySubscriptions{}, zeroOutcomes{})
	limits := ratelimit.Config{Max: 1, AddressMax: 100, Window: time.Minute}

	app := fiber.New()
	(&ApiRouter{
		billing:       bc,
		Limiter:       ratelimit.NewAddressLimiter(limits),
		Auth:          headerAuth,
		CallerLimiter: ratelimit.NewCallerLimiter(limits),
	}).InstallRouter(app)

	get := func(user string) int {
		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/ping", nil)
		req.Header.Set("X-Test-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}
	assert.Equal(t, fiber.StatusOK, get("u1"))
	assert.Equal(t, fiber.StatusTooManyRequests, get("u1"))
	assert.Equal(t, fiber.StatusOK, get("u2"))
}
