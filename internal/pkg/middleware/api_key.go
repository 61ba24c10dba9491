package middleware

import (
	"strings"
	"time"

	"github.com/ManuelReschke/NutriFox/app/models"
	"github.com/ManuelReschke/NutriFox/app/repository"
	"github.com/ManuelReschke/NutriFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NutriFox/internal/pkg/usercontext"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// usage timestamps are written at most once per window
const apiKeyTouchWindow = time.Minute

// APIKeyAuthMiddleware authenticates API requests with the global repositories.
func APIKeyAuthMiddleware(c *fiber.Ctx) error {
	return APIKeyAuth(repository.GetGlobalRepositories())(c)
}

// APIKeyAuth resolves the caller from an X-API-Key or Bearer header and stores
// the user context. Requests without a key continue anonymously; a key that
// does not resolve to an active user is rejected.
func APIKeyAuth(repos *repository.Repositories) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawKey := extractAPIKeyFromHeader(c)
		if rawKey == "" {
			usercontext.SetUserContext(c, usercontext.UserContext{})
			return c.Next()
		}
		if !models.LooksLikeAPIKey(rawKey) {
			return unauthorized(c, "invalid api key")
		}

		ctx := c.UserContext()
		user, settings, err := repos.User.WithContext(ctx).GetByAPIKeyHash(models.HashAPIKey(rawKey))
		if err != nil || user == nil || settings == nil || !settings.HasActiveAPIKey() {
			return unauthorized(c, "invalid api key")
		}
		if !user.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "account is not active",
			})
		}

		plan := entitlements.PlanFree
		sub, err := repos.Subscription.WithContext(ctx).GetByUserID(user.ID)
		if err != nil {
			log.Warnf("[APIKey] subscription lookup failed for user %s: %v", user.ID, err)
		} else {
			plan = entitlements.ForSubscription(sub).Plan
		}

		if settings.APIKeyLastUsedAt == nil || time.Since(*settings.APIKeyLastUsedAt) > apiKeyTouchWindow {
			settings.TouchAPIKeyUsage()
			if err := repos.UserSettings.Save(settings); err != nil {
				log.Warnf("[APIKey] could not update last used timestamp: %v", err)
			}
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     user.ID,
			Name:       user.Name,
			Email:      user.Email,
			IsLoggedIn: true,
			IsAdmin:    user.Role == models.ROLE_ADMIN,
			Plan:       string(plan),
		})
		c.Locals(usercontext.KeyAPIKeyAuth, true)
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Get("X-API-Key")); key != "" {
		return key
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}
