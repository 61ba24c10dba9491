package usercontext

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContext represents the caller of an API request
type UserContext struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Plan       string `json:"plan"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// SetUserContext stores the context and mirrors the user id for access logs.
func SetUserContext(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyUserContext, uc)
	c.Locals(KeyUserID, uc.UserID)
}

// IsLoggedIn checks if the current caller is authenticated
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current caller is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// ClientIP is the caller's address as resolved by fiber. Forwarding headers
// count only when the app trusts the connecting proxy.
func ClientIP(c *fiber.Ctx) string {
	ip := c.IP()
	// IPv4 mapped into IPv6
	if strings.HasPrefix(ip, "::ffff:") && strings.Contains(ip, ".") {
		return strings.TrimPrefix(ip, "::ffff:")
	}
	return ip
}

// GetUserID returns the current user's ID, or "" if anonymous
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}
