package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/NutriFox/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	billing *controllers.BillingController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(billing *controllers.BillingController) *APIServer {
	return &APIServer{billing: billing}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetSubscription returns the subscription of the API key owner.
// Security is enforced via API key middleware attached in the router.
func (s *APIServer) GetSubscription(c *fiber.Ctx) error {
	return s.billing.HandleGetSubscription(c)
}

// GetUserSubscription returns the subscription of any user. The router
// guards /admin with RequireAdmin.
func (s *APIServer) GetUserSubscription(c *fiber.Ctx, userID string) error {
	return s.billing.HandleGetUserSubscription(c)
}
