// Package apiv1 provides the v1 HTTP API surface described by openapi.yml.
package apiv1

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

//go:embed openapi.yml
var rawSpec []byte

// Pong defines model for Pong.
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Liveness check
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// Subscription and entitlements of the API key owner
	// (GET /subscription)
	GetSubscription(c *fiber.Ctx) error
	// Subscription of any user (admin only)
	// (GET /admin/users/{user_id}/subscription)
	GetUserSubscription(c *fiber.Ctx, userID string) error
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

// MiddlewareFunc is applied per registered route.
type MiddlewareFunc fiber.Handler

// GetPing operation middleware
func (siw *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return siw.Handler.GetPing(c)
}

// GetSubscription operation middleware
func (siw *ServerInterfaceWrapper) GetSubscription(c *fiber.Ctx) error {
	return siw.Handler.GetSubscription(c)
}

// GetUserSubscription operation middleware
func (siw *ServerInterfaceWrapper) GetUserSubscription(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid format for parameter user_id: empty")
	}
	return siw.Handler.GetUserSubscription(c, userID)
}

// FiberServerOptions provides options for the Fiber server.
type FiberServerOptions struct {
	BaseURL     string
	Middlewares []MiddlewareFunc
}

// RegisterHandlers creates http.Handler with routing matching OpenAPI spec.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	RegisterHandlersWithOptions(router, si, FiberServerOptions{})
}

// RegisterHandlersWithOptions creates http.Handler with additional options
func RegisterHandlersWithOptions(router fiber.Router, si ServerInterface, options FiberServerOptions) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}

	for _, m := range options.Middlewares {
		router.Use(fiber.Handler(m))
	}

	router.Get(options.BaseURL+"/ping", wrapper.GetPing)
	router.Get(options.BaseURL+"/subscription", wrapper.GetSubscription)
	router.Get(options.BaseURL+"/admin/users/:user_id/subscription", wrapper.GetUserSubscription)
}

// RawSpec returns the embedded OpenAPI document.
func RawSpec() []byte {
	return rawSpec
}

// GetSwagger returns the parsed and validated OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("error loading OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return doc, nil
}
