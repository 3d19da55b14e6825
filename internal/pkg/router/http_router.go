package router

import (
	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
	webhookLimiter fiber.Handler
	adminAuth      fiber.Handler
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

// NewHttpRouter returns a router whose limiter and admin auth come from the environment.
func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
