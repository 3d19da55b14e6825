package router

import (
	"github.com/ManuelReschke/PayFox/app/controllers"
	"github.com/ManuelReschke/PayFox/internal/pkg/ratelimit"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/health", controllers.HandleHealth)

	limit := h.webhookLimiter
	if limit == nil {
		limit = ratelimit.WebhookLimiter()
	}

	// Gateway webhooks: signature checked in the controller, no session or CSRF.
	webhooks := app.Group("/webhooks", limit)
	webhooks.Post("/stripe", controllers.HandleStripeWebhook)
}
