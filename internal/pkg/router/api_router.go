package router

import (
	"github.com/ManuelReschke/PayFox/app/controllers"
	"github.com/ManuelReschke/PayFox/internal/pkg/middleware"
	"github.com/ManuelReschke/PayFox/internal/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

type ApiRouter struct {
	limiter fiber.Handler
	keyAuth fiber.Handler
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limit := h.limiter
	if limit == nil {
		limit = ratelimit.APILimiter()
	}
	keyAuth := h.keyAuth
	if keyAuth == nil {
		keyAuth = middleware.StatusAPIKeyFromEnv()
	}

	api := app.Group("/api", limit)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "PayFox billing status API",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1", keyAuth)
	v1.Get("/accounts/:id/status", controllers.HandleAccountStatus)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
