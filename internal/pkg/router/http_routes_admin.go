package router

import (
	"github.com/ManuelReschke/PayFox/app/controllers"
	"github.com/ManuelReschke/PayFox/internal/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	auth := h.adminAuth
	if auth == nil {
		auth = middleware.AdminBasicAuthFromEnv()
	}

	adminGroup := app.Group("/admin/billing", auth)

	// Operator review of exhausted events
	adminGroup.Get("/events/failed", controllers.HandleAdminFailedEvents)
	adminGroup.Get("/events/:event_id", controllers.HandleAdminEventDetail)
	adminGroup.Post("/events/:event_id/replay", controllers.HandleAdminEventReplay)

	// Queue monitor
	adminGroup.Get("/queue", controllers.HandleAdminQueueStats)
}
