package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayFox/internal/pkg/cache"
	"github.com/ManuelReschke/PayFox/internal/pkg/database"
)

// HandleHealth reports whether the store and the queue backend are reachable.
// Webhook intake is unavailable when either is down.
func HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{"database": "ok", "cache": "ok"}
	healthy := true

	if db := database.GetDB(); db == nil {
		checks["database"] = "not_configured"
		healthy = false
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unreachable"
		healthy = false
	}

	if err := cache.Ping(ctx); err != nil {
		checks["cache"] = "unreachable"
		healthy = false
	}

	status := fiber.StatusOK
	state := "ok"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": checks})
}
