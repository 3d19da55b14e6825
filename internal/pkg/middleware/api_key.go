package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

// KeyServiceName is the Locals key holding the matched key's index.
const KeyServiceName = "API_SERVICE_KEY"

// StatusAPIKeyFromEnv reads STATUS_API_KEY, a comma separated list so keys
// can be rotated without downtime.
func StatusAPIKeyFromEnv() fiber.Handler {
	return APIKeyAuthMiddleware(strings.Split(env.GetEnv("STATUS_API_KEY", ""), ","))
}

// APIKeyAuthMiddleware authenticates internal services calling the status
// read API. Requests are rejected when no key is configured.
func APIKeyAuthMiddleware(keys []string) fiber.Handler {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed = append(allowed, []byte(k))
		}
	}
	if len(allowed) == 0 {
		log.Warn("[APIKey] No service API key configured, status API will reject all requests")
	}

	return func(c *fiber.Ctx) error {
		if len(allowed) == 0 {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "API key auth not configured"})
		}

		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		for i, k := range allowed {
			if subtle.ConstantTimeCompare([]byte(apiKey), k) == 1 {
				c.Locals(KeyServiceName, i)
				return c.Next()
			}
		}

		log.Warnf("[APIKey] Invalid API key from %s on %s", c.IP(), c.Path())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
