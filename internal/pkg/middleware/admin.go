package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/PayFox/internal/pkg/env"
)

// AdminBasicAuthFromEnv protects operator routes with ADMIN_USER and either
// ADMIN_PASSWORD_HASH (bcrypt, preferred) or ADMIN_PASSWORD.
func AdminBasicAuthFromEnv() fiber.Handler {
	user := env.GetEnv("ADMIN_USER", "admin")
	if hash := env.GetEnv("ADMIN_PASSWORD_HASH", ""); hash != "" {
		return AdminBasicAuthHashed(user, hash)
	}
	return AdminBasicAuth(user, env.GetEnv("ADMIN_PASSWORD", ""))
}

// AdminBasicAuth returns basic auth for a single operator account. An empty
// password disables the operator routes entirely.
func AdminBasicAuth(user, password string) fiber.Handler {
	return adminBasicAuth(user, password != "", func(p string) bool {
		return subtle.ConstantTimeCompare([]byte(p), []byte(password)) == 1
	})
}

// AdminBasicAuthHashed is AdminBasicAuth with a bcrypt password hash.
func AdminBasicAuthHashed(user, hash string) fiber.Handler {
	return adminBasicAuth(user, hash != "", func(p string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
	})
}

func adminBasicAuth(user string, enabled bool, checkPassword func(string) bool) fiber.Handler {
	if !enabled {
		log.Warn("[AdminAuth] No admin password configured, operator routes are disabled")
	}
	return basicauth.New(basicauth.Config{
		Realm: "PayFox Admin",
		Authorizer: func(u, p string) bool {
			if !enabled {
				return false
			}
			userOK := subtle.ConstantTimeCompare([]byte(u), []byte(user)) == 1
			passOK := checkPassword(p)
			return userOK && passOK
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="PayFox Admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		},
	})
}
