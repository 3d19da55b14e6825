package middleware

import (
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminBasicAuth(t *testing.T) {
	tests := []struct {
		name     string
		password string
		creds    string
		want     int
	}{
		{"valid credentials", "s3cret", "ops:s3cret", fiber.StatusOK},
		{"wrong password", "s3cret", "ops:nope", fiber.StatusUnauthorized},
		{"wrong user", "s3cret", "root:s3cret", fiber.StatusUnauthorized},
		{"no header", "s3cret", "", fiber.StatusUnauthorized},
		{"disabled without password", "", "ops:", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/admin", AdminBasicAuth("ops", tt.password), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
			if tt.creds != "" {
				req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(tt.creds)))
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAdminBasicAuthHashed(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/admin", AdminBasicAuthHashed("ops", string(hash)), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for creds, want := range map[string]int{
		"ops:s3cret": fiber.StatusOK,
		"ops:wrong":  fiber.StatusUnauthorized,
	} {
		req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, creds)
	}
}

func TestAdminBasicAuthFromEnv_PrefersHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	require.NoError(t, err)
	t.Setenv("ADMIN_USER", "ops")
	t.Setenv("ADMIN_PASSWORD", "plain")
	t.Setenv("ADMIN_PASSWORD_HASH", string(hash))

	app := fiber.New()
	app.Get("/admin", AdminBasicAuthFromEnv(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("ops:plain")))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
