package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"project0/internal/config"
	"project0/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontendOrigin = "http://localhost:5173"

func corsApp(t *testing.T) *fiber.App {
	t.Helper()
	srv := &Server{config: &config.Config{AllowedOrigins: frontendOrigin + ",https://app.project0.dev"}}
	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Post("/api/generate", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestCORS_Preflight(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		allowOrigin string
	}{
		{"frontend", frontendOrigin, frontendOrigin},
		{"second origin", "https://app.project0.dev", "https://app.project0.dev"},
		{"unknown origin", "https://evil.example", ""},
	}

	app := corsApp(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.allowOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
			if tt.allowOrigin == "" {
				return
			}
			assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
			assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
			assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
			assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
		})
	}
}

func TestGlobalLimiter_KeepsCORSAndSkipsPreflight(t *testing.T) {
	app := corsApp(t)

	post := func() *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		req.Header.Set("Origin", frontendOrigin)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	for i := 0; i < 100; i++ {
		resp := post()
		_ = resp.Body.Close()
		require.Equal(t, fiber.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp := post()
	body := decodeBody[models.ErrorResponse](t, resp)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, frontendOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, body.Error, "Too many requests")

	preflight := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	preflight.Header.Set("Origin", frontendOrigin)
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := app.Test(preflight, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
