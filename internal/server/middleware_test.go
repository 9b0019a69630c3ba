package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"project0/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_AuthRequired(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "frank")

	app := fiber.New()
	app.Get("/protected", env.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": currentUserID(c)})
	})
	app.Get("/api/ws", env.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": currentUserID(c)})
	})

	signed := func(claims jwt.MapClaims) string {
		str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return str
	}
	claims := func(issuer, audience string, exp time.Duration) jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.FormatUint(123, 10),
			"iss": issuer,
			"aud": audience,
			"exp": time.Now().Add(exp).Unix(),
			"jti": "test-jti-valid-length",
		}
	}
	valid, _, err := middleware.IssueToken(testSecret, 123, "frank", time.Now())
	require.NoError(t, err)

	ticket := func() string {
		tk, err := env.srv.authService.IssueWSTicket(context.Background(), s.userID)
		require.NoError(t, err)
		return tk
	}

	tests := []struct {
		name           string
		path           string
		authHeader     string
		cookie         string
		expectedStatus int
		expectedUser   uint
	}{
		{
			name:           "Valid Token",
			path:           "/protected",
			authHeader:     "Bearer " + valid,
			expectedStatus: http.StatusOK,
			expectedUser:   123,
		},
		{
			name:           "Expired Token",
			path:           "/protected",
			authHeader:     "Bearer " + signed(claims(middleware.TokenIssuer, middleware.TokenAudience, -time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Issuer",
			path:           "/protected",
			authHeader:     "Bearer " + signed(claims("wrong-issuer", middleware.TokenAudience, time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Audience",
			path:           "/protected",
			authHeader:     "Bearer " + signed(claims(middleware.TokenIssuer, "wrong-audience", time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Credentials",
			path:           "/protected",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Bearer Format",
			path:           "/protected",
			authHeader:     "Token " + valid,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Session Cookie",
			path:           "/protected",
			cookie:         s.cookie,
			expectedStatus: http.StatusOK,
			expectedUser:   s.userID,
		},
		{
			name:           "Unknown Session Cookie",
			path:           "/protected",
			cookie:         "not-a-session",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Ticket",
			path:           "/api/ws?ticket=" + ticket(),
			expectedStatus: http.StatusOK,
			expectedUser:   s.userID,
		},
		{
			name:           "Unknown Ticket On Socket Path",
			path:           "/api/ws?ticket=nope",
			authHeader:     "Bearer " + valid,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Unknown Ticket Elsewhere Falls Through",
			path:           "/protected?ticket=nope",
			authHeader:     "Bearer " + valid,
			expectedStatus: http.StatusOK,
			expectedUser:   123,
		},
		{
			name:           "Cookie Not Accepted On Socket Path",
			path:           "/api/ws",
			cookie:         s.cookie,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookie, Value: tt.cookie})
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus == http.StatusOK {
				var body map[string]uint
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.expectedUser, body["userID"])
			}
		})
	}
}

func TestServer_AuthRequired_TicketIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "gina")

	app := fiber.New()
	app.Get("/api/ws", env.srv.AuthRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	ticket, err := env.srv.authService.IssueWSTicket(context.Background(), s.userID)
	require.NoError(t, err)

	for i, want := range []int{http.StatusOK, http.StatusUnauthorized} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/ws?ticket="+ticket, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, "attempt %d", i+1)
	}
}

func TestServer_AdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "henry")
	admin := env.register(t, "iris")
	env.makeAdmin(t, admin.userID)

	resp := env.request(t, http.MethodGet, "/api/admin/analytics", user.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/admin/analytics", admin.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
