package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestIssueAndParseToken(t *testing.T) {
	now := time.Now()
	signed, issued, err := IssueToken(testSecret, 42, "alice", now)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.JTI)

	claims, err := ParseToken(testSecret, signed)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, issued.JTI, claims.JTI)
	assert.WithinDuration(t, now.Add(TokenLifetime), claims.ExpiresAt, time.Second)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	_, _, err := IssueToken("", 1, "alice", time.Now())
	assert.Error(t, err)
}

func TestParseToken_Rejections(t *testing.T) {
	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.Itoa(7),
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{"empty", func() string { return "" }, ErrMissingToken},
		{"garbage", func() string { return "not-a-jwt" }, ErrInvalidToken},
		{"wrong secret", func() string { return sign(base(), "other-secret") }, ErrInvalidToken},
		{"expired", func() string {
			c := base()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return sign(c, testSecret)
		}, ErrInvalidToken},
		{"foreign issuer", func() string {
			c := base()
			c["iss"] = "someone-else"
			return sign(c, testSecret)
		}, ErrInvalidIssuer},
		{"foreign audience", func() string {
			c := base()
			c["aud"] = "someone-else"
			return sign(c, testSecret)
		}, ErrInvalidIssuer},
		{"numeric subject", func() string {
			c := base()
			c["sub"] = 7
			return sign(c, testSecret)
		}, ErrInvalidSubj},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(testSecret, tt.token())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(BearerToken(c))
	})

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def", "abc.def"},
		{"bearer abc.def", "abc.def"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		body := make([]byte, 64)
		n, _ := resp.Body.Read(body)
		assert.Equal(t, tt.want, string(body[:n]), tt.header)
	}
}
