package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailgate/utils"
)

func newAuthApp(secret []byte) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := err.(*utils.AppError); ok {
				return c.Status(appErr.Code).SendString(appErr.Public())
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	app.Use(BearerAuth(AuthConfig{
		Secret:  secret,
		Skipper: func(c *fiber.Ctx) bool { return c.Path() == "/health" },
	}))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		caller, _ := c.Locals(CallerKey).(string)
		return c.SendString(caller)
	})
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func doGet(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestBearerAuth(t *testing.T) {
	secret := []byte("test-secret")
	app := newAuthApp(secret)

	valid, err := IssueToken(secret, "agent-1", time.Hour)
	require.NoError(t, err)
	noExpiry, err := IssueToken(secret, "agent-1", 0)
	require.NoError(t, err)
	forged, err := IssueToken([]byte("other-secret"), "agent-1", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, doGet(t, app, "/whoami", valid))
	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, app, "/whoami", ""))
	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, app, "/whoami", forged))
	assert.Equal(t, fiber.StatusOK, doGet(t, app, "/health", ""))

	// ttl of zero issues a token without expiry.
	assert.Equal(t, fiber.StatusOK, doGet(t, app, "/whoami", noExpiry))
}

func TestBearerAuthRejectsExpired(t *testing.T) {
	secret := []byte("test-secret")
	claims := jwt.RegisteredClaims{
		Subject:   "agent-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, newAuthApp(secret), "/whoami", token))
}

func TestBearerAuthRejectsOtherAlgorithms(t *testing.T) {
	secret := []byte("test-secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "x"}).SignedString(secret)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, newAuthApp(secret), "/whoami", token))
}

func TestBearerAuthDisabledWithoutSecret(t *testing.T) {
	assert.Equal(t, fiber.StatusOK, doGet(t, newAuthApp(nil), "/whoami", ""))
}
