package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"mailgate/utils"
)

// CallerKey is the Locals key holding the authenticated token subject
const CallerKey = "caller"

// AuthConfig holds bearer-token authentication configuration
type AuthConfig struct {
	Secret  []byte
	Skipper func(*fiber.Ctx) bool
}

// BearerAuth requires an HS256-signed JWT in the Authorization header. With
// an empty secret every request passes through.
func BearerAuth(cfg AuthConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(cfg.Secret) == 0 || (cfg.Skipper != nil && cfg.Skipper(c)) {
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return utils.UnauthorizedError("missing bearer token", nil)
		}

		token, err := jwt.Parse(strings.TrimSpace(raw), func(t *jwt.Token) (interface{}, error) {
			return cfg.Secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			utils.Log.WithField("ip", c.IP()).Warn("Rejected bearer token: %v", err)
			return utils.UnauthorizedError("invalid bearer token", err)
		}

		subject, _ := token.Claims.GetSubject()
		c.Locals(CallerKey, subject)
		return c.Next()
	}
}

// IssueToken signs a token for subject, valid for ttl (no expiry when ttl
// is zero).
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
