package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"gorm-forestadmin/internal/engine"
)

// Middleware validates the Forest session token and stores the user with
// engine.SetUser.
func Middleware(secret string, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		tokenStr, err := token(c)
		if err != nil {
			return err
		}

		claims, err := ParseToken(tokenStr, secret)
		if err != nil {
			logger.Debug("rejected session token", zap.Error(err))
			return engine.UnauthorizedError("Invalid or expired token")
		}
		user, err := claims.User()
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		engine.SetUser(c, user)
		return c.Next()
	}
}

func token(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		if cookie := c.Cookies(SessionCookie); cookie != "" {
			return cookie, nil
		}
		return "", engine.UnauthorizedError("Missing auth token")
	}

	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
		return "", engine.UnauthorizedError("Invalid auth header format")
	}
	return value, nil
}
