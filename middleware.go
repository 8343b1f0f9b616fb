package users

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ContextUserKey is where the bearer middleware stores the resolved user.
const ContextUserKey = "current_user"

// RequireBearer guards a route group with the API bearer token domain. It
// fails closed: a missing, malformed, expired, or mis-signed token, or a
// token whose user is gone or inactive, yields 401 and never partial trust.
func RequireBearer(auther *Auther) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := extractBearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return respondError(c, ErrTokenMalformed)
		}

		user, err := auther.CurrentUser(c.UserContext(), raw)
		if err != nil {
			return respondError(c, err)
		}

		c.Locals(ContextUserKey, user)
		return c.Next()
	}
}

// UserFromContext returns the user the bearer middleware authenticated.
func UserFromContext(c *fiber.Ctx) (*User, bool) {
	user, ok := c.Locals(ContextUserKey).(*User)
	return user, ok && user != nil
}

func extractBearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
