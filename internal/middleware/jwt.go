package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/autoeval/autoeval-go-api/internal/utils"
)

// JWTProtected returns a middleware that validates JWT bearer tokens and binds
// the teacher identity from the username claim.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			authorization = strings.TrimSpace(c.Query("token"))
			if authorization != "" {
				authorization = "Bearer " + authorization
			}
		}
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		username := extractUsernameFromClaims(claims)
		if username == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "username claim missing")
		}
		c.Locals("username", username)

		return c.Next()
	}
}

func extractUsernameFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"username", "sub", "preferred_username"} {
		if value, ok := claims[key]; ok {
			if username, ok := value.(string); ok && strings.TrimSpace(username) != "" {
				return strings.TrimSpace(username)
			}
		}
	}
	return ""
}

// UsernameFromContext returns the authenticated teacher's username, or "".
func UsernameFromContext(c *fiber.Ctx) string {
	if value := c.Locals("username"); value != nil {
		if username, ok := value.(string); ok {
			return username
		}
	}
	return ""
}
