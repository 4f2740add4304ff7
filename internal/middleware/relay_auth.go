package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	requesterLocalsKey = "requester_id"
	requesterHeader    = "X-Requester-ID"
)

// RequesterID returns the chat user the relay issued the command for.
func RequesterID(c *fiber.Ctx) string {
	id, _ := c.Locals(requesterLocalsKey).(string)
	return id
}

// RelayAuth authenticates the chat relay. The relay signs an HS256 token per
// command whose subject is the chat user id. With an empty secret the
// requester is taken from the X-Requester-ID header instead, which is only
// meant for local development.
func RelayAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			requester := strings.TrimSpace(c.Get(requesterHeader))
			if requester == "" {
				return fiber.NewError(http.StatusUnauthorized, "missing requester")
			}
			c.Locals(requesterLocalsKey, requester)
			return c.Next()
		}

		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		requester, err := parseRelayToken(strings.TrimSpace(authz[len("Bearer "):]), []byte(secret))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(requesterLocalsKey, requester)
		return c.Next()
	}
}

func parseRelayToken(raw string, secret []byte) (string, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return "", errors.New("jwt invalid")
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("jwt missing subject")
	}
	return sub, nil
}

// RequireModerator rejects requesters outside the authorized set.
func RequireModerator(isModerator func(string) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !isModerator(RequesterID(c)) {
			return fiber.NewError(http.StatusForbidden, "❌ You are not authorized to use this command.")
		}
		return c.Next()
	}
}
