package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// GatewayAuthMiddleware admits only requests carrying the gateway's shared token. Every
// route sits behind it, the SSE stream included.
func GatewayAuthMiddleware(expectedToken string) fiber.Handler {
	if expectedToken == "" {
		log.Fatal("❌ VESTING_SERVICE_TOKEN is not set, service cannot authenticate Gateway")
	}
	expected := []byte(expectedToken)

	return func(c *fiber.Ctx) error {
		token, ok := gatewayToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			log.Printf("🚫 [GATEWAY_AUTH] Missing Authorization header for %s", c.Path())
			return unauthorized(c, "gateway authentication token missing")
		}
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			log.Printf("❌ [GATEWAY_AUTH] Invalid token for %s", c.Path())
			return unauthorized(c, "invalid gateway authentication token")
		}
		return c.Next()
	}
}

// gatewayToken accepts "Bearer <token>" and, from older gateway builds, the bare token.
func gatewayToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found {
		return header, true
	}
	if !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
		"code":  "unauthorized",
	})
}
