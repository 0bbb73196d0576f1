package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"leadomation/utils"
)

// CronAuth protects job trigger endpoints. A request passes with a bearer
// token equal to cronSecret, or with a Supabase service-role JWT signed by
// jwtSecret. With neither secret configured every request passes.
func CronAuth(cronSecret, jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cronSecret == "" && jwtSecret == "" {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization required",
			})
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" || tokenParts[1] == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization format",
			})
		}
		token := tokenParts[1]

		if cronSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cronSecret)) == 1 {
			c.Locals("caller", "cron")
			return c.Next()
		}

		if jwtSecret != "" {
			if _, err := utils.ParseServiceToken(token, jwtSecret); err == nil {
				c.Locals("caller", utils.ServiceRole)
				return c.Next()
			}
		}

		utils.LogEvent("trigger_auth_rejected", map[string]interface{}{
			"path": c.Path(),
			"ip":   c.IP(),
		})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}
}

// AllowMethods rejects any other method with 405 and an empty body.
func AllowMethods(methods ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, m := range methods {
			if c.Method() == m {
				return c.Next()
			}
		}
		c.Set(fiber.HeaderAllow, strings.Join(methods, ", "))
		c.Status(fiber.StatusMethodNotAllowed)
		return nil
	}
}
