package middlewares

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const CronSecretHeader = "X-Cron-Secret"

// CronSecret guards scheduler endpoints with a shared secret. A bcrypt hash of the
// secret is preferred so the plain value never sits in the server config.
func CronSecret(secret, secretHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(CronSecretHeader)
		if got == "" || (secret == "" && secretHash == "") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid cron secret")
		}
		if secretHash != "" {
			if bcrypt.CompareHashAndPassword([]byte(secretHash), []byte(got)) != nil {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid cron secret")
			}
			return c.Next()
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid cron secret")
		}
		return c.Next()
	}
}
