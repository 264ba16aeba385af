package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"invoicing-backend/database"
	"invoicing-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Idempotency replays the stored response for a repeated Idempotency-Key on mutating
// requests. Keys are scoped per business (per user before onboarding). It runs its own
// short transactions so the record survives a handler rollback.
func Idempotency() fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Idempotency-Key too long"})
		}

		session := GetSession(c)
		if session == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}
		scope := session.BusinessID()
		if scope == "" {
			scope = "user:" + session.User.Id
		}

		path := c.OriginalURL() // includes query string

		// method|path|body|scope|user
		h := sha256.New()
		for _, part := range [][]byte{[]byte(method), []byte(path), c.Body(), []byte(scope), []byte(session.User.Id)} {
			h.Write(part)
			h.Write([]byte{'\n'})
		}
		reqHash := hex.EncodeToString(h.Sum(nil))

		// ---- Phase 1: read or create the pending record
		var existing models.IdempotencyKey
		replayed := false
		err := database.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			err := tx.Where("business_id = ? AND key = ?", scope, key).First(&existing).Error
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
				}
				rec := models.IdempotencyKey{
					BusinessId:  scope,
					Key:         key,
					RequestHash: reqHash,
					Method:      method,
					Path:        path,
					UserId:      session.User.Id,
				}
				if e2 := tx.Create(&rec).Error; e2 != nil {
					// unique race: read again
					if e3 := tx.Where("business_id = ? AND key = ?", scope, key).First(&existing).Error; e3 != nil {
						return fiber.NewError(fiber.StatusInternalServerError, "idempotency create failed")
					}
				} else {
					existing = rec
				}
			}

			if existing.RequestHash != reqHash {
				return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
			}
			if existing.ResponseStatus != 0 && existing.ResponseBody != nil {
				replayed = true
				c.Set("Idempotent-Replayed", "true")
				c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
				c.Status(existing.ResponseStatus)
				return c.Send(existing.ResponseBody)
			}
			return nil
		})
		if err != nil || replayed {
			return err
		}

		if err := c.Next(); err != nil {
			// failed attempts may be retried with the same key
			database.DB.Where("business_id = ? AND key = ? AND response_status = 0", scope, key).
				Delete(&models.IdempotencyKey{})
			return err
		}

		// ---- Phase 2: store the response (best effort)
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			database.DB.Where("business_id = ? AND key = ? AND response_status = 0", scope, key).
				Delete(&models.IdempotencyKey{})
			return nil
		}
		now := time.Now().UTC()
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)

		if err := database.DB.Model(&models.IdempotencyKey{}).
			Where("business_id = ? AND key = ?", scope, key).
			Updates(map[string]any{
				"response_status": status,
				"response_body":   blob,
				"completed_at":    &now,
			}).Error; err != nil {
			log.Warn().Err(err).Str("key", key).Msg("idempotency store failed")
		}
		return nil
	}
}
