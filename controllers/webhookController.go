package controllers

import (
	"errors"

	"invoicing-backend/cache"
	"invoicing-backend/database"
	"invoicing-backend/payments"
	"invoicing-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PaymentWebhook returns the handler for one processor's notifications. Only the configured
// processor is accepted; the body signature is checked before anything is read from it.
func PaymentWebhook(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := deps.Provider
		if p == nil || p.Name() != name {
			return fiber.NewError(fiber.StatusNotFound, "unknown webhook")
		}

		ev, err := p.ParseWebhook(c.Body(), c.Get(p.SignatureHeader()))
		if err != nil {
			if errors.Is(err, payments.ErrInvalidSignature) {
				return fiber.NewError(fiber.StatusBadRequest, "invalid signature")
			}
			return fiber.NewError(fiber.StatusBadRequest, "malformed event")
		}

		ctx := cache.DeferInvalidation(c.UserContext())
		err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return deps.Payments.HandleEvent(ctx, tx, ev)
		})
		switch {
		case err == nil:
			cache.FlushInvalidation(ctx)
		case errors.Is(err, services.ErrNotFound):
			// acknowledged so the processor stops retrying an event we can never apply
			log.Warn().Str("provider", name).Str("type", ev.Type).Str("invoice_id", ev.InvoiceID).Msg("webhook for unknown invoice")
		default:
			var ve *services.ValidationError
			if errors.As(err, &ve) {
				log.Warn().Err(err).Str("provider", name).Str("type", ev.Type).Msg("webhook rejected")
				return c.JSON(fiber.Map{"received": true})
			}
			return err
		}
		return c.JSON(fiber.Map{"received": true})
	}
}
