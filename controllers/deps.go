package controllers

import (
	"time"

	"invoicing-backend/database"
	"invoicing-backend/middlewares"
	"invoicing-backend/payments"
	"invoicing-backend/services"
	"invoicing-backend/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps are the collaborators handlers need. Set once at startup with Configure.
type Deps struct {
	Invoices  *services.InvoiceService
	Payments  *services.PaymentService
	Recurring *services.RecurringService
	Provider  payments.Provider
	Storage   *storage.Store // nil when object storage is not configured
	Now       func() time.Time
}

var deps Deps

func Configure(d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	deps = d
}

// tenant returns the request DB and the caller's business id.
func tenant(c *fiber.Ctx) (*gorm.DB, string, error) {
	db, err := database.GetTenantDB(c)
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusInternalServerError, "database unavailable")
	}
	return db, middlewares.GetSession(c).BusinessID(), nil
}
