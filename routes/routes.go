package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"invoicing-backend/controllers"
	"invoicing-backend/middlewares"
)

type Options struct {
	JWTSecret      string
	JWTIssuer      string
	CronSecret     string
	CronSecretHash string
	// Per-IP budget of the unauthenticated invoice pages.
	PublicRateMax    int
	PublicRateWindow time.Duration
}

// Register wires all HTTP routes. Unauthenticated routes come first: the protected group's
// middleware matches every /api path registered after it.
func Register(app *fiber.App, opts Options) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Public invoice pages (share token is the only credential)
	public := api.Group("/public", limiter.New(limiter.Config{
		Max:        opts.PublicRateMax,
		Expiration: opts.PublicRateWindow,
	}))
	public.Get("/invoices/:token", controllers.GetPublicInvoice)
	public.Get("/invoices/:token/pdf", controllers.GetPublicInvoicePDF)
	public.Post("/invoices/:token/pay", controllers.CreatePublicPaymentLink)

	// Processor webhooks (signature verified)
	api.Post("/webhooks/stripe", controllers.PaymentWebhook("stripe"))
	api.Post("/webhooks/razorpay", controllers.PaymentWebhook("razorpay"))

	// Scheduler triggers
	cron := api.Group("/cron", middlewares.CronSecret(opts.CronSecret, opts.CronSecretHash))
	cron.Post("/recurring", controllers.RunRecurring)
	cron.Post("/overdue", controllers.RunOverdueSweep)

	// Protected endpoints (identity-provider JWT)
	protected := api.Group("")
	protected.Use(middlewares.Authenticate([]byte(opts.JWTSecret), opts.JWTIssuer))

	// Idempotency guard FIRST (not tied to request TX)
	protected.Use(middlewares.Idempotency())

	// Then the per-request transaction (commits/rolls back)
	protected.Use(middlewares.TenantTx())

	// Available before onboarding
	protected.Get("/me", controllers.GetMe)
	protected.Post("/business", controllers.CreateBusiness)

	// Everything below needs a business
	biz := protected.Group("", middlewares.RequireBusiness())

	biz.Get("/business", controllers.GetBusiness)
	biz.Put("/business", controllers.UpdateBusiness)
	biz.Post("/business/logo-upload", controllers.CreateLogoUpload)

	biz.Get("/dashboard", controllers.GetDashboard)

	// Clients
	biz.Get("/clients", controllers.GetClients)
	biz.Post("/clients", controllers.CreateClient)
	biz.Get("/clients/:id", controllers.GetClient)
	biz.Put("/clients/:id", controllers.UpdateClient)
	biz.Delete("/clients/:id", controllers.DeleteClient)

	// Tax types
	biz.Get("/tax-types", controllers.GetTaxTypes)
	biz.Post("/tax-types", controllers.CreateTaxType)
	biz.Put("/tax-types/:id", controllers.UpdateTaxType)
	biz.Delete("/tax-types/:id", controllers.DeleteTaxType)

	// Saved items
	biz.Get("/saved-items", controllers.GetSavedItems)
	biz.Post("/saved-items", controllers.CreateSavedItem)
	biz.Put("/saved-items/:id", controllers.UpdateSavedItem)
	biz.Delete("/saved-items/:id", controllers.DeleteSavedItem)

	// Invoices
	biz.Get("/invoices", controllers.GetInvoices)
	biz.Post("/invoices", controllers.CreateInvoice)
	biz.Get("/invoices/:id", controllers.GetInvoice)
	biz.Put("/invoices/:id", controllers.UpdateInvoice)
	biz.Delete("/invoices/:id", controllers.DeleteInvoice)
	biz.Post("/invoices/:id/duplicate", controllers.DuplicateInvoice)
	biz.Post("/invoices/:id/send", controllers.SendInvoice)
	biz.Post("/invoices/:id/resend", controllers.ResendInvoice)
	biz.Post("/invoices/:id/mark-sent", controllers.MarkInvoiceSent)
	biz.Get("/invoices/:id/versions", controllers.GetInvoiceVersions)

	// Payments
	biz.Get("/invoices/:id/payments", controllers.GetPayments)
	biz.Post("/invoices/:id/payments", controllers.RecordPayment)
	biz.Delete("/invoices/:id/payments/:paymentId", controllers.DeletePayment)
}
