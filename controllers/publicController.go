package controllers

import (
	"fmt"

	"invoicing-backend/database"
	"invoicing-backend/models"
	"invoicing-backend/pdf"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// PaymentOptions tells the public page which ways to pay it may offer.
type PaymentOptions struct {
	Card         bool   `json:"card"`
	ETransfer    bool   `json:"etransfer"`
	Instructions string `json:"instructions,omitempty"`
	PayURL       string `json:"pay_url,omitempty"`
}

func paymentOptions(inv *models.Invoice) PaymentOptions {
	b := inv.Business
	open := inv.Status != models.StatusDraft && inv.Balance().IsPositive()
	opts := PaymentOptions{
		Card:      open && deps.Provider != nil && b.AcceptCard && inv.PaymentMethod.AllowsCard(),
		ETransfer: open && b.AcceptETransfer && inv.PaymentMethod.AllowsETransfer(),
	}
	if opts.ETransfer {
		opts.Instructions = b.PaymentInstructions
	}
	if opts.Card {
		opts.PayURL = fmt.Sprintf("/api/public/invoices/%s/pay", inv.ShareToken)
	}
	return opts
}

// GET /api/public/invoices/:token
func GetPublicInvoice(c *fiber.Ctx) error {
	inv, err := deps.Invoices.GetByShareToken(c.UserContext(), database.DB, c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"invoice": inv,
		"payment": paymentOptions(inv),
	})
}

// GET /api/public/invoices/:token/pdf
func GetPublicInvoicePDF(c *fiber.Ctx) error {
	inv, err := deps.Invoices.GetByShareToken(c.UserContext(), database.DB, c.Params("token"))
	if err != nil {
		return err
	}
	data, err := pdf.RenderInvoice(inv)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="invoice-%s.pdf"`, inv.InvoiceNumber))
	return c.Send(data)
}

// POST /api/public/invoices/:token/pay
func CreatePublicPaymentLink(c *fiber.Ctx) error {
	if deps.Provider == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "online payments are not configured")
	}
	link, err := deps.Payments.CreateLink(c.UserContext(), database.DB, c.Params("token"))
	if err != nil {
		return err
	}
	log.Info().Str("reference", link.Reference).Msg("payment link created")
	return c.JSON(fiber.Map{"url": link.URL})
}
