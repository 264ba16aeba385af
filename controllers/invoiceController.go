package controllers

import (
	"invoicing-backend/middlewares"
	"invoicing-backend/models"
	"invoicing-backend/services"
	"invoicing-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// GET /api/invoices?status=&client_id=&limit=&offset=
func GetInvoices(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	f := services.ListFilter{
		Status:   models.InvoiceStatus(c.Query("status")),
		ClientId: c.Query("client_id"),
		Limit:    utils.QueryInt(c.Query("limit"), 20, 100),
		Offset:   utils.QueryInt(c.Query("offset"), 0, 0),
	}
	switch f.Status {
	case "", models.StatusDraft, models.StatusSent, models.StatusPaid, models.StatusPartiallyPaid, models.StatusOverdue:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown status filter")
	}

	invoices, total, err := deps.Invoices.List(c.UserContext(), db, businessID, f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"invoices": invoices,
		"total":    total,
		"limit":    f.Limit,
		"offset":   f.Offset,
	})
}

// GET /api/invoices/:id
func GetInvoice(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	inv, err := deps.Invoices.Get(c.UserContext(), db, businessID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// POST /api/invoices
func CreateInvoice(c *fiber.Ctx) error {
	var in services.InvoiceInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	inv, err := deps.Invoices.Create(c.UserContext(), db, businessID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(inv)
}

// PUT /api/invoices/:id
func UpdateInvoice(c *fiber.Ctx) error {
	var in services.InvoiceInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	inv, err := deps.Invoices.Update(c.UserContext(), db, businessID, c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// DELETE /api/invoices/:id
func DeleteInvoice(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	if err := deps.Invoices.Delete(c.UserContext(), db, businessID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/invoices/:id/duplicate
func DuplicateInvoice(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	inv, err := deps.Invoices.Duplicate(c.UserContext(), db, businessID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(inv)
}

// POST /api/invoices/:id/send
// An email failure still answers 200: the invoice is unchanged and email_error says why.
func SendInvoice(c *fiber.Ctx) error {
	return deliver(c, false)
}

// POST /api/invoices/:id/resend
func ResendInvoice(c *fiber.Ctx) error {
	return deliver(c, true)
}

func deliver(c *fiber.Ctx, resend bool) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	res, err := deps.Invoices.Deliver(c.UserContext(), db, businessID, c.Params("id"), resend)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// POST /api/invoices/:id/mark-sent
func MarkInvoiceSent(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	inv, err := deps.Invoices.MarkSent(c.UserContext(), db, businessID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// GET /api/invoices/:id/versions
func GetInvoiceVersions(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	versions, err := deps.Invoices.Versions(c.UserContext(), db, businessID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"versions": versions})
}
