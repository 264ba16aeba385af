package controllers

import (
	"invoicing-backend/middlewares"
	"invoicing-backend/services"

	"github.com/gofiber/fiber/v2"
)

// GET /api/invoices/:id/payments
func GetPayments(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	list, err := deps.Payments.List(c.UserContext(), db, businessID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"payments": list})
}

// POST /api/invoices/:id/payments
func RecordPayment(c *fiber.Ctx) error {
	var in services.PaymentInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	p, inv, err := deps.Payments.Record(c.UserContext(), db, businessID, c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment": p,
		"invoice": inv,
	})
}

// DELETE /api/invoices/:id/payments/:paymentId
func DeletePayment(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	inv, err := deps.Payments.Delete(c.UserContext(), db, businessID, c.Params("id"), c.Params("paymentId"))
	if err != nil {
		return err
	}
	return c.JSON(inv)
}

// GET /api/dashboard
func GetDashboard(c *fiber.Ctx) error {
	db, _, err := tenant(c)
	if err != nil {
		return err
	}
	stats, err := services.Dashboard(c.UserContext(), db, middlewares.GetSession(c).Business, deps.Now())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
