package controllers

import (
	"invoicing-backend/database"
	"invoicing-backend/services"

	"github.com/gofiber/fiber/v2"
)

// POST /api/cron/recurring
func RunRecurring(c *fiber.Ctx) error {
	res, err := deps.Recurring.ProcessDue(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// POST /api/cron/overdue
func RunOverdueSweep(c *fiber.Ctx) error {
	res, err := services.SweepOverdue(c.UserContext(), database.DB, deps.Now())
	if err != nil {
		return err
	}
	return c.JSON(res)
}
