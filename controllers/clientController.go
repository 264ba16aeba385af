package controllers

import (
	"strings"

	"invoicing-backend/middlewares"
	"invoicing-backend/services"

	"github.com/gofiber/fiber/v2"
)

// GET /api/clients?q=
func GetClients(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	clients, err := services.ListClients(c.UserContext(), db, businessID, c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"clients": clients})
}

// GET /api/clients/:id
func GetClient(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	cl, err := services.GetClient(c.UserContext(), db, businessID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(cl)
}

// POST /api/clients
func CreateClient(c *fiber.Ctx) error {
	var in services.ClientInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	cl, err := services.CreateClient(c.UserContext(), db, businessID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(cl)
}

// PUT /api/clients/:id
func UpdateClient(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	var in services.ClientInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	cl, err := services.UpdateClient(c.UserContext(), db, businessID, id, in)
	if err != nil {
		return err
	}
	return c.JSON(cl)
}

// DELETE /api/clients/:id
func DeleteClient(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	if err := services.DeleteClient(c.UserContext(), db, businessID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
