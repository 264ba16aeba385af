package controllers

import (
	"invoicing-backend/middlewares"
	"invoicing-backend/services"

	"github.com/gofiber/fiber/v2"
)

// GET /api/tax-types
func GetTaxTypes(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	out, err := services.ListTaxTypes(c.UserContext(), db, businessID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tax_types": out})
}

// POST /api/tax-types
func CreateTaxType(c *fiber.Ctx) error {
	var in services.TaxTypeInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	tt, err := services.CreateTaxType(c.UserContext(), db, businessID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tt)
}

// PUT /api/tax-types/:id
func UpdateTaxType(c *fiber.Ctx) error {
	var in services.TaxTypeInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	tt, err := services.UpdateTaxType(c.UserContext(), db, businessID, c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(tt)
}

// DELETE /api/tax-types/:id
func DeleteTaxType(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	if err := services.DeleteTaxType(c.UserContext(), db, businessID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/saved-items
func GetSavedItems(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	out, err := services.ListSavedItems(c.UserContext(), db, businessID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"saved_items": out})
}

// POST /api/saved-items
func CreateSavedItem(c *fiber.Ctx) error {
	var in services.SavedItemInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	it, err := services.CreateSavedItem(c.UserContext(), db, businessID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(it)
}

// PUT /api/saved-items/:id
func UpdateSavedItem(c *fiber.Ctx) error {
	var in services.SavedItemInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	it, err := services.UpdateSavedItem(c.UserContext(), db, businessID, c.Params("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(it)
}

// DELETE /api/saved-items/:id
func DeleteSavedItem(c *fiber.Ctx) error {
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	if err := services.DeleteSavedItem(c.UserContext(), db, businessID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
