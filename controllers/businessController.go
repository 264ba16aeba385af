package controllers

import (
	"errors"

	"invoicing-backend/database"
	"invoicing-backend/middlewares"
	"invoicing-backend/services"
	"invoicing-backend/storage"

	"github.com/gofiber/fiber/v2"
)

// GET /api/me
func GetMe(c *fiber.Ctx) error {
	s := middlewares.GetSession(c)
	return c.JSON(fiber.Map{
		"user":     s.User,
		"business": s.Business,
	})
}

// POST /api/business
func CreateBusiness(c *fiber.Ctx) error {
	var in services.BusinessInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "database unavailable")
	}
	b, err := services.CreateBusiness(c.UserContext(), db, middlewares.GetSession(c).User.Id, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

// GET /api/business
func GetBusiness(c *fiber.Ctx) error {
	return c.JSON(middlewares.GetSession(c).Business)
}

// PUT /api/business
func UpdateBusiness(c *fiber.Ctx) error {
	var in services.BusinessInput
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	db, businessID, err := tenant(c)
	if err != nil {
		return err
	}
	b, err := services.UpdateBusiness(c.UserContext(), db, businessID, in)
	if err != nil {
		return err
	}
	return c.JSON(b)
}

type LogoUploadDTO struct {
	ContentType string `json:"content_type" validate:"required"`
}

// POST /api/business/logo-upload
// Returns a pre-signed PUT URL; the client uploads directly and then saves public_url as logo_url.
func CreateLogoUpload(c *fiber.Ctx) error {
	var in LogoUploadDTO
	if err := middlewares.BindAndValidate(c, &in); err != nil {
		return err
	}
	if deps.Storage == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "logo uploads are not configured")
	}
	up, err := deps.Storage.PresignLogoUpload(c.UserContext(), middlewares.GetSession(c).BusinessID(), in.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}
	return c.JSON(up)
}
