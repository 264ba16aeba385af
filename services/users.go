package services

import (
	"context"
	"strings"

	"invoicing-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity is what the identity provider asserts about the caller.
type Identity struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	ImageURL   string
}

// EnsureUser upserts the local mirror of an identity-provider account.
func EnsureUser(ctx context.Context, db *gorm.DB, id Identity) (*models.User, error) {
	db = db.WithContext(ctx)
	user := models.User{
		ExternalId: id.ExternalID,
		Email:      strings.ToLower(strings.TrimSpace(id.Email)),
		FirstName:  id.FirstName,
		LastName:   id.LastName,
		ImageURL:   id.ImageURL,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "image_url", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		return nil, err
	}

	var out models.User
	if err := db.First(&out, "external_id = ?", id.ExternalID).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// BusinessOf returns the business owned by userID, or ErrNotFound before onboarding.
func BusinessOf(ctx context.Context, db *gorm.DB, userID string) (*models.Business, error) {
	var b models.Business
	if err := db.WithContext(ctx).First(&b, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err, "business")
	}
	return &b, nil
}
