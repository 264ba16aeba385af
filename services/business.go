package services

import (
	"context"
	"regexp"
	"strings"

	"invoicing-backend/cache"
	"invoicing-backend/models"
	"invoicing-backend/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

var hundred = decimal.NewFromInt(100)

// BusinessInput is both the onboarding payload and the partial update; nil leaves a field alone.
type BusinessInput struct {
	Name                *string          `json:"name" validate:"omitempty,max=200"`
	Currency            *string          `json:"currency" validate:"omitempty,len=3"`
	TaxRate             *decimal.Decimal `json:"tax_rate"`
	TaxNumber           *string          `json:"tax_number" validate:"omitempty,max=64"`
	AcceptETransfer     *bool            `json:"accept_etransfer"`
	AcceptCard          *bool            `json:"accept_card"`
	PaymentInstructions *string          `json:"payment_instructions" validate:"omitempty,max=2000"`
	Email               *string          `json:"email" validate:"omitempty,email"`
	Phone               *string          `json:"phone" validate:"omitempty,max=50"`
	Address             *string          `json:"address"`
	City                *string          `json:"city"`
	State               *string          `json:"state"`
	PostalCode          *string          `json:"postal_code" validate:"omitempty,max=20"`
	Country             *string          `json:"country"`
	LogoURL             *string          `json:"logo_url" validate:"omitempty,url"`
	PaymentTermsDays    *int             `json:"payment_terms_days" validate:"omitempty,min=0,max=365"`
	InvoicePrefix       *string          `json:"invoice_prefix" validate:"omitempty,max=16"`
}

func (in *BusinessInput) check() error {
	utils.NormalizeDTO(in)
	if in.Name != nil && *in.Name == "" {
		return invalid("name", "must not be empty")
	}
	if in.Currency != nil {
		code := strings.ToUpper(*in.Currency)
		if !currencyCode.MatchString(code) {
			return invalid("currency", "must be an ISO 4217 code")
		}
		in.Currency = &code
	}
	if in.TaxRate != nil && (in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred)) {
		return invalid("tax_rate", "must be between 0 and 100")
	}
	return nil
}

// CreateBusiness onboards userID. A user owns at most one business.
func CreateBusiness(ctx context.Context, db *gorm.DB, userID string, in BusinessInput) (*models.Business, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	if in.Name == nil {
		return nil, invalid("name", "is required")
	}
	if in.Currency == nil {
		return nil, invalid("currency", "is required")
	}

	db = db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Business{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, conflict("business already exists")
	}

	b := models.Business{
		UserId:           userID,
		TaxRate:          decimal.Zero,
		AcceptETransfer:  true,
		PaymentTermsDays: DefaultPaymentTermsDays,
		InvoicePrefix:    DefaultInvoicePrefix,
	}
	if err := db.Create(&b).Error; err != nil {
		return nil, err
	}
	// zero values (accept_etransfer=false, terms=0) only make it through Updates
	if err := db.Model(&b).Updates(utils.Changes(&in)).Error; err != nil {
		return nil, err
	}
	return reloadBusiness(db, b.Id)
}

// UpdateBusiness applies a partial update to the caller's business.
func UpdateBusiness(ctx context.Context, db *gorm.DB, businessID string, in BusinessInput) (*models.Business, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	db = db.WithContext(ctx)
	if changes := utils.Changes(&in); len(changes) > 0 {
		if err := db.Model(&models.Business{}).Where("id = ?", businessID).Updates(changes).Error; err != nil {
			return nil, err
		}
	}
	cache.InvalidateBusiness(ctx, businessID)
	return reloadBusiness(db, businessID)
}

func reloadBusiness(db *gorm.DB, id string) (*models.Business, error) {
	var b models.Business
	if err := db.First(&b, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "business")
	}
	return &b, nil
}
