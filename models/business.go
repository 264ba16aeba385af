package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Business is the invoicing tenant; every other record hangs off BusinessId.
type Business struct {
	Id                  string          `json:"id" gorm:"primaryKey;size:36"`
	UserId              string          `json:"-" gorm:"size:36;not null;uniqueIndex"`
	User                *User           `json:"-" gorm:"foreignKey:UserId;references:Id"`
	Name                string          `json:"name" gorm:"not null"`
	Currency            string          `json:"currency" gorm:"size:3;not null"`
	TaxRate             decimal.Decimal `json:"tax_rate" gorm:"type:numeric(5,2);not null;default:0"`
	TaxNumber           string          `json:"tax_number"`
	AcceptETransfer     bool            `json:"accept_etransfer" gorm:"column:accept_etransfer"`
	AcceptCard          bool            `json:"accept_card"`
	PaymentInstructions string          `json:"payment_instructions"`
	Email               string          `json:"email"`
	Phone               string          `json:"phone"`
	Address             string          `json:"address"`
	City                string          `json:"city"`
	State               string          `json:"state"`
	PostalCode          string          `json:"postal_code"`
	Country             string          `json:"country"`
	LogoURL             string          `json:"logo_url"`
	PaymentTermsDays    int             `json:"payment_terms_days" gorm:"not null;default:30"`
	InvoicePrefix       string          `json:"invoice_prefix" gorm:"size:16;not null;default:'INV-'"`
	InvoiceSequence     int             `json:"-" gorm:"not null;default:0"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (business *Business) BeforeCreate(tx *gorm.DB) (err error) {
	if business.Id == "" {
		business.Id = uuid.NewString()
	}
	return
}
