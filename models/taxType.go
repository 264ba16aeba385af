package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaxType is a named percentage rate; at most one per business is the default.
type TaxType struct {
	Id         string          `json:"id" gorm:"primaryKey;size:36"`
	BusinessId string          `json:"-" gorm:"size:36;not null;index"`
	Name       string          `json:"name" gorm:"not null"`
	Rate       decimal.Decimal `json:"rate" gorm:"type:numeric(5,2);not null"`
	IsDefault  bool            `json:"is_default"`
}

func (taxType *TaxType) BeforeCreate(tx *gorm.DB) (err error) {
	if taxType.Id == "" {
		taxType.Id = uuid.NewString()
	}
	return
}
