package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SavedItem struct {
	Id          string          `json:"id" gorm:"primaryKey;size:36"`
	BusinessId  string          `json:"-" gorm:"size:36;not null;index"`
	Description string          `json:"description" gorm:"not null"`
	Rate        decimal.Decimal `json:"rate" gorm:"type:numeric(12,2);not null"`
}

func (item *SavedItem) BeforeCreate(tx *gorm.DB) (err error) {
	if item.Id == "" {
		item.Id = uuid.NewString()
	}
	return
}
