package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Client struct {
	Id          string    `json:"id" gorm:"primaryKey;size:36"`
	BusinessId  string    `json:"-" gorm:"size:36;not null;index"`
	Name        string    `json:"name" gorm:"not null"`
	CompanyName string    `json:"company_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	PostalCode  string    `json:"postal_code"`
	Country     string    `json:"country"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (client *Client) BeforeCreate(tx *gorm.DB) (err error) {
	if client.Id == "" {
		client.Id = uuid.NewString()
	}
	return
}
