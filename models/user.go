package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User mirrors an identity-provider account. ExternalId is the provider's stable subject.
type User struct {
	Id         string    `json:"id" gorm:"primaryKey;size:36"`
	ExternalId string    `json:"-" gorm:"size:128;uniqueIndex;not null"`
	Email      string    `json:"email" gorm:"size:255;not null"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	ImageURL   string    `json:"image_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.Id == "" {
		user.Id = uuid.NewString()
	}
	return
}
