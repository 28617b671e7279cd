package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the pitch owner. A deployment normally has exactly one.
type User struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	APIKey       *string   `gorm:"uniqueIndex;size:64" json:"-"` // CLI credential
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
