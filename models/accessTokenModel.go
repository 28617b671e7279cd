package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenType string

const (
	TokenTypeAnonymous TokenType = "anonymous"
	TokenTypePersonal  TokenType = "personal"
)

// AccessToken is a bearer credential for one pitch. Possession of Token is
// the whole authorization. IsRevoked only ever goes from false to true and
// UseCount only ever grows.
type AccessToken struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	PitchID   uuid.UUID `gorm:"type:varchar(36);not null;index" json:"pitchId"`
	Token     string    `gorm:"uniqueIndex;size:64;not null" json:"token"`
	Type      TokenType `gorm:"size:16;not null" json:"type"`
	Email     *string   `gorm:"size:255" json:"email"`
	Label     *string   `gorm:"size:255" json:"label"`
	ExpiresAt *int64    `json:"expiresAt"` // epoch seconds, nil = never
	MaxUses   *int64    `json:"maxUses"`   // nil = unlimited
	UseCount  int64     `gorm:"not null;default:0" json:"useCount"`
	IsRevoked bool      `gorm:"not null;default:false" json:"isRevoked"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t *AccessToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Type == "" {
		t.Type = TokenTypeAnonymous
	}
	return nil
}
