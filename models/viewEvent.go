package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ViewEvent is one viewing session. SessionID ties the start call and the
// end-of-session beacon to the same row; Duration is written at most once.
type ViewEvent struct {
	ID        uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	PitchID   uuid.UUID  `gorm:"type:varchar(36);not null;index" json:"pitchId"`
	TokenID   *uuid.UUID `gorm:"type:varchar(36);index" json:"tokenId"`
	SessionID *string    `gorm:"uniqueIndex;size:64" json:"sessionId,omitempty"`
	Email     *string    `gorm:"size:255" json:"email"`
	IPAddress *string    `gorm:"size:64" json:"ipAddress"`
	UserAgent *string    `gorm:"size:512" json:"userAgent"`
	Duration  *int64     `json:"duration"` // seconds
	CreatedAt time.Time  `gorm:"index" json:"createdAt"`
}

func (e *ViewEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
