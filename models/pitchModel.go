package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileType string

const (
	FileTypeHTML  FileType = "html"
	FileTypePDF   FileType = "pdf"
	FileTypeImage FileType = "image"
	FileTypeOther FileType = "other"
)

// Pitch is an uploaded bundle shared through access tokens.
// TotalViews and UniqueViews are a materialized cache of the pitch's view
// events; the events are the source of truth.
type Pitch struct {
	ID          uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      *uuid.UUID `gorm:"type:varchar(36);index" json:"userId,omitempty"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Slug        string     `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	Description *string    `gorm:"type:text" json:"description"`
	FileType    FileType   `gorm:"size:16;not null" json:"fileType"`
	EntryFile   *string    `gorm:"size:1024" json:"entryFile"`
	IsPublished bool       `gorm:"not null;default:false" json:"isPublished"`
	TotalViews  int64      `gorm:"not null;default:0" json:"totalViews"`
	UniqueViews int64      `gorm:"not null;default:0" json:"uniqueViews"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (p *Pitch) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.FileType == "" {
		p.FileType = FileTypeOther
	}
	return nil
}
