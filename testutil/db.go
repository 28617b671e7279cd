// Package testutil opens throwaway stores and seeds records for tests.
package testutil

import (
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/basit/pitchvault-backend/initializers"
	"github.com/basit/pitchvault-backend/models"
)

// OpenDB opens a migrated SQLite store in dir with the production dialector.
func OpenDB(dir string) (*gorm.DB, error) {
	return initializers.OpenDatabase("sqlite", filepath.Join(dir, "test.db"), logger.Default.LogMode(logger.Silent))
}

// SeedPitch inserts a pitch. entry may be empty.
func SeedPitch(db *gorm.DB, published bool, fileType models.FileType, entry string) (*models.Pitch, error) {
	p := models.Pitch{
		Title:       "Seed Pitch",
		Slug:        "seed-" + uuid.NewString(),
		FileType:    fileType,
		IsPublished: published,
	}
	if entry != "" {
		p.EntryFile = &entry
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SeedToken inserts an anonymous token for pitchID after applying opts.
func SeedToken(db *gorm.DB, pitchID uuid.UUID, opts ...func(*models.AccessToken)) (*models.AccessToken, error) {
	t := models.AccessToken{
		PitchID: pitchID,
		Token:   uuid.NewString(),
		Type:    models.TokenTypeAnonymous,
	}
	for _, o := range opts {
		o(&t)
	}
	if err := db.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func Int64(v int64) *int64 { return &v }

func String(v string) *string { return &v }
