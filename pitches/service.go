// Package pitches holds the owner-side pitch management that surrounds the
// viewer gate: CRUD, bundle files and the dashboard summary.
package pitches

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/access"
	"github.com/basit/pitchvault-backend/models"
	"github.com/basit/pitchvault-backend/storage"
	"github.com/basit/pitchvault-backend/utils"
)

var (
	ErrNotFound     = errors.New("pitch not found")
	ErrInvalidInput = errors.New("invalid pitch input")
)

const maxSlugLength = 80

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// ToSlug lowercases title and joins its alphanumeric runs with dashes.
func ToSlug(title string) string {
	s := strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}
	if s == "" {
		return "pitch"
	}
	return s
}

type CreateInput struct {
	Title       string
	Description *string
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Title       *string
	Description *string
	IsPublished *bool
	EntryFile   *string
}

// Dashboard is the owner's landing summary.
type Dashboard struct {
	TotalPitches  int64          `json:"totalPitches"`
	TotalViews    int64          `json:"totalViews"`
	ActiveTokens  int64          `json:"activeTokens"`
	RecentPitches []models.Pitch `json:"recentPitches"`
}

type Service struct {
	db       *gorm.DB
	resolver *storage.Resolver
	tokens   *access.TokenStore
	logger   *zap.Logger
}

func NewService(db *gorm.DB, resolver *storage.Resolver, logger *zap.Logger) *Service {
	return &Service{
		db:       db,
		resolver: resolver,
		tokens:   access.NewTokenStore(db),
		logger:   logger.With(zap.String("component", "pitches")),
	}
}

func (s *Service) List(ctx context.Context) ([]models.Pitch, error) {
	var list []models.Pitch
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list pitches: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Pitch, error) {
	var p models.Pitch
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pitch: %w", err)
	}
	return &p, nil
}

// Create stores an unpublished pitch with a unique slug derived from its title.
func (s *Service) Create(ctx context.Context, ownerID *uuid.UUID, in CreateInput) (*models.Pitch, error) {
	title := utils.SanitizeText(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	p := models.Pitch{
		UserID:   ownerID,
		Title:    title,
		FileType: models.FileTypeOther,
	}
	if in.Description != nil {
		d := utils.SanitizeRich(*in.Description)
		p.Description = &d
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueSlug(tx, ToSlug(title))
		if err != nil {
			return err
		}
		p.Slug = slug
		return tx.Create(&p).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create pitch: %w", err)
	}
	s.logger.Info("pitch created", zap.String("pitch_id", p.ID.String()), zap.String("slug", p.Slug))
	return &p, nil
}

func uniqueSlug(tx *gorm.DB, base string) (string, error) {
	candidate := base
	for i := 1; ; i++ {
		var n int64
		if err := tx.Model(&models.Pitch{}).Where("slug = ?", candidate).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// Update applies the non-nil fields. An entry file must be a relative path
// inside the bundle; it is stored with forward slashes.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*models.Pitch, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := utils.SanitizeText(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		updates["title"] = title
	}
	if in.Description != nil {
		updates["description"] = utils.SanitizeRich(*in.Description)
	}
	if in.IsPublished != nil {
		updates["is_published"] = *in.IsPublished
	}
	if in.EntryFile != nil {
		cleaned, err := storage.Clean(*in.EntryFile)
		if err != nil || cleaned == "" {
			return nil, fmt.Errorf("%w: entry file must be a path inside the bundle", ErrInvalidInput)
		}
		updates["entry_file"] = filepath.ToSlash(cleaned)
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := s.db.WithContext(ctx).Model(p).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update pitch: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes the pitch with its tokens, its events and its files.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pitch_id = ?", id).Delete(&models.ViewEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pitch_id = ?", id).Delete(&models.AccessToken{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Pitch{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("delete pitch: %w", err)
	}
	if err := s.resolver.DeleteAll(id); err != nil {
		s.logger.Error("pitch files left behind", zap.String("pitch_id", id.String()), zap.Error(err))
	}
	s.logger.Info("pitch deleted", zap.String("pitch_id", id.String()))
	return nil
}

func (s *Service) Files(ctx context.Context, id uuid.UUID) ([]string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.resolver.ListFiles(id)
}

// AddFile writes one bundle file and re-runs type detection.
func (s *Service) AddFile(ctx context.Context, id uuid.UUID, relative string, src io.Reader) (*models.Pitch, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.resolver.SaveFile(id, relative, src); err != nil {
		return nil, err
	}
	files, err := s.resolver.ListFiles(id)
	if err != nil {
		return nil, err
	}
	fileType, entry := storage.DetectFileType(files)
	return s.ApplyDetection(ctx, id, fileType, entry)
}

// ApplyDetection stores a detected file type and entry file.
func (s *Service) ApplyDetection(ctx context.Context, id uuid.UUID, fileType models.FileType, entry string) (*models.Pitch, error) {
	updates := map[string]interface{}{"file_type": fileType, "entry_file": nil}
	if entry != "" {
		updates["entry_file"] = entry
	}
	if err := s.db.WithContext(ctx).Model(&models.Pitch{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("apply detection: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := &Dashboard{RecentPitches: []models.Pitch{}}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Pitch{}).Count(&d.TotalPitches).Error; err != nil {
		return nil, fmt.Errorf("count pitches: %w", err)
	}
	var views struct{ Total int64 }
	if err := db.Model(&models.Pitch{}).Select("COALESCE(SUM(total_views), 0) AS total").Scan(&views).Error; err != nil {
		return nil, fmt.Errorf("sum views: %w", err)
	}
	d.TotalViews = views.Total

	active, err := s.tokens.CountActive(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	d.ActiveTokens = active

	if err := db.Order("created_at DESC").Limit(5).Find(&d.RecentPitches).Error; err != nil {
		return nil, fmt.Errorf("recent pitches: %w", err)
	}
	return d, nil
}
