package access

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/models"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrPitchNotFound = errors.New("pitch not found")
	ErrInvalidToken  = errors.New("invalid token parameters")
)

// GenerateToken returns a new opaque, URL-safe token value of fixed length.
func GenerateToken() string {
	return shortuuid.New()
}

// TokenStore persists access tokens.
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) TokenByValue(ctx context.Context, value string) (*models.AccessToken, error) {
	var t models.AccessToken
	err := s.db.WithContext(ctx).Where("token = ?", value).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	return &t, nil
}

func (s *TokenStore) TokenByID(ctx context.Context, id uuid.UUID) (*models.AccessToken, error) {
	var t models.AccessToken
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	return &t, nil
}

func (s *TokenStore) PitchByID(ctx context.Context, id uuid.UUID) (*models.Pitch, error) {
	var p models.Pitch
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup pitch: %w", err)
	}
	return &p, nil
}

type CreateParams struct {
	PitchID   uuid.UUID
	Type      models.TokenType
	Email     *string
	Label     *string
	ExpiresAt *int64
	MaxUses   *int64
}

// Create mints a token for an existing pitch.
func (s *TokenStore) Create(ctx context.Context, p CreateParams) (*models.AccessToken, error) {
	if p.Type == "" {
		p.Type = models.TokenTypeAnonymous
	}
	if p.Type != models.TokenTypeAnonymous && p.Type != models.TokenTypePersonal {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidToken, p.Type)
	}
	if p.MaxUses != nil && *p.MaxUses <= 0 {
		return nil, fmt.Errorf("%w: maxUses must be positive", ErrInvalidToken)
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return nil, fmt.Errorf("%w: bad email", ErrInvalidToken)
		}
	}

	pitch, err := s.PitchByID(ctx, p.PitchID)
	if err != nil {
		return nil, err
	}
	if pitch == nil {
		return nil, ErrPitchNotFound
	}

	t := models.AccessToken{
		PitchID:   p.PitchID,
		Token:     GenerateToken(),
		Type:      p.Type,
		Email:     p.Email,
		Label:     p.Label,
		ExpiresAt: p.ExpiresAt,
		MaxUses:   p.MaxUses,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}
	return &t, nil
}

func (s *TokenStore) ListForPitch(ctx context.Context, pitchID uuid.UUID) ([]models.AccessToken, error) {
	var tokens []models.AccessToken
	if err := s.db.WithContext(ctx).
		Where("pitch_id = ?", pitchID).
		Order("created_at DESC").
		Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// TokenWithPitch is a token row joined with its pitch title.
type TokenWithPitch struct {
	models.AccessToken
	PitchTitle *string `json:"pitchTitle"`
}

func (s *TokenStore) ListAll(ctx context.Context) ([]TokenWithPitch, error) {
	var rows []TokenWithPitch
	if err := s.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Select("access_tokens.*, pitches.title AS pitch_title").
		Joins("LEFT JOIN pitches ON pitches.id = access_tokens.pitch_id").
		Order("access_tokens.created_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return rows, nil
}

// Revoke marks a token revoked. There is no way back.
func (s *TokenStore) Revoke(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("id = ?", id).
		Update("is_revoked", true)
	if res.Error != nil {
		return fmt.Errorf("revoke token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// Delete hard-deletes a token after detaching its view events.
func (s *TokenStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ViewEvent{}).
			Where("token_id = ?", id).
			Update("token_id", nil).Error; err != nil {
			return fmt.Errorf("detach view events: %w", err)
		}
		res := tx.Delete(&models.AccessToken{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrTokenNotFound
		}
		return nil
	})
}

// CountActive counts tokens that are neither revoked nor expired at now.
func (s *TokenStore) CountActive(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("is_revoked = ?", false).
		Where("expires_at IS NULL OR expires_at > ?", now.Unix()).
		Count(&n).Error
	return n, err
}

// IncrementUseCount bumps use_count in a single statement so concurrent
// sessions never lose an increment. tx may be a transaction.
func IncrementUseCount(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Model(&models.AccessToken{}).
		Where("id = ?", id).
		UpdateColumn("use_count", gorm.Expr("use_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment use count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}
