package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// OwnerStore looks up and authenticates owner accounts.
type OwnerStore struct {
	db *gorm.DB
}

func NewOwnerStore(db *gorm.DB) *OwnerStore {
	return &OwnerStore{db: db}
}

// Bootstrap creates the owner account when the users table is empty and
// returns the generated CLI API key. It does nothing when an owner exists.
func (s *OwnerStore) Bootstrap(ctx context.Context, email, name, password string) (string, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return "", fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return "", nil
	}
	if email == "" || password == "" {
		return "", errors.New("OWNER_EMAIL and OWNER_PASSWORD are required to create the owner")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	apiKey, err := newAPIKey()
	if err != nil {
		return "", err
	}
	if name == "" {
		name = email
	}
	user := models.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		APIKey:       &apiKey,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return "", fmt.Errorf("failed to create owner: %w", err)
	}
	return apiKey, nil
}

// Authenticate checks an email and password pair.
func (s *OwnerStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// ByAPIKey returns the owner holding key, or nil.
func (s *OwnerStore) ByAPIKey(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, nil
	}
	var user models.User
	err := s.db.WithContext(ctx).Where("api_key = ?", key).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	return &user, nil
}

func (s *OwnerStore) ByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	return &user, nil
}

func newAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
