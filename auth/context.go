package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Key type for context values
type contextKey string

const UserIDKey contextKey = "userID"

// WithUserID returns ctx carrying the authenticated owner id.
func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserIDFromContext returns the owner id placed by the auth middleware.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, error) {
	value := ctx.Value(UserIDKey)
	if value == nil {
		return uuid.Nil, fmt.Errorf("unauthorized")
	}

	userID, ok := value.(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid user ID format")
	}
	return userID, nil
}
