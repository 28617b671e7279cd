package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/auth"
	"github.com/basit/pitchvault-backend/utils"
)

const (
	// ContextUserIDKey holds the authenticated owner id in the gin context.
	ContextUserIDKey = "userID"
	// SessionUserIDKey is the session cookie field carrying the owner id.
	SessionUserIDKey = "user_id"
	// APIKeyHeader carries the CLI credential.
	APIKeyHeader = "X-API-Key"
)

// OwnerAuth resolves the owner from a session cookie, a bearer token or an
// API key, in that order.
type OwnerAuth struct {
	Secret    []byte
	Owners    *auth.OwnerStore
	Blacklist *auth.Blacklist
	Logger    *zap.Logger
}

// OwnerRequired aborts with 401 unless the request is authenticated.
func (a *OwnerAuth) OwnerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := a.identify(c)
		if !ok {
			utils.Error(c, http.StatusUnauthorized, 40100, "unauthorized")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Request = c.Request.WithContext(auth.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func (a *OwnerAuth) identify(c *gin.Context) (uuid.UUID, bool) {
	session := sessions.Default(c)
	if raw, ok := session.Get(SessionUserIDKey).(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id, true
		}
	}

	if token, ok := BearerToken(c); ok {
		if a.Blacklist != nil && a.Blacklist.Contains(c.Request.Context(), token) {
			return uuid.Nil, false
		}
		sub, _, err := auth.ValidateToken(a.Secret, token)
		if err == nil {
			if id, err := uuid.Parse(sub); err == nil {
				return id, true
			}
		}
		return uuid.Nil, false
	}

	if key := c.GetHeader(APIKeyHeader); key != "" {
		user, err := a.Owners.ByAPIKey(c.Request.Context(), key)
		if err != nil {
			a.Logger.Error("api key lookup failed", zap.Error(err))
			return uuid.Nil, false
		}
		if user != nil {
			return user.ID, true
		}
	}
	return uuid.Nil, false
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// UserID returns the owner id set by OwnerRequired.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
