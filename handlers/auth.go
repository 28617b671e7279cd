package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/auth"
	"github.com/basit/pitchvault-backend/auth/middleware"
	"github.com/basit/pitchvault-backend/utils"
)

type AuthHandler struct {
	owners    *auth.OwnerStore
	blacklist *auth.Blacklist
	secret    []byte
	logger    *zap.Logger
}

func NewAuthHandler(owners *auth.OwnerStore, blacklist *auth.Blacklist, secret []byte, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{owners: owners, blacklist: blacklist, secret: secret, logger: logger.With(zap.String("component", "auth"))}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks the owner's credentials, starts a cookie session and returns
// a bearer token for API clients.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}
	user, err := h.owners.Authenticate(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logger.Info("login failed", zap.String("ip", c.ClientIP()))
		utils.Error(c, http.StatusUnauthorized, 40110, "invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("login", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50010, "internal error")
		return
	}

	token, exp, err := auth.GenerateAccessToken(h.secret, user.ID.String())
	if err != nil {
		h.logger.Error("sign token", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50011, "failed to create token")
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserIDKey, user.ID.String())
	if err := session.Save(); err != nil {
		h.logger.Error("save session", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50012, "failed to save session")
		return
	}
	utils.Success(c, gin.H{"user": user, "token": token, "expiresAt": exp.Unix()})
}

// Logout clears the session and blacklists the presented bearer token.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		h.logger.Error("clear session", zap.Error(err))
	}

	if token, ok := middleware.BearerToken(c); ok {
		if _, exp, err := auth.ValidateToken(h.secret, token); err == nil {
			h.blacklist.Add(c.Request.Context(), token, exp)
		}
	}
	utils.Success(c, gin.H{"loggedOut": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	id, ok := middleware.UserID(c)
	if !ok {
		utils.Error(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	user, err := h.owners.ByID(c.Request.Context(), id.String())
	if err != nil {
		h.logger.Error("load owner", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50013, "internal error")
		return
	}
	if user == nil {
		utils.Error(c, http.StatusUnauthorized, 40100, "unauthorized")
		return
	}
	utils.Success(c, user)
}
