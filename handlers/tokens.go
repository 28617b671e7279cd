package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/access"
	"github.com/basit/pitchvault-backend/invite"
	"github.com/basit/pitchvault-backend/models"
	"github.com/basit/pitchvault-backend/pitches"
	"github.com/basit/pitchvault-backend/utils"
)

// TokenHandler lets the owner mint, list, revoke and share access tokens.
type TokenHandler struct {
	store   *access.TokenStore
	pitches *pitches.Service
	sender  invite.Sender
	baseURL string
	logger  *zap.Logger
}

func NewTokenHandler(store *access.TokenStore, svc *pitches.Service, sender invite.Sender, baseURL string, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		store:   store,
		pitches: svc,
		sender:  sender,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(zap.String("component", "token_api")),
	}
}

type createTokenRequest struct {
	PitchID   string  `json:"pitchId" binding:"required,uuid"`
	Type      string  `json:"type" binding:"omitempty,oneof=anonymous personal"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Label     *string `json:"label" binding:"omitempty,max=255"`
	ExpiresAt *int64  `json:"expiresAt"`
	MaxUses   *int64  `json:"maxUses" binding:"omitempty,gt=0"`
}

type tokenResponse struct {
	*models.AccessToken
	URL string `json:"url"`
}

func (h *TokenHandler) ViewURL(token string) string {
	return h.baseURL + "/view/" + token
}

func (h *TokenHandler) Create(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	var label *string
	if req.Label != nil {
		l := utils.SanitizeText(*req.Label)
		label = &l
	}
	t, err := h.store.Create(c.Request.Context(), access.CreateParams{
		PitchID:   uuid.MustParse(req.PitchID),
		Type:      models.TokenType(req.Type),
		Email:     req.Email,
		Label:     label,
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		h.tokenError(c, err)
		return
	}
	h.logger.Info("token created", zap.String("token_id", t.ID.String()), zap.String("pitch_id", t.PitchID.String()))
	utils.Created(c, tokenResponse{AccessToken: t, URL: h.ViewURL(t.Token)})
}

func (h *TokenHandler) ListForPitch(c *gin.Context) {
	id, ok := pitchID(c)
	if !ok {
		return
	}
	tokens, err := h.store.ListForPitch(c.Request.Context(), id)
	if err != nil {
		h.tokenError(c, err)
		return
	}
	utils.Success(c, tokens)
}

func (h *TokenHandler) ListAll(c *gin.Context) {
	tokens, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		h.tokenError(c, err)
		return
	}
	utils.Success(c, tokens)
}

func (h *TokenHandler) Revoke(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}
	if err := h.store.Revoke(c.Request.Context(), id); err != nil {
		h.tokenError(c, err)
		return
	}
	h.logger.Info("token revoked", zap.String("token_id", id.String()))
	utils.Success(c, gin.H{"revoked": true})
}

func (h *TokenHandler) Delete(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.tokenError(c, err)
		return
	}
	h.logger.Info("token deleted", zap.String("token_id", id.String()))
	utils.Success(c, gin.H{"deleted": true})
}

// QR renders the token's view link as a PNG.
func (h *TokenHandler) QR(c *gin.Context) {
	id, ok := tokenID(c)
	if !ok {
		return
	}
	t, err := h.store.TokenByID(c.Request.Context(), id)
	if err != nil {
		h.tokenError(c, err)
		return
	}
	png, err := qrcode.Encode(h.ViewURL(t.Token), qrcode.Medium, 256)
	if err != nil {
		h.logger.Error("encode qr", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50041, "failed to render qr code")
		return
	}
	c.Header("Cache-Control", "private, no-cache")
	c.Data(http.StatusOK, "image/png", png)
}

type inviteRequest struct {
	PitchID   string `json:"pitchId" binding:"required,uuid"`
	Email     string `json:"email" binding:"required,email"`
	Message   string `json:"message" binding:"max=2000"`
	ExpiresAt *int64 `json:"expiresAt"`
	MaxUses   *int64 `json:"maxUses" binding:"omitempty,gt=0"`
}

// Invite mints a personal token for the recipient and hands the link to the
// invite sender. A delivery failure is reported but keeps the token.
func (h *TokenHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}
	pitchID := uuid.MustParse(req.PitchID)
	pitch, err := h.pitches.Get(c.Request.Context(), pitchID)
	if err != nil {
		if errors.Is(err, pitches.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, 40440, "pitch not found")
			return
		}
		h.tokenError(c, err)
		return
	}

	email := strings.TrimSpace(req.Email)
	t, err := h.store.Create(c.Request.Context(), access.CreateParams{
		PitchID:   pitchID,
		Type:      models.TokenTypePersonal,
		Email:     &email,
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		h.tokenError(c, err)
		return
	}

	inv := invite.Invite{
		To:         email,
		PitchTitle: pitch.Title,
		ViewURL:    h.ViewURL(t.Token),
		Message:    utils.SanitizeText(req.Message),
	}
	if t.ExpiresAt != nil {
		exp := time.Unix(*t.ExpiresAt, 0)
		inv.ExpiresAt = &exp
	}
	sent := true
	if err := h.sender.Send(c.Request.Context(), inv); err != nil {
		sent = false
		h.logger.Error("send invite", zap.String("token_id", t.ID.String()), zap.Error(err))
	}
	utils.Created(c, gin.H{"token": tokenResponse{AccessToken: t, URL: inv.ViewURL}, "sent": sent})
}

func (h *TokenHandler) tokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrTokenNotFound):
		utils.Error(c, http.StatusNotFound, 40441, "token not found")
	case errors.Is(err, access.ErrPitchNotFound):
		utils.Error(c, http.StatusNotFound, 40440, "pitch not found")
	case errors.Is(err, access.ErrInvalidToken):
		utils.Error(c, http.StatusBadRequest, 40041, err.Error())
	default:
		h.logger.Error("token operation failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50040, "internal error")
	}
}

func tokenID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, 40042, "invalid token id")
		return uuid.Nil, false
	}
	return id, true
}
