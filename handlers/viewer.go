package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/access"
	"github.com/basit/pitchvault-backend/content"
	"github.com/basit/pitchvault-backend/models"
	"github.com/basit/pitchvault-backend/pitches"
	"github.com/basit/pitchvault-backend/storage"
)

// ViewerHandler serves the token-gated viewer and the owner preview. Every
// content request is validated again; no earlier decision is trusted.
type ViewerHandler struct {
	validator *access.Validator
	lookup    access.Lookup
	pitches   *pitches.Service
	resolver  *storage.Resolver
	responder *content.Responder
	logger    *zap.Logger
}

func NewViewerHandler(validator *access.Validator, lookup access.Lookup, svc *pitches.Service, resolver *storage.Resolver, responder *content.Responder, logger *zap.Logger) *ViewerHandler {
	return &ViewerHandler{
		validator: validator,
		lookup:    lookup,
		pitches:   svc,
		resolver:  resolver,
		responder: responder,
		logger:    logger.With(zap.String("component", "viewer")),
	}
}

// ViewPage renders the viewer shell, or the denial page with the reason.
func (h *ViewerHandler) ViewPage(c *gin.Context) {
	token := c.Param("token")
	decision, err := h.validator.Validate(c.Request.Context(), token)
	if err != nil {
		h.logger.Error("validate token", zap.String("token", tokenPrefix(token)), zap.Error(err))
		c.HTML(http.StatusInternalServerError, DeniedTemplate, DeniedPage{Message: "Something went wrong"})
		return
	}
	if !decision.Granted {
		h.deniedPage(c, token, decision.Reason)
		return
	}

	pitch, err := h.lookup.PitchByID(c.Request.Context(), decision.PitchID)
	if err != nil || pitch == nil {
		h.deniedPage(c, token, access.ReasonPitchUnavailable)
		return
	}

	shell := ViewerShell{
		Title:      pitch.Title,
		FileType:   string(pitch.FileType),
		ContentURL: contentURL("/view/"+url.PathEscape(token)+"/content", pitch.EntryFile),
		PitchID:    pitch.ID.String(),
		TokenID:    decision.Token.ID.String(),
		SessionID:  uuid.NewString(),
		EventURL:   "/view-event",
	}
	if decision.Token.Email != nil {
		shell.Email = *decision.Token.Email
	}
	setNoStore(c)
	c.HTML(http.StatusOK, ViewerTemplate, shell)
}

func (h *ViewerHandler) deniedPage(c *gin.Context, token string, reason access.Reason) {
	h.logger.Info("view denied", zap.String("token", tokenPrefix(token)), zap.String("reason", string(reason)))
	setNoStore(c)
	c.HTML(http.StatusForbidden, DeniedTemplate, DeniedPage{Message: reason.Message(), Reason: string(reason)})
}

// Content streams the entry file, or the file at the sub-path, of the pitch
// the token grants.
func (h *ViewerHandler) Content(c *gin.Context) {
	token := c.Param("token")
	decision, err := h.validator.Validate(c.Request.Context(), token)
	if err != nil {
		h.logger.Error("validate token", zap.String("token", tokenPrefix(token)), zap.Error(err))
		contentError(c, http.StatusInternalServerError, "Internal error", "INTERNAL")
		return
	}
	if !decision.Granted {
		h.logger.Info("content denied", zap.String("token", tokenPrefix(token)), zap.String("reason", string(decision.Reason)))
		contentError(c, http.StatusForbidden, decision.Reason.Message(), string(decision.Reason))
		return
	}

	pitch, err := h.lookup.PitchByID(c.Request.Context(), decision.PitchID)
	if err != nil {
		h.logger.Error("load pitch", zap.Error(err))
		contentError(c, http.StatusInternalServerError, "Internal error", "INTERNAL")
		return
	}
	if pitch == nil {
		contentError(c, http.StatusNotFound, "Pitch not found", "NOT_FOUND")
		return
	}
	h.serveBundle(c, pitch)
}

// PreviewPage renders the shell for the owner. Views are not recorded.
func (h *ViewerHandler) PreviewPage(c *gin.Context) {
	pitch, ok := h.ownerPitch(c)
	if !ok {
		return
	}
	setNoStore(c)
	c.HTML(http.StatusOK, ViewerTemplate, ViewerShell{
		Title:      pitch.Title,
		FileType:   string(pitch.FileType),
		ContentURL: contentURL("/api/preview/"+pitch.ID.String()+"/content", pitch.EntryFile),
		PitchID:    pitch.ID.String(),
		Preview:    true,
	})
}

// PreviewContent serves a pitch to its owner regardless of publication.
// Owner authentication replaces the token check; path resolution and the
// response headers are the same as for viewers.
func (h *ViewerHandler) PreviewContent(c *gin.Context) {
	pitch, ok := h.ownerPitch(c)
	if !ok {
		return
	}
	h.serveBundle(c, pitch)
}

func (h *ViewerHandler) ownerPitch(c *gin.Context) (*models.Pitch, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		contentError(c, http.StatusNotFound, "Pitch not found", "NOT_FOUND")
		return nil, false
	}
	pitch, err := h.pitches.Get(c.Request.Context(), id)
	if errors.Is(err, pitches.ErrNotFound) {
		contentError(c, http.StatusNotFound, "Pitch not found", "NOT_FOUND")
		return nil, false
	}
	if err != nil {
		h.logger.Error("load pitch", zap.Error(err))
		contentError(c, http.StatusInternalServerError, "Internal error", "INTERNAL")
		return nil, false
	}
	return pitch, true
}

func (h *ViewerHandler) serveBundle(c *gin.Context, pitch *models.Pitch) {
	rel := strings.TrimPrefix(c.Param("path"), "/")
	entry := false
	switch {
	case rel == "":
		if pitch.EntryFile == nil || *pitch.EntryFile == "" {
			contentError(c, http.StatusNotFound, "File not found", "NOT_FOUND")
			return
		}
		rel, entry = *pitch.EntryFile, true
	case pitch.EntryFile != nil:
		if cleaned, err := storage.Clean(rel); err == nil && filepath.ToSlash(cleaned) == *pitch.EntryFile {
			entry = true
		}
	}

	path, err := h.resolver.Resolve(pitch.ID, rel)
	switch {
	case errors.Is(err, storage.ErrInvalidPath):
		h.logger.Warn("rejected content path",
			zap.String("pitch_id", pitch.ID.String()),
			zap.String("path", rel),
			zap.String("ip", c.ClientIP()),
		)
		contentError(c, http.StatusBadRequest, "Invalid path", "INVALID_PATH")
		return
	case errors.Is(err, storage.ErrNotFound):
		contentError(c, http.StatusNotFound, "File not found", "NOT_FOUND")
		return
	case err != nil:
		h.logger.Error("resolve content path", zap.String("pitch_id", pitch.ID.String()), zap.Error(err))
		contentError(c, http.StatusInternalServerError, "Internal error", "INTERNAL")
		return
	}

	if err := h.responder.Serve(c.Writer, c.Request, path, entry); err != nil {
		h.logger.Error("serve content", zap.String("pitch_id", pitch.ID.String()), zap.Error(err))
		if !c.Writer.Written() {
			contentError(c, http.StatusInternalServerError, "Internal error", "INTERNAL")
		}
	}
}

// contentURL points at the entry file by name so that relative asset
// references inside the document resolve under the same prefix.
func contentURL(prefix string, entry *string) string {
	if entry == nil || *entry == "" {
		return prefix
	}
	segments := strings.Split(*entry, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return prefix + "/" + strings.Join(segments, "/")
}

func contentError(c *gin.Context, status int, message, code string) {
	setNoStore(c)
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

func setNoStore(c *gin.Context) {
	c.Header("Cache-Control", "private, no-cache")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("X-Content-Type-Options", "nosniff")
}

// tokenPrefix keeps bearer tokens out of the logs.
func tokenPrefix(token string) string {
	if len(token) > 6 {
		return token[:6] + "..."
	}
	return token
}
