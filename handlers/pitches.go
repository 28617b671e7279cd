package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/auth"
	"github.com/basit/pitchvault-backend/pitches"
	"github.com/basit/pitchvault-backend/storage"
	"github.com/basit/pitchvault-backend/utils"
)

const maxUploadSize = 100 << 20

// PitchHandler exposes pitch management to the owner. importer is nil when
// no bucket is configured.
type PitchHandler struct {
	svc      *pitches.Service
	importer *storage.Importer
	logger   *zap.Logger
}

func NewPitchHandler(svc *pitches.Service, importer *storage.Importer, logger *zap.Logger) *PitchHandler {
	return &PitchHandler{svc: svc, importer: importer, logger: logger.With(zap.String("component", "pitch_api"))}
}

type pitchRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description" binding:"omitempty,max=10000"`
	IsPublished *bool   `json:"isPublished"`
	EntryFile   *string `json:"entryFile" binding:"omitempty,max=1024"`
}

func (h *PitchHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list pitches", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50030, "failed to list pitches")
		return
	}
	utils.Success(c, list)
}

func (h *PitchHandler) Create(c *gin.Context) {
	var req pitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == nil {
		utils.Error(c, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	var owner *uuid.UUID
	if id, err := auth.GetUserIDFromContext(c.Request.Context()); err == nil {
		owner = &id
	}
	p, err := h.svc.Create(c.Request.Context(), owner, pitches.CreateInput{Title: *req.Title, Description: req.Description})
	if err != nil {
		h.pitchError(c, err)
		return
	}
	utils.Created(c, p)
}

func (h *PitchHandler) Get(c *gin.Context) {
	id, ok := pitchID(c)
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.pitchError(c, err)
		return
	}
	utils.Success(c, p)
}

func (h *PitchHandler) Update(c *gin.Context) {
	id, ok := pitchID(c)
	if !ok {
		return
	}
	var req pitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	p, err := h.svc.Update(c.Request.Context(), id, pitches.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		IsPublished: req.IsPublished,
		EntryFile:   req.EntryFile,
	})
	if err != nil {
		h.pitchError(c, err)
		return
	}
	utils.Success(c, p)
}

func (h *PitchHandler) Delete(c *gin.Context) {
	id, ok := pitchID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.pitchError(c, err)
		return
	}
	utils.Success(c, gin.H{"deleted": true})
}

func (h *PitchHandler) Files(c *gin.Context) {
	id, ok := pitchID(c)
	if !ok {
		return
	}
	files, err := h.svc.Files(c.Request.Context(), id)
	if err != nil {
		h.pitchError(c, err)
		return
	}
	utils.Success(c, gin.H{"files": files})
}

// Upload stores one multipart file at the form's "path" (default: the
// uploaded file name) inside the bundle.
func (h *PitchHandler) Upload(c *gin.Context) {
	id, ok := pitchID(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	file, err := c.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, 40031, "no file uploaded")
		return
	}
	rel := c.PostForm("path")
	if rel == "" {
		rel = file.Filename
	}
	src, err := file.Open()
	if err != nil {
		utils.Error(c, http.StatusBadRequest, 40031, "unreadable upload")
		return
	}
	defer src.Close()

	p, err := h.svc.AddFile(c.Request.Context(), id, rel, src)
	if err != nil {
		h.pitchError(c, err)
		return
	}
	utils.Created(c, p)
}

// Import copies the pitch's objects from the configured bucket.
func (h *PitchHandler) Import(c *gin.Context) {
	if h.importer == nil {
		utils.Error(c, http.StatusNotImplemented, 50130, "bundle import is not configured")
		return
	}
	id, ok := pitchID(c)
	if !ok {
		return
	}
	if _, err := h.svc.Get(c.Request.Context(), id); err != nil {
		h.pitchError(c, err)
		return
	}
	res, err := h.importer.Import(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("import bundle", zap.String("pitch_id", id.String()), zap.Error(err))
		utils.Error(c, http.StatusBadGateway, 50230, "bundle import failed")
		return
	}
	p, err := h.svc.ApplyDetection(c.Request.Context(), id, res.FileType, res.EntryFile)
	if err != nil {
		h.pitchError(c, err)
		return
	}
	utils.Success(c, gin.H{"pitch": p, "imported": res.Imported, "skipped": res.Skipped})
}

func (h *PitchHandler) pitchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pitches.ErrNotFound):
		utils.Error(c, http.StatusNotFound, 40430, "pitch not found")
	case errors.Is(err, pitches.ErrInvalidInput):
		utils.Error(c, http.StatusBadRequest, 40032, err.Error())
	case errors.Is(err, storage.ErrInvalidPath):
		h.logger.Warn("rejected upload path", zap.Error(err))
		utils.Error(c, http.StatusBadRequest, 40033, "invalid path")
	default:
		h.logger.Error("pitch operation failed", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50031, "internal error")
	}
}

func pitchID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, 40020, "invalid pitch id")
		return uuid.Nil, false
	}
	return id, true
}
