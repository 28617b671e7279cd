package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/views"
)

// EventHandler receives view telemetry from the viewer shell. Failures are
// logged and acknowledged with success=false; the viewer never waits on them.
type EventHandler struct {
	recorder *views.Recorder
	logger   *zap.Logger
}

func NewEventHandler(recorder *views.Recorder, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		recorder: recorder,
		logger:   logger.With(zap.String("component", "view_events")),
	}
}

type viewEventRequest struct {
	PitchID   string  `json:"pitchId" binding:"required,uuid"`
	TokenID   *string `json:"tokenId" binding:"omitempty,uuid"`
	SessionID string  `json:"sessionId" binding:"max=64"`
	Email     *string `json:"email" binding:"omitempty,email,max=320"`
	Duration  *int64  `json:"duration" binding:"omitempty,min=0"`
}

// Record handles POST /view-event. A body without duration is a session
// start; a body with duration is the end-of-session beacon.
func (h *EventHandler) Record(c *gin.Context) {
	var req viewEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("bad view event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}

	params := views.StartParams{
		PitchID:   uuid.MustParse(req.PitchID),
		SessionID: req.SessionID,
		Email:     req.Email,
	}
	if req.TokenID != nil {
		id := uuid.MustParse(*req.TokenID)
		params.TokenID = &id
	}
	if ip := c.ClientIP(); ip != "" {
		params.IPAddress = &ip
	}
	if ua := c.Request.UserAgent(); ua != "" {
		params.UserAgent = &ua
	}

	var err error
	if req.Duration == nil {
		_, err = h.recorder.RecordStart(c.Request.Context(), params)
	} else {
		_, err = h.recorder.RecordEnd(c.Request.Context(), views.EndParams{StartParams: params, Duration: *req.Duration})
	}
	if err != nil {
		h.logger.Error("record view event",
			zap.String("pitch_id", req.PitchID),
			zap.Bool("end", req.Duration != nil),
			zap.Error(err),
		)
		c.JSON(eventErrorStatus(err), gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func eventErrorStatus(err error) int {
	switch {
	case errors.Is(err, views.ErrPitchNotFound):
		return http.StatusNotFound
	case errors.Is(err, views.ErrTokenMismatch), errors.Is(err, views.ErrInvalidDuration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
