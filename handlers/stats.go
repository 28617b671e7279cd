package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basit/pitchvault-backend/pitches"
	"github.com/basit/pitchvault-backend/utils"
	"github.com/basit/pitchvault-backend/views"
)

type StatsHandler struct {
	pitches    *pitches.Service
	aggregator *views.Aggregator
	logger     *zap.Logger
}

func NewStatsHandler(svc *pitches.Service, aggregator *views.Aggregator, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{pitches: svc, aggregator: aggregator, logger: logger.With(zap.String("component", "stats"))}
}

// Pitch returns the view summary of one pitch with its raw events.
func (h *StatsHandler) Pitch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("pitchId"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, 40020, "invalid pitch id")
		return
	}
	pitch, err := h.pitches.Get(c.Request.Context(), id)
	if errors.Is(err, pitches.ErrNotFound) {
		utils.Error(c, http.StatusNotFound, 40420, "pitch not found")
		return
	}
	if err != nil {
		h.logger.Error("load pitch", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50020, "failed to load pitch")
		return
	}

	stats, err := h.aggregator.Stats(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("aggregate views", zap.String("pitch_id", id.String()), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50021, "failed to aggregate views")
		return
	}
	events, err := h.aggregator.Events(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list view events", zap.String("pitch_id", id.String()), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50022, "failed to list view events")
		return
	}

	utils.Success(c, gin.H{
		"pitch":       pitch,
		"total":       stats.Total,
		"byDay":       stats.ByDay,
		"avgDuration": stats.AvgDuration,
		"events":      events,
	})
}

// Dashboard returns the owner's landing summary.
func (h *StatsHandler) Dashboard(c *gin.Context) {
	d, err := h.pitches.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("dashboard", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, 50023, "failed to load dashboard")
		return
	}
	utils.Success(c, d)
}
