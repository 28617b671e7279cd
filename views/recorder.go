// Package views records viewing sessions and summarizes them for the owner.
package views

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/basit/pitchvault-backend/access"
	"github.com/basit/pitchvault-backend/models"
)

var (
	ErrPitchNotFound   = errors.New("pitch not found")
	ErrTokenMismatch   = errors.New("token does not belong to pitch")
	ErrInvalidDuration = errors.New("duration must not be negative")
)

// StartParams describes a viewer session as reported by the viewer shell.
// SessionID is optional; when set, the start and end signals of one session
// share a single event.
type StartParams struct {
	PitchID   uuid.UUID
	TokenID   *uuid.UUID
	SessionID string
	Email     *string
	IPAddress *string
	UserAgent *string
}

// EndParams is the end-of-session signal. The start fields are used only
// when no event exists yet for the session.
type EndParams struct {
	StartParams
	Duration int64
}

// Recorder appends view events, bumps token use counts and refreshes the
// pitch counters. Every call runs in one transaction holding the pitch row.
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{
		db:     db,
		logger: logger.With(zap.String("component", "view_recorder")),
	}
}

// RecordStart stores the start of a session. A repeated start for a known
// session id returns the existing event and changes nothing.
func (r *Recorder) RecordStart(ctx context.Context, p StartParams) (*models.ViewEvent, error) {
	var event *models.ViewEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPitch(tx, p.PitchID); err != nil {
			return err
		}
		if err := checkToken(tx, p.PitchID, p.TokenID); err != nil {
			return err
		}

		existing, err := eventBySession(tx, p.SessionID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.PitchID != p.PitchID {
				return ErrTokenMismatch
			}
			event = existing
			return nil
		}

		event, err = createEvent(tx, p, nil)
		if err != nil {
			return err
		}
		return RecomputeCounters(tx, p.PitchID)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("view started",
		zap.String("pitch_id", p.PitchID.String()),
		zap.String("event_id", event.ID.String()),
	)
	return event, nil
}

// RecordEnd attaches a duration to the session's event. The first duration
// wins; later ones are ignored. When the start signal never arrived, or no
// session id is given, a new event carrying the duration is created.
func (r *Recorder) RecordEnd(ctx context.Context, p EndParams) (*models.ViewEvent, error) {
	if p.Duration < 0 {
		return nil, ErrInvalidDuration
	}

	var event *models.ViewEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPitch(tx, p.PitchID); err != nil {
			return err
		}
		if err := checkToken(tx, p.PitchID, p.TokenID); err != nil {
			return err
		}

		existing, err := eventBySession(tx, p.SessionID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.PitchID != p.PitchID {
				return ErrTokenMismatch
			}
			if err := tx.Model(&models.ViewEvent{}).
				Where("id = ? AND duration IS NULL", existing.ID).
				Update("duration", p.Duration).Error; err != nil {
				return fmt.Errorf("set duration: %w", err)
			}
			if err := tx.First(existing, "id = ?", existing.ID).Error; err != nil {
				return fmt.Errorf("reload event: %w", err)
			}
			event = existing
		} else {
			d := p.Duration
			event, err = createEvent(tx, p.StartParams, &d)
			if err != nil {
				return err
			}
		}
		return RecomputeCounters(tx, p.PitchID)
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("view ended",
		zap.String("pitch_id", p.PitchID.String()),
		zap.String("event_id", event.ID.String()),
		zap.Int64("duration", p.Duration),
	)
	return event, nil
}

// RecomputeCounters rewrites the pitch's total and unique view counts from
// its events. Unique viewers are distinct IP addresses.
func RecomputeCounters(tx *gorm.DB, pitchID uuid.UUID) error {
	var total, unique int64
	if err := tx.Model(&models.ViewEvent{}).
		Where("pitch_id = ?", pitchID).
		Count(&total).Error; err != nil {
		return fmt.Errorf("count views: %w", err)
	}
	if err := tx.Model(&models.ViewEvent{}).
		Where("pitch_id = ? AND ip_address IS NOT NULL", pitchID).
		Distinct("ip_address").
		Count(&unique).Error; err != nil {
		return fmt.Errorf("count unique views: %w", err)
	}
	if err := tx.Model(&models.Pitch{}).
		Where("id = ?", pitchID).
		UpdateColumns(map[string]interface{}{
			"total_views":  total,
			"unique_views": unique,
		}).Error; err != nil {
		return fmt.Errorf("update pitch counters: %w", err)
	}
	return nil
}

// lockPitch loads the pitch row FOR UPDATE. SQLite has no row locks; there
// the single store connection serializes transactions instead.
func lockPitch(tx *gorm.DB, pitchID uuid.UUID) error {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var pitch models.Pitch
	err := q.Select("id").First(&pitch, "id = ?", pitchID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPitchNotFound
	}
	if err != nil {
		return fmt.Errorf("lock pitch: %w", err)
	}
	return nil
}

func checkToken(tx *gorm.DB, pitchID uuid.UUID, tokenID *uuid.UUID) error {
	if tokenID == nil {
		return nil
	}
	var t models.AccessToken
	err := tx.Select("id", "pitch_id").First(&t, "id = ?", *tokenID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTokenMismatch
	}
	if err != nil {
		return fmt.Errorf("lookup token: %w", err)
	}
	if t.PitchID != pitchID {
		return ErrTokenMismatch
	}
	return nil
}

func eventBySession(tx *gorm.DB, sessionID string) (*models.ViewEvent, error) {
	if sessionID == "" {
		return nil, nil
	}
	var e models.ViewEvent
	err := tx.Where("session_id = ?", sessionID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return &e, nil
}

// createEvent inserts a new session event and counts one use of its token.
func createEvent(tx *gorm.DB, p StartParams, duration *int64) (*models.ViewEvent, error) {
	e := models.ViewEvent{
		PitchID:   p.PitchID,
		TokenID:   p.TokenID,
		Email:     p.Email,
		IPAddress: p.IPAddress,
		UserAgent: p.UserAgent,
		Duration:  duration,
	}
	if p.SessionID != "" {
		sid := p.SessionID
		e.SessionID = &sid
	}
	if err := tx.Create(&e).Error; err != nil {
		return nil, fmt.Errorf("create view event: %w", err)
	}
	if p.TokenID != nil {
		if err := access.IncrementUseCount(tx, *p.TokenID); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
