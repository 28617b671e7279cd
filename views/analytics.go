package views

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/models"
)

const dayLayout = "2006-01-02"

// DayCount is the number of events on one calendar day.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// Stats summarizes a pitch's view events.
type Stats struct {
	Total       int64      `json:"total"`
	ByDay       []DayCount `json:"byDay"`
	AvgDuration int64      `json:"avgDuration"`
}

// Aggregator answers read-only queries over view events. Nothing is cached.
type Aggregator struct {
	db  *gorm.DB
	loc *time.Location
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db, loc: time.Local}
}

// WithLocation sets the zone used to bucket events into days.
func (a *Aggregator) WithLocation(loc *time.Location) *Aggregator {
	a.loc = loc
	return a
}

// Stats returns the total, the per-day counts in ascending day order (days
// without events are omitted) and the average duration over events that
// have one, rounded to whole seconds.
func (a *Aggregator) Stats(ctx context.Context, pitchID uuid.UUID) (*Stats, error) {
	db := a.db.WithContext(ctx)

	var created []time.Time
	if err := db.Model(&models.ViewEvent{}).
		Where("pitch_id = ?", pitchID).
		Pluck("created_at", &created).Error; err != nil {
		return nil, fmt.Errorf("load view times: %w", err)
	}

	counts := make(map[string]int64)
	for _, t := range created {
		counts[t.In(a.loc).Format(dayLayout)]++
	}
	byDay := make([]DayCount, 0, len(counts))
	for day, n := range counts {
		byDay = append(byDay, DayCount{Day: day, Count: n})
	}
	sort.Slice(byDay, func(i, j int) bool { return byDay[i].Day < byDay[j].Day })

	var avg sql.NullFloat64
	if err := db.Model(&models.ViewEvent{}).
		Where("pitch_id = ? AND duration IS NOT NULL", pitchID).
		Select("AVG(duration)").
		Row().Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}

	stats := &Stats{Total: int64(len(created)), ByDay: byDay}
	if avg.Valid {
		stats.AvgDuration = int64(math.Round(avg.Float64))
	}
	return stats, nil
}

// Events returns the raw events of a pitch, newest first.
func (a *Aggregator) Events(ctx context.Context, pitchID uuid.UUID) ([]models.ViewEvent, error) {
	var events []models.ViewEvent
	if err := a.db.WithContext(ctx).
		Where("pitch_id = ?", pitchID).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list view events: %w", err)
	}
	return events, nil
}
