package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basit/pitchvault-backend/models"
	"github.com/basit/pitchvault-backend/views"
)

// StartCounterReconciler recomputes every pitch's view counters from its
// events on each tick until ctx is cancelled.
func StartCounterReconciler(ctx context.Context, db *gorm.DB, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	logger = logger.With(zap.String("component", "counter_reconciler"))
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := ReconcileAll(ctx, db)
				if err != nil {
					logger.Error("reconcile counters", zap.Int("done", n), zap.Error(err))
					continue
				}
				logger.Debug("counters reconciled", zap.Int("pitches", n))
			}
		}
	}()
}

// ReconcileAll refreshes the counters of all pitches, one transaction per
// pitch, and returns how many were refreshed.
func ReconcileAll(ctx context.Context, db *gorm.DB) (int, error) {
	var ids []uuid.UUID
	if err := db.WithContext(ctx).Model(&models.Pitch{}).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("list pitches: %w", err)
	}
	for i, id := range ids {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return views.RecomputeCounters(tx, id)
		})
		if err != nil {
			return i, fmt.Errorf("pitch %s: %w", id, err)
		}
	}
	return len(ids), nil
}
