package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/metrics"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/rs/zerolog/log"
)

// DeleteReadNotifications removes notifications that were read more than
// retentionDays before now. Unread notifications are never deleted.
// The function is idempotent - safe to run repeatedly.
//
// Returns the number of rows deleted.
func DeleteReadNotifications(ctx context.Context, q store.Queries, retentionDays int, now time.Time) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive (got: %d)", retentionDays)
	}

	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted, err := q.Notifications().DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete read notifications: %w", err)
	}
	return deleted, nil
}

// RunRetentionJob executes the retention pass and logs the results.
// This is the main entry point called by the cron scheduler.
func RunRetentionJob(ctx context.Context, q store.Queries, retentionDays int, m *metrics.Metrics) error {
	log.Info().
		Int("notification_retention_days", retentionDays).
		Msg("Starting retention job")

	startTime := time.Now()

	deleted, err := DeleteReadNotifications(ctx, q, retentionDays, startTime.UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete read notifications")
		return fmt.Errorf("notification cleanup failed: %w", err)
	}
	m.ObserveRetention(deleted)

	log.Info().
		Int64("notifications_deleted", deleted).
		Dur("duration", time.Since(startTime)).
		Msg("Retention job completed")

	return nil
}
