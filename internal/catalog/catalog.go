// Package catalog holds the business mutations for platforms, courses and
// users. Every mutation commits to the record store first and then asks the
// sync orchestrator to refresh the affected platform documents. A failed sync
// never fails the mutation; it is logged and counted as drift for the
// reconcile job to repair.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/pkg/logger"
	"github.com/edusync/platform-sync/pkg/metrics"
)

// Syncer is the slice of platformsync.Orchestrator the services drive.
type Syncer interface {
	Delete(ctx context.Context, platformID int64) error
	SyncAffectedByUser(ctx context.Context, u *models.User) error
	SyncAffectedByCourses(ctx context.Context, courses []models.Course) error
	SyncPlatforms(ctx context.Context, ids []int64) error
}

// afterCommit detaches the follow-up sync from the request's cancellation: once
// the relational write is committed a disconnecting client must not cut the
// sync short. Values such as the request id are kept.
func afterCommit(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// reportSync records a failed follow-up sync. The committed mutation stands.
func reportSync(trigger string, err error) {
	if err == nil {
		return
	}
	metrics.DriftDetected.WithLabelValues(trigger).Inc()
	logger.Errorf("catalog: %s committed but projection sync failed: %v", trigger, err)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required: %w", field, models.ErrValidation)
	}
	return nil
}

func conflict(entity, field, value string) error {
	return fmt.Errorf("%s with %s %q: %w", entity, field, value, models.ErrAlreadyExists)
}
