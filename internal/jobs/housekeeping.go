package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/storage"
)

// Retention windows for probe history and rollup buckets.
const (
	CheckRetention  = 90 * 24 * time.Hour
	BucketRetention = 365 * 24 * time.Hour
)

// Housekeeping runs periodic retention jobs over the check history and
// metric buckets.
type Housekeeping struct {
	cron    *cron.Cron
	checks  storage.CheckStore
	buckets storage.MetricStore
	logger  *zap.Logger
}

// NewHousekeeping creates the background job runner
func NewHousekeeping(checks storage.CheckStore, buckets storage.MetricStore, logger *zap.Logger) *Housekeeping {
	return &Housekeeping{
		cron:    cron.New(),
		checks:  checks,
		buckets: buckets,
		logger:  logger,
	}
}

// Start registers and starts the jobs
func (h *Housekeeping) Start() {
	// Prune raw check history daily at 3:14 AM
	h.cron.AddFunc("14 3 * * *", func() {
		h.PruneChecks(context.Background())
	})

	// Prune rollup buckets daily at 3:30 AM
	h.cron.AddFunc("30 3 * * *", func() {
		h.PruneBuckets(context.Background())
	})

	h.cron.Start()
	h.logger.Info("housekeeping jobs started")
}

// Stop stops the job runner
func (h *Housekeeping) Stop() {
	h.cron.Stop()
	h.logger.Info("housekeeping jobs stopped")
}

// PruneChecks deletes raw check results past the retention window.
func (h *Housekeeping) PruneChecks(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-CheckRetention)
	deleted, err := h.checks.DeleteResultsBefore(ctx, cutoff)
	if err != nil {
		h.logger.Error("failed to prune check history", zap.Error(err))
		return
	}
	h.logger.Info("pruned check history",
		zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
}

// PruneBuckets deletes metric buckets past the retention window.
func (h *Housekeeping) PruneBuckets(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-BucketRetention)
	deleted, err := h.buckets.DeleteBucketsBefore(ctx, cutoff)
	if err != nil {
		h.logger.Error("failed to prune metric buckets", zap.Error(err))
		return
	}
	h.logger.Info("pruned metric buckets",
		zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
}
