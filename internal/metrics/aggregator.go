package metrics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// Aggregator persists check history and maintains the per-minute rollup
// buckets that back uptime and response-time queries.
type Aggregator struct {
	checks  storage.CheckStore
	buckets storage.MetricStore
	logger  *zap.Logger
}

// NewAggregator creates a metrics aggregator.
func NewAggregator(checks storage.CheckStore, buckets storage.MetricStore, logger *zap.Logger) *Aggregator {
	return &Aggregator{checks: checks, buckets: buckets, logger: logger}
}

// Record appends the result to durable history and increments its site's
// current rollup bucket. Response time only contributes to the average for
// online checks.
func (a *Aggregator) Record(ctx context.Context, result *models.CheckResult, online bool) error {
	if err := a.checks.AppendResult(ctx, result); err != nil {
		return fmt.Errorf("append check result: %w", err)
	}

	responseMs := int64(0)
	if online {
		responseMs = result.ResponseTimeMs
	}
	bucketStart := models.BucketStartFor(result.Timestamp)
	if err := a.buckets.IncrementBucket(ctx, result.SiteID, bucketStart, online, responseMs); err != nil {
		return fmt.Errorf("increment metric bucket: %w", err)
	}
	return nil
}

// HistoryPoint is one rollup bucket in a stats response.
type HistoryPoint struct {
	BucketStart       time.Time `json:"bucket_start"`
	UptimePercent     float64   `json:"uptime_percent"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	CheckCount        int64     `json:"check_count"`
}

// SiteStats summarizes a site over a period.
type SiteStats struct {
	SiteID            string         `json:"site_id"`
	UptimePercent     float64        `json:"uptimePercent"`
	AvgResponseTimeMs float64        `json:"avgResponseTimeMs"`
	TotalChecks       int64          `json:"total_checks"`
	OnlineChecks      int64          `json:"online_checks"`
	StartTime         time.Time      `json:"start_time"`
	EndTime           time.Time      `json:"end_time"`
	History           []HistoryPoint `json:"history"`
}

// SiteStatsForPeriod reduces the site's rollup buckets over the trailing
// period. Cost is proportional to buckets in range, not raw checks.
func (a *Aggregator) SiteStatsForPeriod(ctx context.Context, siteID string, period time.Duration) (*SiteStats, error) {
	end := time.Now().UTC()
	start := end.Add(-period)

	buckets, err := a.buckets.BucketsInRange(ctx, siteID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load metric buckets: %w", err)
	}

	stats := &SiteStats{
		SiteID:    siteID,
		StartTime: start,
		EndTime:   end,
		History:   make([]HistoryPoint, 0, len(buckets)),
	}

	var responseSum int64
	for _, b := range buckets {
		stats.TotalChecks += b.CheckCount
		stats.OnlineChecks += b.OnlineCount
		responseSum += b.ResponseTimeSumMs

		point := HistoryPoint{
			BucketStart: b.BucketStart,
			CheckCount:  b.CheckCount,
		}
		if b.CheckCount > 0 {
			point.UptimePercent = float64(b.OnlineCount) / float64(b.CheckCount) * 100
		}
		if b.OnlineCount > 0 {
			point.AvgResponseTimeMs = float64(b.ResponseTimeSumMs) / float64(b.OnlineCount)
		}
		stats.History = append(stats.History, point)
	}

	if stats.TotalChecks > 0 {
		stats.UptimePercent = float64(stats.OnlineChecks) / float64(stats.TotalChecks) * 100
	}
	if stats.OnlineChecks > 0 {
		stats.AvgResponseTimeMs = float64(responseSum) / float64(stats.OnlineChecks)
	}

	return stats, nil
}

// Dashboard returns the owner's point-in-time summary. Uptime averages
// over the trailing 24 hours.
func (a *Aggregator) Dashboard(ctx context.Context, ownerID string) (*storage.DashboardSummary, error) {
	return a.buckets.DashboardSummaryFor(ctx, ownerID, 24*time.Hour)
}

// ParsePeriod maps a stats query period to a duration. Defaults to 24h.
func ParsePeriod(period string) time.Duration {
	switch period {
	case "1h":
		return time.Hour
	case "7d":
		return 7 * 24 * time.Hour
	case "30d":
		return 30 * 24 * time.Hour
	case "90d":
		return 90 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}
