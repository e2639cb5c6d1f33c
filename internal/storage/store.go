package storage

import (
	"context"
	"errors"
	"time"

	"github.com/siteguardhq/siteguard/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SiteStore owns the set of monitored targets.
type SiteStore interface {
	CreateSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id string) (*models.Site, error)
	UpdateSite(ctx context.Context, site *models.Site) error
	DeleteSite(ctx context.Context, id string) error
	ListSitesByOwner(ctx context.Context, ownerID string) ([]*models.Site, error)
	ListEnabledSites(ctx context.Context) ([]*models.Site, error)
}

// CheckStore is the append-only probe history.
type CheckStore interface {
	AppendResult(ctx context.Context, result *models.CheckResult) error
	RecentResults(ctx context.Context, siteID string, limit int) ([]*models.CheckResult, error)
	DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StateStore holds one derived state row per site.
type StateStore interface {
	GetState(ctx context.Context, siteID string) (*models.SiteState, error)
	SaveState(ctx context.Context, state *models.SiteState) error
	DeleteState(ctx context.Context, siteID string) error
}

// AlertWithDeliveries is an alert event joined with its per-channel
// delivery outcomes, as shown in the owner's alert feed.
type AlertWithDeliveries struct {
	models.AlertEvent
	Deliveries []models.AlertDelivery `json:"deliveries"`
}

// AlertStore persists transitions and their delivery records.
type AlertStore interface {
	CreateAlert(ctx context.Context, event *models.AlertEvent) error
	ListAlertsByOwner(ctx context.Context, ownerID string, limit int) ([]*AlertWithDeliveries, error)
	GetDelivery(ctx context.Context, dedupeKey, channelID string) (*models.AlertDelivery, error)
	SaveDelivery(ctx context.Context, delivery *models.AlertDelivery) error
}

// ChannelStore holds notification channel configuration.
type ChannelStore interface {
	CreateChannel(ctx context.Context, ch *models.NotificationChannel) error
	GetChannel(ctx context.Context, id string) (*models.NotificationChannel, error)
	UpdateChannel(ctx context.Context, ch *models.NotificationChannel) error
	DeleteChannel(ctx context.Context, id string) error
	ListChannelsByOwner(ctx context.Context, ownerID string) ([]*models.NotificationChannel, error)
	ListEnabledChannels(ctx context.Context, ownerID string) ([]*models.NotificationChannel, error)
}

// DashboardSummary is the point-in-time reduction over an owner's sites.
type DashboardSummary struct {
	TotalSites    int64   `json:"total_sites"`
	OnlineSites   int64   `json:"online_sites"`
	OfflineSites  int64   `json:"offline_sites"`
	AverageUptime float64 `json:"average_uptime"`
}

// MetricStore holds the bucketed rollups.
type MetricStore interface {
	IncrementBucket(ctx context.Context, siteID string, bucketStart time.Time, online bool, responseTimeMs int64) error
	BucketsInRange(ctx context.Context, siteID string, from, to time.Time) ([]*models.MetricBucket, error)
	DeleteBucketsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DashboardSummaryFor must be a snapshot read: all counters from a
	// single consistent point in time.
	DashboardSummaryFor(ctx context.Context, ownerID string, uptimeWindow time.Duration) (*DashboardSummary, error)
}

// APIKeyStore holds hashed machine credentials.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]*models.APIKey, error)
	TouchAPIKey(ctx context.Context, id int, usedAt time.Time) error
	DeleteAPIKey(ctx context.Context, id int, ownerID string) error
}

// Store is the full persistence surface of the engine.
type Store interface {
	SiteStore
	CheckStore
	StateStore
	AlertStore
	ChannelStore
	MetricStore
	APIKeyStore
}
