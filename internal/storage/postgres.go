package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/siteguardhq/siteguard/internal/models"
)

// PostgresStore implements Store on top of GORM.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore creates a Store backed by the given database handle.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ---- sites ----

func (s *PostgresStore) CreateSite(ctx context.Context, site *models.Site) error {
	return s.db.WithContext(ctx).Create(site).Error
}

func (s *PostgresStore) GetSite(ctx context.Context, id string) (*models.Site, error) {
	var site models.Site
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *PostgresStore) UpdateSite(ctx context.Context, site *models.Site) error {
	res := s.db.WithContext(ctx).Model(&models.Site{}).
		Where("id = ?", site.ID).
		Updates(map[string]interface{}{
			"name":                   site.Name,
			"url":                    site.URL,
			"check_interval_seconds": site.CheckIntervalSeconds,
			"timeout_seconds":        site.TimeoutSeconds,
			"enabled":                site.Enabled,
			"updated_at":             time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteSite(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Site{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("site_id = ?", id).Delete(&models.SiteState{}).Error
	})
}

func (s *PostgresStore) ListSitesByOwner(ctx context.Context, ownerID string) ([]*models.Site, error) {
	var sites []*models.Site
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&sites).Error
	return sites, err
}

func (s *PostgresStore) ListEnabledSites(ctx context.Context) ([]*models.Site, error) {
	var sites []*models.Site
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&sites).Error
	return sites, err
}

// ---- check history ----

func (s *PostgresStore) AppendResult(ctx context.Context, result *models.CheckResult) error {
	return s.db.WithContext(ctx).Create(result).Error
}

func (s *PostgresStore) RecentResults(ctx context.Context, siteID string, limit int) ([]*models.CheckResult, error) {
	var results []*models.CheckResult
	err := s.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&results).Error
	return results, err
}

func (s *PostgresStore) DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.CheckResult{})
	return res.RowsAffected, res.Error
}

// ---- site state ----

func (s *PostgresStore) GetState(ctx context.Context, siteID string) (*models.SiteState, error) {
	var state models.SiteState
	err := s.db.WithContext(ctx).Where("site_id = ?", siteID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *PostgresStore) SaveState(ctx context.Context, state *models.SiteState) error {
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO site_states (site_id, current_status, consecutive_failures, last_transition_at, last_checked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (site_id) DO UPDATE SET
			current_status = EXCLUDED.current_status,
			consecutive_failures = EXCLUDED.consecutive_failures,
			last_transition_at = EXCLUDED.last_transition_at,
			last_checked_at = EXCLUDED.last_checked_at
	`, state.SiteID, state.CurrentStatus, state.ConsecutiveFailures,
		state.LastTransitionAt, state.LastCheckedAt).Error
}

func (s *PostgresStore) DeleteState(ctx context.Context, siteID string) error {
	return s.db.WithContext(ctx).Where("site_id = ?", siteID).Delete(&models.SiteState{}).Error
}

// ---- alerts ----

func (s *PostgresStore) CreateAlert(ctx context.Context, event *models.AlertEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *PostgresStore) ListAlertsByOwner(ctx context.Context, ownerID string, limit int) ([]*AlertWithDeliveries, error) {
	var events []models.AlertEvent
	err := s.db.WithContext(ctx).Raw(`
		SELECT a.* FROM alert_events a
		INNER JOIN sites s ON s.id = a.site_id
		WHERE s.owner_id = ?
		ORDER BY a.occurred_at DESC
		LIMIT ?
	`, ownerID, limit).Scan(&events).Error
	if err != nil {
		return nil, err
	}

	out := make([]*AlertWithDeliveries, 0, len(events))
	keys := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, &AlertWithDeliveries{AlertEvent: ev})
		keys = append(keys, ev.DedupeKey)
	}

	if len(keys) > 0 {
		var deliveries []models.AlertDelivery
		if err := s.db.WithContext(ctx).Where("dedupe_key IN ?", keys).Find(&deliveries).Error; err != nil {
			return nil, err
		}
		byKey := make(map[string][]models.AlertDelivery, len(deliveries))
		for _, d := range deliveries {
			byKey[d.DedupeKey] = append(byKey[d.DedupeKey], d)
		}
		for _, a := range out {
			a.Deliveries = byKey[a.DedupeKey]
		}
	}

	return out, nil
}

func (s *PostgresStore) GetDelivery(ctx context.Context, dedupeKey, channelID string) (*models.AlertDelivery, error) {
	var d models.AlertDelivery
	err := s.db.WithContext(ctx).
		Where("dedupe_key = ? AND channel_id = ?", dedupeKey, channelID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) SaveDelivery(ctx context.Context, delivery *models.AlertDelivery) error {
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO alert_deliveries (dedupe_key, channel_id, status, attempts, last_error, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (dedupe_key, channel_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			delivered_at = EXCLUDED.delivered_at
	`, delivery.DedupeKey, delivery.ChannelID, delivery.Status,
		delivery.Attempts, delivery.LastError, delivery.DeliveredAt).Error
}

// ---- channels ----

func (s *PostgresStore) CreateChannel(ctx context.Context, ch *models.NotificationChannel) error {
	return s.db.WithContext(ctx).Create(ch).Error
}

func (s *PostgresStore) GetChannel(ctx context.Context, id string) (*models.NotificationChannel, error) {
	var ch models.NotificationChannel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *PostgresStore) UpdateChannel(ctx context.Context, ch *models.NotificationChannel) error {
	return s.db.WithContext(ctx).Save(ch).Error
}

func (s *PostgresStore) DeleteChannel(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.NotificationChannel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListChannelsByOwner(ctx context.Context, ownerID string) ([]*models.NotificationChannel, error) {
	var chs []*models.NotificationChannel
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&chs).Error
	return chs, err
}

func (s *PostgresStore) ListEnabledChannels(ctx context.Context, ownerID string) ([]*models.NotificationChannel, error) {
	var chs []*models.NotificationChannel
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND enabled = ?", ownerID, true).
		Find(&chs).Error
	return chs, err
}

// ---- metric buckets ----

func (s *PostgresStore) IncrementBucket(ctx context.Context, siteID string, bucketStart time.Time, online bool, responseTimeMs int64) error {
	onlineInc := 0
	if online {
		onlineInc = 1
	}
	return s.db.WithContext(ctx).Exec(`
		INSERT INTO metric_buckets (site_id, bucket_start, check_count, online_count, response_time_sum_ms)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (site_id, bucket_start) DO UPDATE SET
			check_count = metric_buckets.check_count + 1,
			online_count = metric_buckets.online_count + EXCLUDED.online_count,
			response_time_sum_ms = metric_buckets.response_time_sum_ms + EXCLUDED.response_time_sum_ms
	`, siteID, bucketStart, onlineInc, responseTimeMs).Error
}

func (s *PostgresStore) BucketsInRange(ctx context.Context, siteID string, from, to time.Time) ([]*models.MetricBucket, error) {
	var buckets []*models.MetricBucket
	err := s.db.WithContext(ctx).
		Where("site_id = ? AND bucket_start >= ? AND bucket_start < ?", siteID, from, to).
		Order("bucket_start ASC").
		Find(&buckets).Error
	return buckets, err
}

func (s *PostgresStore) DeleteBucketsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("bucket_start < ?", cutoff).Delete(&models.MetricBucket{})
	return res.RowsAffected, res.Error
}

// DashboardSummaryFor reduces site states and recent rollups inside a single
// repeatable-read transaction so the totals are mutually consistent.
func (s *PostgresStore) DashboardSummaryFor(ctx context.Context, ownerID string, uptimeWindow time.Duration) (*DashboardSummary, error) {
	summary := &DashboardSummary{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var counts struct {
			Total   int64 `gorm:"column:total"`
			Online  int64 `gorm:"column:online"`
			Offline int64 `gorm:"column:offline"`
		}
		if err := tx.Raw(`
			SELECT
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE st.current_status = 'online') AS online,
				COUNT(*) FILTER (WHERE st.current_status = 'offline') AS offline
			FROM sites s
			LEFT JOIN site_states st ON st.site_id = s.id
			WHERE s.owner_id = ?
		`, ownerID).Scan(&counts).Error; err != nil {
			return err
		}

		var uptime struct {
			ChecksTotal  int64 `gorm:"column:checks_total"`
			ChecksOnline int64 `gorm:"column:checks_online"`
		}
		since := time.Now().UTC().Add(-uptimeWindow)
		if err := tx.Raw(`
			SELECT
				COALESCE(SUM(mb.check_count), 0) AS checks_total,
				COALESCE(SUM(mb.online_count), 0) AS checks_online
			FROM metric_buckets mb
			INNER JOIN sites s ON s.id = mb.site_id
			WHERE s.owner_id = ? AND mb.bucket_start >= ?
		`, ownerID, since).Scan(&uptime).Error; err != nil {
			return err
		}

		summary.TotalSites = counts.Total
		summary.OnlineSites = counts.Online
		summary.OfflineSites = counts.Offline
		if uptime.ChecksTotal > 0 {
			summary.AverageUptime = float64(uptime.ChecksOnline) / float64(uptime.ChecksTotal) * 100
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return summary, nil
}

// ---- api keys ----

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	return s.db.WithContext(ctx).Create(key).Error
}

func (s *PostgresStore) ListAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	err := s.db.WithContext(ctx).Where("prefix = ?", prefix).Find(&keys).Error
	return keys, err
}

func (s *PostgresStore) ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&keys).Error
	return keys, err
}

func (s *PostgresStore) TouchAPIKey(ctx context.Context, id int, usedAt time.Time) error {
	return s.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", usedAt).Error
}

func (s *PostgresStore) DeleteAPIKey(ctx context.Context, id int, ownerID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.APIKey{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
