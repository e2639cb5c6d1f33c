package models

import "time"

// BucketSize is the fixed rollup window.
const BucketSize = time.Minute

// MetricBucket is a per-site, per-minute rollup of check outcomes. Buckets
// are upserted with additive increments so period queries cost
// O(buckets-in-range) instead of scanning raw history.
type MetricBucket struct {
	SiteID            string    `json:"site_id" gorm:"primaryKey;type:text"`
	BucketStart       time.Time `json:"bucket_start" gorm:"primaryKey"`
	CheckCount        int64     `json:"check_count" gorm:"default:0"`
	OnlineCount       int64     `json:"online_count" gorm:"default:0"`
	ResponseTimeSumMs int64     `json:"response_time_sum_ms" gorm:"default:0"`
}

// TableName specifies the table name for MetricBucket
func (MetricBucket) TableName() string {
	return "metric_buckets"
}

// BucketStartFor truncates a timestamp to its bucket boundary.
func BucketStartFor(t time.Time) time.Time {
	return t.UTC().Truncate(BucketSize)
}
