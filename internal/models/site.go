package models

import "time"

// DefaultCheckInterval is the probe cadence assigned when a site is
// registered without an explicit interval.
const DefaultCheckInterval = 300

// MinCheckInterval is the lowest accepted probe cadence. Anything below is
// rejected at registration to prevent probe storms.
const MinCheckInterval = 60

// Site represents a monitored target.
type Site struct {
	ID                   string    `json:"id" gorm:"primaryKey;type:text"`
	OwnerID              string    `json:"owner_id" gorm:"not null;index"`
	Name                 string    `json:"name" gorm:"not null"`
	URL                  string    `json:"url" gorm:"not null"`
	CheckIntervalSeconds int       `json:"check_interval_seconds" gorm:"default:300"`
	TimeoutSeconds       int       `json:"timeout_seconds" gorm:"default:10"`
	Enabled              bool      `json:"enabled" gorm:"default:true;index"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName specifies the table name for Site
func (Site) TableName() string {
	return "sites"
}

// Interval returns the configured cadence as a duration.
func (s *Site) Interval() time.Duration {
	iv := s.CheckIntervalSeconds
	if iv < MinCheckInterval {
		iv = DefaultCheckInterval
	}
	return time.Duration(iv) * time.Second
}

// Timeout returns the per-probe wall-clock timeout.
func (s *Site) Timeout() time.Duration {
	t := s.TimeoutSeconds
	if t <= 0 {
		t = 10
	}
	return time.Duration(t) * time.Second
}
