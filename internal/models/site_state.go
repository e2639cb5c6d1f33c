package models

import "time"

// Status is the derived health of a site.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusWarning Status = "warning"
	StatusOffline Status = "offline"
)

// SiteState is the current derived state of a site, one row per site,
// overwritten in place. Only the state engine writes it.
type SiteState struct {
	SiteID              string    `json:"site_id" gorm:"primaryKey;type:text"`
	CurrentStatus       Status    `json:"current_status" gorm:"not null;default:'unknown'"`
	ConsecutiveFailures int       `json:"consecutive_failures" gorm:"default:0"`
	LastTransitionAt    time.Time `json:"last_transition_at"`
	LastCheckedAt       time.Time `json:"last_checked_at"`
}

// TableName specifies the table name for SiteState
func (SiteState) TableName() string {
	return "site_states"
}
