package models

import (
	"fmt"
	"time"
)

// AlertEvent records one status transition. Emitted by the state engine on
// every change of current_status, consumed once per dedupe key by the
// notification dispatcher.
type AlertEvent struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SiteID     string    `json:"site_id" gorm:"not null;index"`
	FromStatus Status    `json:"from_status" gorm:"not null"`
	ToStatus   Status    `json:"to_status" gorm:"not null"`
	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index"`
	DedupeKey  string    `json:"dedupe_key" gorm:"uniqueIndex;not null"`
}

// TableName specifies the table name for AlertEvent
func (AlertEvent) TableName() string {
	return "alert_events"
}

// NewDedupeKey derives the dedupe key for a transition: site id, target
// status and the transition epoch second. Replaying the same transition
// yields the same key.
func NewDedupeKey(siteID string, to Status, occurredAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", siteID, to, occurredAt.Unix())
}

// Delivery outcomes per channel.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// AlertDelivery tracks one channel's delivery of one alert. A delivered row
// for a (dedupe_key, channel) pair suppresses resends; a failed row is
// surfaced in the owner's alert feed.
type AlertDelivery struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	DedupeKey   string     `json:"dedupe_key" gorm:"not null;uniqueIndex:idx_delivery_key_channel"`
	ChannelID   string     `json:"channel_id" gorm:"not null;uniqueIndex:idx_delivery_key_channel"`
	Status      string     `json:"status" gorm:"not null"`
	Attempts    int        `json:"attempts" gorm:"default:0"`
	LastError   string     `json:"last_error,omitempty" gorm:"type:text"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// TableName specifies the table name for AlertDelivery
func (AlertDelivery) TableName() string {
	return "alert_deliveries"
}
