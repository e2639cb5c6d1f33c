package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// NotificationChannel is an outbound alert destination owned by a user.
// EndpointConfig carries channel-specific credentials (webhook URL, bot
// token, SMTP settings) and is stored as JSON.
type NotificationChannel struct {
	ID             string                 `json:"id" gorm:"primaryKey;type:text"`
	OwnerID        string                 `json:"owner_id" gorm:"not null;index"`
	Kind           string                 `json:"kind" gorm:"not null"`
	EndpointConfig map[string]interface{} `json:"endpoint_config" gorm:"-"`
	ConfigRaw      string                 `json:"-" gorm:"column:endpoint_config;type:text"`
	Enabled        bool                   `json:"enabled" gorm:"default:true;index"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TableName specifies the table name for NotificationChannel
func (NotificationChannel) TableName() string {
	return "notification_channels"
}

// BeforeSave marshals EndpointConfig to JSON (GORM hook)
func (c *NotificationChannel) BeforeSave(tx *gorm.DB) error {
	if c.EndpointConfig != nil {
		raw, err := json.Marshal(c.EndpointConfig)
		if err != nil {
			return err
		}
		c.ConfigRaw = string(raw)
	}
	return nil
}

// AfterFind unmarshals EndpointConfig from JSON (GORM hook)
func (c *NotificationChannel) AfterFind(tx *gorm.DB) error {
	if c.ConfigRaw != "" {
		return json.Unmarshal([]byte(c.ConfigRaw), &c.EndpointConfig)
	}
	return nil
}
