package models

import "time"

// APIKey is a machine credential for the dashboard service. Only the bcrypt
// hash is stored; the prefix lets lookups avoid hashing every row.
type APIKey struct {
	ID         int        `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID    string     `json:"owner_id" gorm:"not null;index"`
	Name       string     `json:"name" gorm:"not null"`
	KeyHash    string     `json:"-" gorm:"not null"`
	Prefix     string     `json:"prefix" gorm:"index"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName specifies the table name for APIKey
func (APIKey) TableName() string {
	return "api_keys"
}

// IsExpired checks if the API key has expired
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return k.ExpiresAt.Before(time.Now())
}
