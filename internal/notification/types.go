package notification

import (
	"context"
	"fmt"
	"sync"

	"github.com/siteguardhq/siteguard/internal/models"
)

// Provider defines the interface for all notification providers
type Provider interface {
	// Name returns the unique identifier for this provider
	Name() string

	// Send delivers a message through the given channel
	Send(ctx context.Context, channel *models.NotificationChannel, message *Message) error

	// Validate validates the channel configuration for this provider
	Validate(config map[string]interface{}) error
}

// Message represents an alert message to be sent
type Message struct {
	Title      string
	Body       string
	SiteName   string
	SiteURL    string
	FromStatus string
	ToStatus   string // "online", "offline", "warning", "unknown"
	Time       string
	Important  bool
}

// Registry holds all registered notification providers
var (
	providers = make(map[string]Provider)
	mu        sync.RWMutex
)

// RegisterProvider registers a new notification provider
func RegisterProvider(provider Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[provider.Name()] = provider
}

// GetProvider returns a provider by name
func GetProvider(name string) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	provider, ok := providers[name]
	return provider, ok
}

// GetAllProviders returns all registered providers
func GetAllProviders() map[string]Provider {
	mu.RLock()
	defer mu.RUnlock()
	result := make(map[string]Provider)
	for k, v := range providers {
		result[k] = v
	}
	return result
}

func statusEmoji(status string) string {
	switch status {
	case string(models.StatusOnline):
		return "✅"
	case string(models.StatusOffline):
		return "❌"
	case string(models.StatusWarning):
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// FormatMessage formats an alert message with common details
func FormatMessage(msg *Message) string {
	body := fmt.Sprintf("%s %s\n\n", statusEmoji(msg.ToStatus), msg.Title)
	body += msg.Body + "\n\n"
	body += fmt.Sprintf("Site: %s\n", msg.SiteName)

	if msg.SiteURL != "" {
		body += fmt.Sprintf("URL: %s\n", msg.SiteURL)
	}

	if msg.FromStatus != "" {
		body += fmt.Sprintf("Status: %s -> %s\n", msg.FromStatus, msg.ToStatus)
	}

	body += fmt.Sprintf("Time: %s\n", msg.Time)

	return body
}
