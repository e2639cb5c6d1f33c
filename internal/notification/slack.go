package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/siteguardhq/siteguard/internal/models"
)

// SlackProvider sends Slack webhook notifications
type SlackProvider struct{}

func init() {
	RegisterProvider(&SlackProvider{})
}

func (s *SlackProvider) Name() string {
	return "slack"
}

func (s *SlackProvider) Send(ctx context.Context, channel *models.NotificationChannel, message *Message) error {
	webhookURL, _ := channel.EndpointConfig["webhook_url"].(string)
	slackChannel, _ := channel.EndpointConfig["channel"].(string)
	username, _ := channel.EndpointConfig["username"].(string)

	if webhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}

	if username == "" {
		username = "SiteGuard"
	}

	// Attachment color based on the new status
	var color string
	switch message.ToStatus {
	case string(models.StatusOnline):
		color = "good"
	case string(models.StatusOffline):
		color = "danger"
	case string(models.StatusWarning):
		color = "warning"
	default:
		color = "#808080"
	}

	fields := []map[string]interface{}{
		{"title": "Site", "value": message.SiteName, "short": true},
		{"title": "Status", "value": message.ToStatus, "short": true},
	}
	if message.SiteURL != "" {
		fields = append(fields, map[string]interface{}{
			"title": "URL", "value": message.SiteURL, "short": false,
		})
	}

	attachment := map[string]interface{}{
		"color":  color,
		"title":  message.Title,
		"text":   message.Body,
		"ts":     time.Now().Unix(),
		"footer": "SiteGuard",
		"fields": fields,
	}

	payload := map[string]interface{}{
		"username":    username,
		"attachments": []interface{}{attachment},
	}
	if slackChannel != "" {
		payload["channel"] = slackChannel
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Slack webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (s *SlackProvider) Validate(config map[string]interface{}) error {
	webhookURL, ok := config["webhook_url"].(string)
	if !ok || webhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}

	return nil
}
