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

// TelegramProvider sends Telegram bot notifications
type TelegramProvider struct{}

func init() {
	RegisterProvider(&TelegramProvider{})
}

func (t *TelegramProvider) Name() string {
	return "telegram"
}

func (t *TelegramProvider) Send(ctx context.Context, channel *models.NotificationChannel, message *Message) error {
	botToken, _ := channel.EndpointConfig["bot_token"].(string)
	chatID, _ := channel.EndpointConfig["chat_id"].(string)
	disableNotification, _ := channel.EndpointConfig["disable_notification"].(bool)

	if botToken == "" {
		return fmt.Errorf("bot_token is required")
	}

	if chatID == "" {
		return fmt.Errorf("chat_id is required")
	}

	// Build message text with HTML formatting
	text := fmt.Sprintf("<b>%s %s</b>\n\n", statusEmoji(message.ToStatus), message.Title)
	text += fmt.Sprintf("%s\n\n", message.Body)
	text += fmt.Sprintf("<b>Site:</b> %s\n", message.SiteName)

	if message.SiteURL != "" {
		text += fmt.Sprintf("<b>URL:</b> %s\n", message.SiteURL)
	}

	if message.FromStatus != "" {
		text += fmt.Sprintf("<b>Status:</b> %s -> %s\n", message.FromStatus, message.ToStatus)
	}

	text += fmt.Sprintf("<b>Time:</b> %s", message.Time)

	payload := map[string]interface{}{
		"chat_id":              chatID,
		"text":                 text,
		"parse_mode":           "HTML",
		"disable_notification": disableNotification,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Telegram API returned status %d", resp.StatusCode)
	}

	// Parse response to check for errors
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode Telegram response: %w", err)
	}

	if ok, _ := result["ok"].(bool); !ok {
		description, _ := result["description"].(string)
		return fmt.Errorf("Telegram API error: %s", description)
	}

	return nil
}

func (t *TelegramProvider) Validate(config map[string]interface{}) error {
	botToken, ok := config["bot_token"].(string)
	if !ok || botToken == "" {
		return fmt.Errorf("bot_token is required")
	}

	chatID, ok := config["chat_id"].(string)
	if !ok || chatID == "" {
		return fmt.Errorf("chat_id is required")
	}

	return nil
}
