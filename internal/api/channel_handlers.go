package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/notification"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// ChannelTester sends a one-off test message through a channel.
type ChannelTester interface {
	TestChannel(ctx context.Context, ch *models.NotificationChannel) error
}

// ChannelRequest is the create/update payload for notification channels.
type ChannelRequest struct {
	Kind           string                 `json:"kind"`
	EndpointConfig map[string]interface{} `json:"endpoint_config"`
	Enabled        *bool                  `json:"enabled"`
}

func validateChannelRequest(req *ChannelRequest) *ValidationError {
	if req.Kind == "" {
		return &ValidationError{Field: "kind", Reason: "kind is required"}
	}
	provider, ok := notification.GetProvider(req.Kind)
	if !ok {
		return &ValidationError{Field: "kind", Reason: "unknown channel kind"}
	}
	if err := provider.Validate(req.EndpointConfig); err != nil {
		return &ValidationError{Field: "endpoint_config", Reason: err.Error()}
	}
	return nil
}

// HandleListChannels returns the owner's notification channels.
func HandleListChannels(channels storage.ChannelStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		list, err := channels.ListChannelsByOwner(r.Context(), ownerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list channels")
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

// HandleCreateChannel registers a notification channel after validating
// its configuration against the provider.
func HandleCreateChannel(channels storage.ChannelStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		var req ChannelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if verr := validateChannelRequest(&req); verr != nil {
			writeValidationError(w, verr)
			return
		}

		ch := &models.NotificationChannel{
			ID:             uuid.NewString(),
			OwnerID:        ownerID,
			Kind:           req.Kind,
			EndpointConfig: req.EndpointConfig,
			Enabled:        true,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}
		if req.Enabled != nil {
			ch.Enabled = *req.Enabled
		}

		if err := channels.CreateChannel(r.Context(), ch); err != nil {
			logger.Error("failed to create channel", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create channel")
			return
		}

		writeJSON(w, http.StatusCreated, ch)
	}
}

// HandleUpdateChannel updates a channel's kind, config or enabled flag.
func HandleUpdateChannel(channels storage.ChannelStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := loadOwnedChannel(w, r, channels)
		if !ok {
			return
		}

		var req ChannelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Kind == "" {
			req.Kind = ch.Kind
		}
		if req.EndpointConfig == nil {
			req.EndpointConfig = ch.EndpointConfig
		}

		if verr := validateChannelRequest(&req); verr != nil {
			writeValidationError(w, verr)
			return
		}

		ch.Kind = req.Kind
		ch.EndpointConfig = req.EndpointConfig
		if req.Enabled != nil {
			ch.Enabled = *req.Enabled
		}
		ch.UpdatedAt = time.Now().UTC()

		if err := channels.UpdateChannel(r.Context(), ch); err != nil {
			logger.Error("failed to update channel", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update channel")
			return
		}

		writeJSON(w, http.StatusOK, ch)
	}
}

// HandleDeleteChannel removes a notification channel.
func HandleDeleteChannel(channels storage.ChannelStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := loadOwnedChannel(w, r, channels)
		if !ok {
			return
		}

		if err := channels.DeleteChannel(r.Context(), ch.ID); err != nil {
			logger.Error("failed to delete channel", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to delete channel")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleTestChannel sends a test message through a channel, synchronously.
func HandleTestChannel(channels storage.ChannelStore, tester ChannelTester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, ok := loadOwnedChannel(w, r, channels)
		if !ok {
			return
		}

		if err := tester.TestChannel(r.Context(), ch); err != nil {
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"status": "failed",
				"error":  err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

func loadOwnedChannel(w http.ResponseWriter, r *http.Request, channels storage.ChannelStore) (*models.NotificationChannel, bool) {
	id := chi.URLParam(r, "id")
	ownerID := OwnerFromContext(r.Context())

	ch, err := channels.GetChannel(r.Context(), id)
	if err != nil || ch.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "channel not found")
		return nil, false
	}
	return ch, true
}
