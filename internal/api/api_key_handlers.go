package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// HandleListAPIKeys returns all API keys for the current owner
func HandleListAPIKeys(keys storage.APIKeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		list, err := keys.ListAPIKeysByOwner(r.Context(), ownerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to fetch API keys")
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

// CreateAPIKeyResponse carries the raw key. It is shown exactly once; only
// the bcrypt hash is stored.
type CreateAPIKeyResponse struct {
	models.APIKey
	Key string `json:"key"`
}

// HandleCreateAPIKey creates a new API key
func HandleCreateAPIKey(keys storage.APIKeyStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		var req struct {
			Name      string  `json:"name"`
			ExpiresAt *string `json:"expires_at,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		var expiresAt *time.Time
		if req.ExpiresAt != nil && *req.ExpiresAt != "" {
			t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid expires_at format")
				return
			}
			expiresAt = &t
		}

		// 32 random bytes = 43 base64 chars
		keyBytes := make([]byte, 32)
		if _, err := rand.Read(keyBytes); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate API key")
			return
		}
		rawKey := base64.URLEncoding.EncodeToString(keyBytes)

		keyHash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to hash API key")
			return
		}

		key := &models.APIKey{
			OwnerID:   ownerID,
			Name:      req.Name,
			KeyHash:   string(keyHash),
			Prefix:    rawKey[:apiKeyPrefixLen],
			ExpiresAt: expiresAt,
			CreatedAt: time.Now().UTC(),
		}

		if err := keys.CreateAPIKey(r.Context(), key); err != nil {
			logger.Error("failed to create API key", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create API key")
			return
		}

		writeJSON(w, http.StatusCreated, CreateAPIKeyResponse{APIKey: *key, Key: rawKey})
	}
}

// HandleDeleteAPIKey revokes an API key
func HandleDeleteAPIKey(keys storage.APIKeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		id, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid key id")
			return
		}

		if err := keys.DeleteAPIKey(r.Context(), id, ownerID); err != nil {
			writeError(w, http.StatusNotFound, "API key not found")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
