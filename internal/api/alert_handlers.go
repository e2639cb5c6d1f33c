package api

import (
	"net/http"
	"strconv"

	"github.com/siteguardhq/siteguard/internal/storage"
)

// HandleListAlerts returns the owner's alert events with per-channel
// delivery outcomes, most recent first.
func HandleListAlerts(alerts storage.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		list, err := alerts.ListAlertsByOwner(r.Context(), ownerID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list alerts")
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}
