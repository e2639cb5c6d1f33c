package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// SiteScheduler is the scheduler surface the API drives.
type SiteScheduler interface {
	Upsert(site *models.Site)
	Remove(siteID string)
	TriggerNow(siteID string) bool
}

// StateForgetter drops cached per-site state when a site is removed.
type StateForgetter interface {
	Forget(siteID string)
}

// URLValidator rejects probe targets that must not be fetched.
type URLValidator interface {
	Validate(rawURL string) error
}

// SiteRequest is the create/update payload.
type SiteRequest struct {
	Name                 string `json:"name"`
	URL                  string `json:"url"`
	CheckIntervalSeconds int    `json:"check_interval_seconds"`
	TimeoutSeconds       int    `json:"timeout_seconds"`
	Enabled              *bool  `json:"enabled"`
}

// SiteWithState is a site joined with its current derived state.
type SiteWithState struct {
	models.Site
	State *models.SiteState `json:"state,omitempty"`
}

func validateSiteRequest(req *SiteRequest, guard URLValidator) *ValidationError {
	if req.URL == "" {
		return &ValidationError{Field: "url", Reason: "url is required"}
	}
	if err := guard.Validate(req.URL); err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	if req.CheckIntervalSeconds != 0 && req.CheckIntervalSeconds < models.MinCheckInterval {
		return &ValidationError{Field: "check_interval_seconds", Reason: "must be at least 60 seconds"}
	}
	if req.TimeoutSeconds < 0 {
		return &ValidationError{Field: "timeout_seconds", Reason: "must not be negative"}
	}
	return nil
}

// HandleListSites returns the owner's sites with their current states.
func HandleListSites(sites storage.SiteStore, states storage.StateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		list, err := sites.ListSitesByOwner(r.Context(), ownerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list sites")
			return
		}

		out := make([]SiteWithState, 0, len(list))
		for _, site := range list {
			item := SiteWithState{Site: *site}
			if state, err := states.GetState(r.Context(), site.ID); err == nil {
				item.State = state
			}
			out = append(out, item)
		}

		writeJSON(w, http.StatusOK, out)
	}
}

// HandleCreateSite registers a site and schedules its first check.
func HandleCreateSite(sites storage.SiteStore, sched SiteScheduler, guard URLValidator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		var req SiteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if verr := validateSiteRequest(&req, guard); verr != nil {
			writeValidationError(w, verr)
			return
		}

		interval := req.CheckIntervalSeconds
		if interval == 0 {
			interval = models.DefaultCheckInterval
		}
		timeout := req.TimeoutSeconds
		if timeout == 0 {
			timeout = 10
		}
		name := req.Name
		if name == "" {
			name = req.URL
		}

		site := &models.Site{
			ID:                   uuid.NewString(),
			OwnerID:              ownerID,
			Name:                 name,
			URL:                  req.URL,
			CheckIntervalSeconds: interval,
			TimeoutSeconds:       timeout,
			Enabled:              true,
			CreatedAt:            time.Now().UTC(),
			UpdatedAt:            time.Now().UTC(),
		}

		if err := sites.CreateSite(r.Context(), site); err != nil {
			logger.Error("failed to create site", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create site")
			return
		}

		sched.Upsert(site)

		writeJSON(w, http.StatusCreated, site)
	}
}

// HandleGetSite returns one site with its current state.
func HandleGetSite(sites storage.SiteStore, states storage.StateStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site, ok := loadOwnedSite(w, r, sites)
		if !ok {
			return
		}

		item := SiteWithState{Site: *site}
		if state, err := states.GetState(r.Context(), site.ID); err == nil {
			item.State = state
		}

		writeJSON(w, http.StatusOK, item)
	}
}

// HandleUpdateSite updates a site and reschedules it.
func HandleUpdateSite(sites storage.SiteStore, sched SiteScheduler, guard URLValidator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site, ok := loadOwnedSite(w, r, sites)
		if !ok {
			return
		}

		var req SiteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.URL == "" {
			req.URL = site.URL
		}

		if verr := validateSiteRequest(&req, guard); verr != nil {
			writeValidationError(w, verr)
			return
		}

		if req.Name != "" {
			site.Name = req.Name
		}
		site.URL = req.URL
		if req.CheckIntervalSeconds != 0 {
			site.CheckIntervalSeconds = req.CheckIntervalSeconds
		}
		if req.TimeoutSeconds != 0 {
			site.TimeoutSeconds = req.TimeoutSeconds
		}
		if req.Enabled != nil {
			site.Enabled = *req.Enabled
		}
		site.UpdatedAt = time.Now().UTC()

		if err := sites.UpdateSite(r.Context(), site); err != nil {
			logger.Error("failed to update site", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update site")
			return
		}

		if site.Enabled {
			sched.Upsert(site)
		} else {
			sched.Remove(site.ID)
		}

		writeJSON(w, http.StatusOK, site)
	}
}

// HandleDeleteSite removes a site, cancels its schedule and drops its
// cached state. In-flight probe results for the site are discarded.
func HandleDeleteSite(sites storage.SiteStore, states storage.StateStore, sched SiteScheduler, forgetter StateForgetter, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site, ok := loadOwnedSite(w, r, sites)
		if !ok {
			return
		}

		sched.Remove(site.ID)
		forgetter.Forget(site.ID)

		if err := sites.DeleteSite(r.Context(), site.ID); err != nil {
			logger.Error("failed to delete site", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to delete site")
			return
		}
		if err := states.DeleteState(r.Context(), site.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("failed to delete site state", zap.Error(err))
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleCheckAllSites queues an immediate check for every enabled site of
// the owner. Probes run asynchronously; results arrive over the websocket
// feed and the sites endpoint.
func HandleCheckAllSites(sites storage.SiteStore, sched SiteScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		list, err := sites.ListSitesByOwner(r.Context(), ownerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list sites")
			return
		}

		triggered := 0
		for _, site := range list {
			if !site.Enabled {
				continue
			}
			if sched.TriggerNow(site.ID) {
				triggered++
			}
		}

		writeJSON(w, http.StatusAccepted, map[string]int{"triggered": triggered})
	}
}

// HandleCheckSite queues an immediate check for one site.
func HandleCheckSite(sites storage.SiteStore, sched SiteScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site, ok := loadOwnedSite(w, r, sites)
		if !ok {
			return
		}

		if !sched.TriggerNow(site.ID) {
			writeError(w, http.StatusConflict, "site is not scheduled")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}

// HandleGetSiteChecks returns the raw check history, most recent first.
func HandleGetSiteChecks(sites storage.SiteStore, checks storage.CheckStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site, ok := loadOwnedSite(w, r, sites)
		if !ok {
			return
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}

		results, err := checks.RecentResults(r.Context(), site.ID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load check history")
			return
		}

		writeJSON(w, http.StatusOK, results)
	}
}

// loadOwnedSite fetches the {id} site and enforces ownership. Sites of
// other owners read as 404, never 403.
func loadOwnedSite(w http.ResponseWriter, r *http.Request, sites storage.SiteStore) (*models.Site, bool) {
	id := chi.URLParam(r, "id")
	ownerID := OwnerFromContext(r.Context())

	site, err := sites.GetSite(r.Context(), id)
	if err != nil || site.OwnerID != ownerID {
		writeError(w, http.StatusNotFound, "site not found")
		return nil, false
	}
	return site, true
}
