package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/siteguardhq/siteguard/internal/metrics"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// HandleDashboard returns the owner's fleet summary as one snapshot.
func HandleDashboard(agg *metrics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID := OwnerFromContext(r.Context())

		summary, err := agg.Dashboard(r.Context(), ownerID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load dashboard")
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

// HandleSiteStats returns uptime and response time statistics for a site
// over the requested period (1h, 24h, 7d, 30d, 90d).
func HandleSiteStats(sites storage.SiteStore, agg *metrics.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		siteID := chi.URLParam(r, "siteId")
		ownerID := OwnerFromContext(r.Context())

		site, err := sites.GetSite(r.Context(), siteID)
		if err != nil || site.OwnerID != ownerID {
			writeError(w, http.StatusNotFound, "site not found")
			return
		}

		period := metrics.ParsePeriod(r.URL.Query().Get("period"))

		stats, err := agg.SiteStatsForPeriod(r.Context(), site.ID, period)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute stats")
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}
