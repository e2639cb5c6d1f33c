package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/siteguardhq/siteguard/internal/config"
	"github.com/siteguardhq/siteguard/internal/metrics"
	"github.com/siteguardhq/siteguard/internal/storage"
	"github.com/siteguardhq/siteguard/internal/websocket"
)

// Deps are the collaborators the HTTP surface drives.
type Deps struct {
	Store      storage.Store
	Scheduler  SiteScheduler
	Forgetter  StateForgetter
	Guard      URLValidator
	Aggregator *metrics.Aggregator
	Tester     ChannelTester
	Hub        *websocket.Hub
	Logger     *zap.Logger
}

// NewRouter creates the HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLoggerMiddleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(SecurityHeadersMiddleware(cfg))

	limiter := NewRateLimiter(rate.Limit(20), 40)
	limiter.CleanupOldLimiters()
	r.Use(RateLimitMiddleware(limiter))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret, deps.Store, deps.Logger))

		r.Get("/sites", HandleListSites(deps.Store, deps.Store))
		r.Post("/sites", HandleCreateSite(deps.Store, deps.Scheduler, deps.Guard, deps.Logger))
		// Original route kept for existing clients.
		r.Post("/add-site", HandleCreateSite(deps.Store, deps.Scheduler, deps.Guard, deps.Logger))
		r.Get("/sites/{id}", HandleGetSite(deps.Store, deps.Store))
		r.Put("/sites/{id}", HandleUpdateSite(deps.Store, deps.Scheduler, deps.Guard, deps.Logger))
		r.Delete("/sites/{id}", HandleDeleteSite(deps.Store, deps.Store, deps.Scheduler, deps.Forgetter, deps.Logger))
		r.Get("/sites/{id}/checks", HandleGetSiteChecks(deps.Store, deps.Store))
		r.Post("/sites/{id}/check", HandleCheckSite(deps.Store, deps.Scheduler))
		r.Post("/check-sites", HandleCheckAllSites(deps.Store, deps.Scheduler))

		r.Get("/dashboard", HandleDashboard(deps.Aggregator))
		r.Get("/stats/{siteId}", HandleSiteStats(deps.Store, deps.Aggregator))

		r.Get("/channels", HandleListChannels(deps.Store))
		r.Post("/channels", HandleCreateChannel(deps.Store, deps.Logger))
		r.Put("/channels/{id}", HandleUpdateChannel(deps.Store, deps.Logger))
		r.Delete("/channels/{id}", HandleDeleteChannel(deps.Store, deps.Logger))
		r.Post("/channels/{id}/test", HandleTestChannel(deps.Store, deps.Tester))

		r.Get("/alerts", HandleListAlerts(deps.Store))

		r.Get("/api-keys", HandleListAPIKeys(deps.Store))
		r.Post("/api-keys", HandleCreateAPIKey(deps.Store, deps.Logger))
		r.Delete("/api-keys/{id}", HandleDeleteAPIKey(deps.Store))
	})

	// WebSocket endpoint (token auth handled by the hub)
	r.Get("/ws", deps.Hub.HandleWebSocket)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
