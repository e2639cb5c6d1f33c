package state

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// AlertSink receives alert events emitted on status transitions.
type AlertSink interface {
	HandleAlert(event *models.AlertEvent)
}

// ResultSink receives every processed result, with the derived online flag,
// for history persistence and rollups.
type ResultSink interface {
	Record(ctx context.Context, result *models.CheckResult, online bool) error
}

// Broadcaster pushes live updates to connected dashboards.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Options tunes the status state machine.
type Options struct {
	// SlowThresholdMs is the response time at which a reachable site is
	// reported as warning.
	SlowThresholdMs int64
	// OfflineThreshold is the number of consecutive failures required
	// before a site is declared offline.
	OfflineThreshold int
	// SSLWarningWindow is how close to certificate expiry a site is
	// reported as warning.
	SSLWarningWindow time.Duration
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.SlowThresholdMs <= 0 {
		out.SlowThresholdMs = 3000
	}
	if out.OfflineThreshold < 1 {
		out.OfflineThreshold = 2
	}
	if out.SSLWarningWindow <= 0 {
		out.SSLWarningWindow = 7 * 24 * time.Hour
	}
	return out
}

// Engine consumes the probe result stream and drives the per-site status
// state machine. It is the single writer of SiteState: per-site ordering is
// guaranteed upstream (at most one probe in flight per site) and the engine
// itself processes results on one goroutine.
type Engine struct {
	states      storage.StateStore
	alerts      storage.AlertStore
	results     ResultSink
	alertSink   AlertSink
	broadcaster Broadcaster
	opts        Options
	logger      *zap.Logger

	mu    sync.Mutex
	cache map[string]*models.SiteState
}

// NewEngine creates a state engine. alertSink and broadcaster may be nil.
func NewEngine(states storage.StateStore, alerts storage.AlertStore, results ResultSink, alertSink AlertSink, broadcaster Broadcaster, opts Options, logger *zap.Logger) *Engine {
	return &Engine{
		states:      states,
		alerts:      alerts,
		results:     results,
		alertSink:   alertSink,
		broadcaster: broadcaster,
		opts:        opts.withDefaults(),
		logger:      logger,
		cache:       make(map[string]*models.SiteState),
	}
}

// Run processes results until ctx is cancelled or the channel closes.
func (e *Engine) Run(ctx context.Context, in <-chan *models.CheckResult) {
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("state engine stopped")
			return
		case result, ok := <-in:
			if !ok {
				e.logger.Info("state engine input closed")
				return
			}
			e.Process(ctx, result)
		}
	}
}

// Process applies one result to its site's state machine. A storage fault
// for one site is logged and never stops processing of other sites.
func (e *Engine) Process(ctx context.Context, result *models.CheckResult) {
	state := e.loadState(ctx, result.SiteID)

	from := state.CurrentStatus
	to := e.evaluate(state, result)
	state.LastCheckedAt = result.Timestamp

	transitioned := to != from
	if transitioned {
		state.CurrentStatus = to
		state.LastTransitionAt = result.Timestamp
	}

	if err := e.states.SaveState(ctx, state); err != nil {
		e.logger.Error("failed to save site state",
			zap.String("site_id", result.SiteID), zap.Error(err))
	}

	online := !result.Failed()
	if err := e.results.Record(ctx, result, online); err != nil {
		e.logger.Error("failed to record check result",
			zap.String("site_id", result.SiteID), zap.Error(err))
	}

	if e.broadcaster != nil {
		e.broadcaster.Broadcast("check_result", result)
	}

	if !transitioned {
		return
	}

	event := &models.AlertEvent{
		SiteID:     result.SiteID,
		FromStatus: from,
		ToStatus:   to,
		OccurredAt: result.Timestamp,
		DedupeKey:  models.NewDedupeKey(result.SiteID, to, result.Timestamp),
	}
	if err := e.alerts.CreateAlert(ctx, event); err != nil {
		e.logger.Error("failed to persist alert event",
			zap.String("site_id", result.SiteID), zap.Error(err))
	}

	e.logger.Info("site status transition",
		zap.String("site_id", result.SiteID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	if e.broadcaster != nil {
		e.broadcaster.Broadcast("status_change", event)
	}
	if e.alertSink != nil {
		e.alertSink.HandleAlert(event)
	}
}

// evaluate decides the next status and maintains the failure counter.
func (e *Engine) evaluate(state *models.SiteState, result *models.CheckResult) models.Status {
	if result.Failed() {
		state.ConsecutiveFailures++
		if state.ConsecutiveFailures >= e.opts.OfflineThreshold {
			return models.StatusOffline
		}
		// Below the debounce threshold the status holds its previous
		// value while failures accumulate.
		return state.CurrentStatus
	}

	state.ConsecutiveFailures = 0

	if result.ResponseTimeMs >= e.opts.SlowThresholdMs {
		return models.StatusWarning
	}
	if result.SSLExpiresAt != nil && time.Until(*result.SSLExpiresAt) <= e.opts.SSLWarningWindow {
		return models.StatusWarning
	}
	return models.StatusOnline
}

// Forget drops a removed site's cached state so a later re-registration
// under the same id starts from unknown.
func (e *Engine) Forget(siteID string) {
	e.mu.Lock()
	delete(e.cache, siteID)
	e.mu.Unlock()
}

func (e *Engine) loadState(ctx context.Context, siteID string) *models.SiteState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.cache[siteID]; ok {
		return state
	}

	state, err := e.states.GetState(ctx, siteID)
	if err != nil {
		state = &models.SiteState{
			SiteID:        siteID,
			CurrentStatus: models.StatusUnknown,
		}
	}
	e.cache[siteID] = state
	return state
}
