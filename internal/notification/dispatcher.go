package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// Options tunes delivery retries and queueing.
type Options struct {
	// MaxAttempts is the number of send attempts per channel before the
	// delivery is recorded as failed.
	MaxAttempts int
	// BackoffBase is the delay before the first retry. Each further retry
	// doubles it.
	BackoffBase time.Duration
	// QueueSize bounds the pending event queue.
	QueueSize int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.MaxAttempts < 1 {
		out.MaxAttempts = 5
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = 2 * time.Second
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 1024
	}
	return out
}

// Dispatcher fans alert events out to the owner's enabled channels. Every
// (dedupe key, channel) pair is delivered at most once: a delivered row in
// the store suppresses resends, including across restarts.
type Dispatcher struct {
	sites    storage.SiteStore
	channels storage.ChannelStore
	alerts   storage.AlertStore
	opts     Options
	logger   *zap.Logger

	queue chan *models.AlertEvent
	done  chan struct{}
}

// NewDispatcher creates a notification dispatcher. Start must be called
// before events are handled.
func NewDispatcher(sites storage.SiteStore, channels storage.ChannelStore, alerts storage.AlertStore, opts Options, logger *zap.Logger) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		sites:    sites,
		channels: channels,
		alerts:   alerts,
		opts:     opts,
		logger:   logger,
		queue:    make(chan *models.AlertEvent, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// HandleAlert enqueues an event for delivery. It never blocks the caller:
// when the queue is full the event is dropped and logged. The persisted
// AlertEvent row is unaffected either way.
func (d *Dispatcher) HandleAlert(event *models.AlertEvent) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("notification queue full, dropping event",
			zap.String("dedupe_key", event.DedupeKey))
	}
}

// Start consumes the queue until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for {
			select {
			case <-ctx.Done():
				d.logger.Info("notification dispatcher stopped")
				return
			case event := <-d.queue:
				d.Dispatch(ctx, event)
			}
		}
	}()
}

// Wait blocks until the dispatch loop has exited.
func (d *Dispatcher) Wait() {
	<-d.done
}

// Dispatch sends one event to every enabled channel of the site's owner.
// Channels are independent: one channel failing, misconfigured or unknown
// never blocks delivery to the others.
func (d *Dispatcher) Dispatch(ctx context.Context, event *models.AlertEvent) {
	site, err := d.sites.GetSite(ctx, event.SiteID)
	if err != nil {
		// Site removed between transition and dispatch.
		d.logger.Warn("skipping alert for unknown site",
			zap.String("site_id", event.SiteID), zap.Error(err))
		return
	}

	channels, err := d.channels.ListEnabledChannels(ctx, site.OwnerID)
	if err != nil {
		d.logger.Error("failed to list notification channels",
			zap.String("owner_id", site.OwnerID), zap.Error(err))
		return
	}
	if len(channels) == 0 {
		return
	}

	msg := d.buildMessage(site, event)
	for _, ch := range channels {
		d.deliverToChannel(ctx, event, ch, msg)
	}
}

func (d *Dispatcher) buildMessage(site *models.Site, event *models.AlertEvent) *Message {
	var title, body string
	switch event.ToStatus {
	case models.StatusOffline:
		title = fmt.Sprintf("%s is DOWN", site.Name)
		body = fmt.Sprintf("%s is no longer reachable.", site.URL)
	case models.StatusOnline:
		title = fmt.Sprintf("%s is UP", site.Name)
		body = fmt.Sprintf("%s is responding normally again.", site.URL)
	case models.StatusWarning:
		title = fmt.Sprintf("%s is degraded", site.Name)
		body = fmt.Sprintf("%s is reachable but degraded (slow response or expiring certificate).", site.URL)
	default:
		title = fmt.Sprintf("%s status changed", site.Name)
		body = fmt.Sprintf("%s changed status.", site.URL)
	}

	return &Message{
		Title:      title,
		Body:       body,
		SiteName:   site.Name,
		SiteURL:    site.URL,
		FromStatus: string(event.FromStatus),
		ToStatus:   string(event.ToStatus),
		Time:       event.OccurredAt.Format(time.RFC3339),
		Important:  event.ToStatus == models.StatusOffline,
	}
}

// deliverToChannel attempts delivery with exponential backoff and records
// the outcome. A prior delivered row for this (dedupe key, channel) pair
// suppresses the send entirely.
func (d *Dispatcher) deliverToChannel(ctx context.Context, event *models.AlertEvent, ch *models.NotificationChannel, msg *Message) {
	prior, err := d.alerts.GetDelivery(ctx, event.DedupeKey, ch.ID)
	if err == nil && prior.Status == models.DeliveryDelivered {
		return
	}

	provider, ok := GetProvider(ch.Kind)
	if !ok {
		d.recordOutcome(ctx, event, ch, 0, fmt.Errorf("unknown notification provider: %s", ch.Kind))
		return
	}

	var lastErr error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := d.opts.BackoffBase << (attempt - 2)
			select {
			case <-ctx.Done():
				d.recordOutcome(ctx, event, ch, attempt-1, lastErr)
				return
			case <-time.After(backoff):
			}
		}

		lastErr = provider.Send(ctx, ch, msg)
		if lastErr == nil {
			d.recordOutcome(ctx, event, ch, attempt, nil)
			return
		}
		d.logger.Warn("notification send failed",
			zap.String("channel_id", ch.ID),
			zap.String("kind", ch.Kind),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	d.recordOutcome(ctx, event, ch, d.opts.MaxAttempts, lastErr)
}

func (d *Dispatcher) recordOutcome(ctx context.Context, event *models.AlertEvent, ch *models.NotificationChannel, attempts int, sendErr error) {
	delivery := &models.AlertDelivery{
		DedupeKey: event.DedupeKey,
		ChannelID: ch.ID,
		Attempts:  attempts,
	}
	if sendErr == nil {
		now := time.Now().UTC()
		delivery.Status = models.DeliveryDelivered
		delivery.DeliveredAt = &now
	} else {
		delivery.Status = models.DeliveryFailed
		delivery.LastError = sendErr.Error()
	}

	if err := d.alerts.SaveDelivery(ctx, delivery); err != nil {
		d.logger.Error("failed to record alert delivery",
			zap.String("dedupe_key", event.DedupeKey),
			zap.String("channel_id", ch.ID),
			zap.Error(err))
	}
}

// TestChannel sends a test message through a single channel, bypassing the
// queue and delivery records.
func (d *Dispatcher) TestChannel(ctx context.Context, ch *models.NotificationChannel) error {
	provider, ok := GetProvider(ch.Kind)
	if !ok {
		return fmt.Errorf("unknown notification provider: %s", ch.Kind)
	}

	msg := &Message{
		Title:    "Test Notification",
		Body:     "This is a test notification from SiteGuard.",
		SiteName: "Test Site",
		ToStatus: string(models.StatusOnline),
		Time:     time.Now().Format(time.RFC3339),
	}

	return provider.Send(ctx, ch, msg)
}
