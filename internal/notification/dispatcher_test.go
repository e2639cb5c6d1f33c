package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// fakeProvider counts sends and fails on demand.
type fakeProvider struct {
	name string

	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Send(ctx context.Context, channel *models.NotificationChannel, message *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("endpoint unreachable")
	}
	return nil
}

func (f *fakeProvider) Validate(config map[string]interface{}) error { return nil }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var providerSeq int

func newFakeProvider(t *testing.T, fail bool) *fakeProvider {
	t.Helper()
	providerSeq++
	p := &fakeProvider{name: fmt.Sprintf("fake-%d", providerSeq), fail: fail}
	RegisterProvider(p)
	return p
}

type fixture struct {
	store      *storage.MemoryStore
	dispatcher *Dispatcher
	event      *models.AlertEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	ctx := context.Background()

	site := &models.Site{ID: "s1", OwnerID: "owner-1", Name: "Example", URL: "https://example.com", Enabled: true}
	if err := store.CreateSite(ctx, site); err != nil {
		t.Fatal(err)
	}

	occurred := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	event := &models.AlertEvent{
		SiteID:     "s1",
		FromStatus: models.StatusOnline,
		ToStatus:   models.StatusOffline,
		OccurredAt: occurred,
		DedupeKey:  models.NewDedupeKey("s1", models.StatusOffline, occurred),
	}
	if err := store.CreateAlert(ctx, event); err != nil {
		t.Fatal(err)
	}

	d := NewDispatcher(store, store, store, Options{
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	}, zap.NewNop())

	return &fixture{store: store, dispatcher: d, event: event}
}

func (f *fixture) addChannel(t *testing.T, id, kind string) *models.NotificationChannel {
	t.Helper()
	ch := &models.NotificationChannel{
		ID: id, OwnerID: "owner-1", Kind: kind,
		EndpointConfig: map[string]interface{}{}, Enabled: true,
	}
	if err := f.store.CreateChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	return ch
}

func (f *fixture) delivery(t *testing.T, channelID string) *models.AlertDelivery {
	t.Helper()
	d, err := f.store.GetDelivery(context.Background(), f.event.DedupeKey, channelID)
	if err != nil {
		t.Fatalf("GetDelivery(%s): %v", channelID, err)
	}
	return d
}

func TestDispatchRecordsDelivery(t *testing.T) {
	fx := newFixture(t)
	p := newFakeProvider(t, false)
	fx.addChannel(t, "c1", p.name)

	fx.dispatcher.Dispatch(context.Background(), fx.event)

	if p.callCount() != 1 {
		t.Fatalf("provider called %d times, want 1", p.callCount())
	}
	d := fx.delivery(t, "c1")
	if d.Status != models.DeliveryDelivered {
		t.Errorf("delivery status = %q, want delivered", d.Status)
	}
	if d.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", d.Attempts)
	}
	if d.DeliveredAt == nil {
		t.Error("DeliveredAt not set")
	}
}

func TestDispatchDedupesReplayedEvent(t *testing.T) {
	fx := newFixture(t)
	p := newFakeProvider(t, false)
	fx.addChannel(t, "c1", p.name)

	fx.dispatcher.Dispatch(context.Background(), fx.event)
	fx.dispatcher.Dispatch(context.Background(), fx.event)

	if p.callCount() != 1 {
		t.Errorf("provider called %d times after replay, want 1", p.callCount())
	}
}

func TestDispatchRetriesThenRecordsFailure(t *testing.T) {
	fx := newFixture(t)
	p := newFakeProvider(t, true)
	fx.addChannel(t, "c1", p.name)

	fx.dispatcher.Dispatch(context.Background(), fx.event)

	if p.callCount() != 3 {
		t.Fatalf("provider called %d times, want 3 (max attempts)", p.callCount())
	}
	d := fx.delivery(t, "c1")
	if d.Status != models.DeliveryFailed {
		t.Errorf("delivery status = %q, want failed", d.Status)
	}
	if d.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", d.Attempts)
	}
	if d.LastError == "" {
		t.Error("LastError not recorded")
	}
}

func TestDispatchIsolatesChannelFailures(t *testing.T) {
	fx := newFixture(t)
	failing := newFakeProvider(t, true)
	healthy := newFakeProvider(t, false)
	fx.addChannel(t, "c-bad", failing.name)
	fx.addChannel(t, "c-good", healthy.name)

	fx.dispatcher.Dispatch(context.Background(), fx.event)

	if healthy.callCount() != 1 {
		t.Errorf("healthy channel called %d times, want 1", healthy.callCount())
	}
	if got := fx.delivery(t, "c-good").Status; got != models.DeliveryDelivered {
		t.Errorf("healthy delivery status = %q, want delivered", got)
	}
	if got := fx.delivery(t, "c-bad").Status; got != models.DeliveryFailed {
		t.Errorf("failing delivery status = %q, want failed", got)
	}
}

func TestDispatchUnknownProviderKind(t *testing.T) {
	fx := newFixture(t)
	fx.addChannel(t, "c1", "no-such-kind")

	fx.dispatcher.Dispatch(context.Background(), fx.event)

	d := fx.delivery(t, "c1")
	if d.Status != models.DeliveryFailed {
		t.Errorf("delivery status = %q, want failed", d.Status)
	}
}

func TestDisabledChannelSkipped(t *testing.T) {
	fx := newFixture(t)
	p := newFakeProvider(t, false)
	ch := fx.addChannel(t, "c1", p.name)
	ch.Enabled = false
	if err := fx.store.UpdateChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}

	fx.dispatcher.Dispatch(context.Background(), fx.event)

	if p.callCount() != 0 {
		t.Errorf("disabled channel received %d sends, want 0", p.callCount())
	}
}

func TestTestChannelBypassesDedupe(t *testing.T) {
	fx := newFixture(t)
	p := newFakeProvider(t, false)
	ch := fx.addChannel(t, "c1", p.name)

	for i := 0; i < 2; i++ {
		if err := fx.dispatcher.TestChannel(context.Background(), ch); err != nil {
			t.Fatalf("TestChannel: %v", err)
		}
	}
	if p.callCount() != 2 {
		t.Errorf("provider called %d times, want 2", p.callCount())
	}
}

func TestHandleAlertQueuesAndStartDelivers(t *testing.T) {
	fx := newFixture(t)
	p := newFakeProvider(t, false)
	fx.addChannel(t, "c1", p.name)

	ctx, cancel := context.WithCancel(context.Background())
	fx.dispatcher.Start(ctx)
	fx.dispatcher.HandleAlert(fx.event)

	deadline := time.After(2 * time.Second)
	for p.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("event not delivered before deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	fx.dispatcher.Wait()
}
