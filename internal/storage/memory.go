package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/siteguardhq/siteguard/internal/models"
)

// MemoryStore is an in-memory Store used by tests and local development.
// A single mutex guards everything, which also makes the dashboard summary
// a true snapshot.
type MemoryStore struct {
	mu         sync.Mutex
	sites      map[string]*models.Site
	results    []*models.CheckResult
	states     map[string]*models.SiteState
	alerts     []*models.AlertEvent
	deliveries map[string]*models.AlertDelivery // dedupeKey + "\x00" + channelID
	channels   map[string]*models.NotificationChannel
	buckets    map[string]map[time.Time]*models.MetricBucket
	apiKeys    map[int]*models.APIKey
	nextID     int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sites:      make(map[string]*models.Site),
		states:     make(map[string]*models.SiteState),
		deliveries: make(map[string]*models.AlertDelivery),
		channels:   make(map[string]*models.NotificationChannel),
		buckets:    make(map[string]map[time.Time]*models.MetricBucket),
		apiKeys:    make(map[int]*models.APIKey),
	}
}

func deliveryKey(dedupeKey, channelID string) string {
	return dedupeKey + "\x00" + channelID
}

// ---- sites ----

func (m *MemoryStore) CreateSite(ctx context.Context, site *models.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *site
	m.sites[site.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSite(ctx context.Context, id string) (*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	site, ok := m.sites[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *site
	return &cp, nil
}

func (m *MemoryStore) UpdateSite(ctx context.Context, site *models.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[site.ID]; !ok {
		return ErrNotFound
	}
	cp := *site
	cp.UpdatedAt = time.Now().UTC()
	m.sites[site.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteSite(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[id]; !ok {
		return ErrNotFound
	}
	delete(m.sites, id)
	delete(m.states, id)
	return nil
}

func (m *MemoryStore) ListSitesByOwner(ctx context.Context, ownerID string) ([]*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Site
	for _, s := range m.sites {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListEnabledSites(ctx context.Context) ([]*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Site
	for _, s := range m.sites {
		if s.Enabled {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- check history ----

func (m *MemoryStore) AppendResult(ctx context.Context, result *models.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *result
	cp.ID = m.nextID
	m.results = append(m.results, &cp)
	return nil
}

func (m *MemoryStore) RecentResults(ctx context.Context, siteID string, limit int) ([]*models.CheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CheckResult
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		if m.results[i].SiteID == siteID {
			cp := *m.results[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteResultsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.results[:0]
	var removed int64
	for _, r := range m.results {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.results = kept
	return removed, nil
}

// ---- site state ----

func (m *MemoryStore) GetState(ctx context.Context, siteID string) (*models.SiteState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[siteID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *state
	return &cp, nil
}

func (m *MemoryStore) SaveState(ctx context.Context, state *models.SiteState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[state.SiteID] = &cp
	return nil
}

func (m *MemoryStore) DeleteState(ctx context.Context, siteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, siteID)
	return nil
}

// ---- alerts ----

func (m *MemoryStore) CreateAlert(ctx context.Context, event *models.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *event
	cp.ID = m.nextID
	m.alerts = append(m.alerts, &cp)
	return nil
}

func (m *MemoryStore) ListAlertsByOwner(ctx context.Context, ownerID string, limit int) ([]*AlertWithDeliveries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*AlertWithDeliveries
	for i := len(m.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.alerts[i]
		site, ok := m.sites[ev.SiteID]
		if !ok || site.OwnerID != ownerID {
			continue
		}
		a := &AlertWithDeliveries{AlertEvent: *ev}
		for _, d := range m.deliveries {
			if d.DedupeKey == ev.DedupeKey {
				a.Deliveries = append(a.Deliveries, *d)
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *MemoryStore) GetDelivery(ctx context.Context, dedupeKey, channelID string) (*models.AlertDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[deliveryKey(dedupeKey, channelID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryStore) SaveDelivery(ctx context.Context, delivery *models.AlertDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *delivery
	if cp.ID == 0 {
		m.nextID++
		cp.ID = m.nextID
	}
	m.deliveries[deliveryKey(delivery.DedupeKey, delivery.ChannelID)] = &cp
	return nil
}

// ---- channels ----

func (m *MemoryStore) CreateChannel(ctx context.Context, ch *models.NotificationChannel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ch
	m.channels[ch.ID] = &cp
	return nil
}

func (m *MemoryStore) GetChannel(ctx context.Context, id string) (*models.NotificationChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *MemoryStore) UpdateChannel(ctx context.Context, ch *models.NotificationChannel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[ch.ID]; !ok {
		return ErrNotFound
	}
	cp := *ch
	m.channels[ch.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteChannel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.channels[id]; !ok {
		return ErrNotFound
	}
	delete(m.channels, id)
	return nil
}

func (m *MemoryStore) ListChannelsByOwner(ctx context.Context, ownerID string) ([]*models.NotificationChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.NotificationChannel
	for _, ch := range m.channels {
		if ch.OwnerID == ownerID {
			cp := *ch
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListEnabledChannels(ctx context.Context, ownerID string) ([]*models.NotificationChannel, error) {
	chs, err := m.ListChannelsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := chs[:0]
	for _, ch := range chs {
		if ch.Enabled {
			out = append(out, ch)
		}
	}
	return out, nil
}

// ---- metric buckets ----

func (m *MemoryStore) IncrementBucket(ctx context.Context, siteID string, bucketStart time.Time, online bool, responseTimeMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStart, ok := m.buckets[siteID]
	if !ok {
		byStart = make(map[time.Time]*models.MetricBucket)
		m.buckets[siteID] = byStart
	}
	b, ok := byStart[bucketStart]
	if !ok {
		b = &models.MetricBucket{SiteID: siteID, BucketStart: bucketStart}
		byStart[bucketStart] = b
	}
	b.CheckCount++
	if online {
		b.OnlineCount++
	}
	b.ResponseTimeSumMs += responseTimeMs
	return nil
}

func (m *MemoryStore) BucketsInRange(ctx context.Context, siteID string, from, to time.Time) ([]*models.MetricBucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.MetricBucket
	for start, b := range m.buckets[siteID] {
		if !start.Before(from) && start.Before(to) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart.Before(out[j].BucketStart) })
	return out, nil
}

func (m *MemoryStore) DeleteBucketsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for _, byStart := range m.buckets {
		for start := range byStart {
			if start.Before(cutoff) {
				delete(byStart, start)
				removed++
			}
		}
	}
	return removed, nil
}

func (m *MemoryStore) DashboardSummaryFor(ctx context.Context, ownerID string, uptimeWindow time.Duration) (*DashboardSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &DashboardSummary{}
	since := time.Now().UTC().Add(-uptimeWindow)
	var checksTotal, checksOnline int64

	for id, site := range m.sites {
		if site.OwnerID != ownerID {
			continue
		}
		summary.TotalSites++
		if st, ok := m.states[id]; ok {
			switch st.CurrentStatus {
			case models.StatusOnline:
				summary.OnlineSites++
			case models.StatusOffline:
				summary.OfflineSites++
			}
		}
		for start, b := range m.buckets[id] {
			if !start.Before(since) {
				checksTotal += b.CheckCount
				checksOnline += b.OnlineCount
			}
		}
	}

	if checksTotal > 0 {
		summary.AverageUptime = float64(checksOnline) / float64(checksTotal) * 100
	}
	return summary, nil
}

// ---- api keys ----

func (m *MemoryStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	cp := *key
	cp.ID = int(m.nextID)
	key.ID = cp.ID
	m.apiKeys[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) ListAPIKeysByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIKey
	for _, k := range m.apiKeys {
		if k.Prefix == prefix {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListAPIKeysByOwner(ctx context.Context, ownerID string) ([]*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.APIKey
	for _, k := range m.apiKeys {
		if k.OwnerID == ownerID {
			cp := *k
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) TouchAPIKey(ctx context.Context, id int, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.apiKeys[id]; ok {
		t := usedAt
		k.LastUsedAt = &t
	}
	return nil
}

func (m *MemoryStore) DeleteAPIKey(ctx context.Context, id int, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.apiKeys[id]
	if !ok || k.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.apiKeys, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
