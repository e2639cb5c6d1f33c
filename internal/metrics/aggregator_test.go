package metrics

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

func record(t *testing.T, a *Aggregator, siteID string, at time.Time, online bool, responseMs int64) {
	t.Helper()
	var status *int
	var kind *string
	if online {
		s := 200
		status = &s
	} else {
		k := models.ErrorKindConnect
		kind = &k
	}
	err := a.Record(context.Background(), &models.CheckResult{
		SiteID:         siteID,
		Timestamp:      at,
		HTTPStatus:     status,
		ErrorKind:      kind,
		ResponseTimeMs: responseMs,
	}, online)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestUptimePercentMatchesRawCounts(t *testing.T) {
	store := storage.NewMemoryStore()
	a := NewAggregator(store, store, zap.NewNop())

	now := time.Now().UTC()
	// 8 online, 2 failed over the last ten minutes.
	for i := 0; i < 10; i++ {
		online := i%5 != 0
		record(t, a, "s1", now.Add(-time.Duration(i)*time.Minute), online, 100)
	}

	stats, err := a.SiteStatsForPeriod(context.Background(), "s1", time.Hour)
	if err != nil {
		t.Fatalf("SiteStatsForPeriod: %v", err)
	}

	if stats.TotalChecks != 10 {
		t.Errorf("TotalChecks = %d, want 10", stats.TotalChecks)
	}
	if stats.OnlineChecks != 8 {
		t.Errorf("OnlineChecks = %d, want 8", stats.OnlineChecks)
	}
	want := float64(8) / float64(10) * 100
	if stats.UptimePercent != want {
		t.Errorf("UptimePercent = %.2f, want %.2f", stats.UptimePercent, want)
	}
}

func TestAverageResponseTimeOverOnlineChecksOnly(t *testing.T) {
	store := storage.NewMemoryStore()
	a := NewAggregator(store, store, zap.NewNop())

	now := time.Now().UTC()
	record(t, a, "s1", now.Add(-3*time.Minute), true, 100)
	record(t, a, "s1", now.Add(-2*time.Minute), true, 300)
	// A failed check's (meaningless) response time must not skew the average.
	record(t, a, "s1", now.Add(-1*time.Minute), false, 9999)

	stats, err := a.SiteStatsForPeriod(context.Background(), "s1", time.Hour)
	if err != nil {
		t.Fatalf("SiteStatsForPeriod: %v", err)
	}

	if stats.AvgResponseTimeMs != 200 {
		t.Errorf("AvgResponseTimeMs = %.1f, want 200", stats.AvgResponseTimeMs)
	}
}

func TestBucketGranularity(t *testing.T) {
	store := storage.NewMemoryStore()
	a := NewAggregator(store, store, zap.NewNop())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	// Two checks in the same minute, one in the next.
	record(t, a, "s1", base.Add(10*time.Second), true, 100)
	record(t, a, "s1", base.Add(40*time.Second), true, 100)
	record(t, a, "s1", base.Add(70*time.Second), false, 0)

	buckets, err := store.BucketsInRange(context.Background(), "s1", base, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("BucketsInRange: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	if buckets[0].CheckCount != 2 || buckets[0].OnlineCount != 2 {
		t.Errorf("first bucket = %+v, want 2 checks / 2 online", buckets[0])
	}
	if buckets[1].CheckCount != 1 || buckets[1].OnlineCount != 0 {
		t.Errorf("second bucket = %+v, want 1 check / 0 online", buckets[1])
	}
}

func TestHistoryAppendedDurably(t *testing.T) {
	store := storage.NewMemoryStore()
	a := NewAggregator(store, store, zap.NewNop())

	now := time.Now().UTC()
	record(t, a, "s1", now.Add(-2*time.Minute), true, 50)
	record(t, a, "s1", now.Add(-1*time.Minute), false, 0)

	results, err := store.RecentResults(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("RecentResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d raw results, want 2", len(results))
	}
	// Most recent first.
	if results[0].ErrorKind == nil {
		t.Error("latest result should be the failed check")
	}
}

func TestDashboardSummarySnapshot(t *testing.T) {
	store := storage.NewMemoryStore()
	a := NewAggregator(store, store, zap.NewNop())
	ctx := context.Background()

	now := time.Now().UTC()
	for _, s := range []struct {
		id     string
		status models.Status
	}{
		{"s1", models.StatusOnline},
		{"s2", models.StatusOnline},
		{"s3", models.StatusOffline},
		{"s4", models.StatusWarning},
	} {
		if err := store.CreateSite(ctx, &models.Site{ID: s.id, OwnerID: "owner-1", URL: "https://example.com", Enabled: true}); err != nil {
			t.Fatal(err)
		}
		if err := store.SaveState(ctx, &models.SiteState{SiteID: s.id, CurrentStatus: s.status}); err != nil {
			t.Fatal(err)
		}
	}
	// Another owner's site must not leak into the summary.
	if err := store.CreateSite(ctx, &models.Site{ID: "other", OwnerID: "owner-2", URL: "https://example.com", Enabled: true}); err != nil {
		t.Fatal(err)
	}

	record(t, a, "s1", now.Add(-time.Minute), true, 100)
	record(t, a, "s3", now.Add(-time.Minute), false, 0)

	summary, err := a.Dashboard(ctx, "owner-1")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if summary.TotalSites != 4 {
		t.Errorf("TotalSites = %d, want 4", summary.TotalSites)
	}
	if summary.OnlineSites != 2 {
		t.Errorf("OnlineSites = %d, want 2", summary.OnlineSites)
	}
	if summary.OfflineSites != 1 {
		t.Errorf("OfflineSites = %d, want 1", summary.OfflineSites)
	}
	if summary.AverageUptime != 50 {
		t.Errorf("AverageUptime = %.1f, want 50 (1 of 2 checks online)", summary.AverageUptime)
	}
}

func TestParsePeriod(t *testing.T) {
	cases := map[string]time.Duration{
		"1h":  time.Hour,
		"7d":  7 * 24 * time.Hour,
		"30d": 30 * 24 * time.Hour,
		"90d": 90 * 24 * time.Hour,
		"":    24 * time.Hour,
		"bad": 24 * time.Hour,
	}
	for in, want := range cases {
		if got := ParsePeriod(in); got != want {
			t.Errorf("ParsePeriod(%q) = %s, want %s", in, got, want)
		}
	}
}
