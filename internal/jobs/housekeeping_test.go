package jobs

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

func TestPruneChecksKeepsRecentHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	status := 200
	old := &models.CheckResult{SiteID: "s1", Timestamp: now.Add(-CheckRetention - time.Hour), HTTPStatus: &status}
	recent := &models.CheckResult{SiteID: "s1", Timestamp: now.Add(-time.Hour), HTTPStatus: &status}
	for _, r := range []*models.CheckResult{old, recent} {
		if err := store.AppendResult(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	h := NewHousekeeping(store, store, zap.NewNop())
	h.PruneChecks(ctx)

	results, err := store.RecentResults(ctx, "s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results after prune, want 1", len(results))
	}
	if !results[0].Timestamp.Equal(recent.Timestamp) {
		t.Error("recent result was pruned instead of the old one")
	}
}

func TestPruneBucketsKeepsRecentRollups(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	oldStart := models.BucketStartFor(now.Add(-BucketRetention - time.Hour))
	recentStart := models.BucketStartFor(now.Add(-time.Hour))
	for _, start := range []time.Time{oldStart, recentStart} {
		if err := store.IncrementBucket(ctx, "s1", start, true, 100); err != nil {
			t.Fatal(err)
		}
	}

	h := NewHousekeeping(store, store, zap.NewNop())
	h.PruneBuckets(ctx)

	buckets, err := store.BucketsInRange(ctx, "s1", now.Add(-2*BucketRetention), now)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 1 {
		t.Fatalf("got %d buckets after prune, want 1", len(buckets))
	}
	if !buckets[0].BucketStart.Equal(recentStart) {
		t.Error("recent bucket was pruned instead of the old one")
	}
}
