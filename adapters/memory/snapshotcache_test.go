package memory

import (
	"testing"
	"time"

	"github.com/artpar/coreplane/adapters/clock"
	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/snapshot"
)

func testSnap(projectID string) snapshot.Snapshot {
	return snapshot.Snapshot{
		ProjectID:   projectID,
		Status:      project.StatusActive,
		GeneratedAt: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestSnapshotCache_HitWithinTTL(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	cache := NewSnapshotCache(fake)

	cache.Put("proj-1", testSnap("proj-1"), 45*time.Second)

	fake.Advance(44 * time.Second)
	got, ok := cache.Get("proj-1")
	if !ok {
		t.Fatal("expected hit within TTL")
	}
	if got.ProjectID != "proj-1" {
		t.Errorf("ProjectID = %q", got.ProjectID)
	}
}

func TestSnapshotCache_ExpiresAfterTTL(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	cache := NewSnapshotCache(fake)

	cache.Put("proj-1", testSnap("proj-1"), 45*time.Second)

	fake.Advance(45 * time.Second)
	if _, ok := cache.Get("proj-1"); ok {
		t.Error("entry at TTL boundary must be expired")
	}
	if cache.Len() != 0 {
		t.Errorf("expired entry not dropped, Len = %d", cache.Len())
	}
}

func TestSnapshotCache_MissUnknownProject(t *testing.T) {
	cache := NewSnapshotCache(clock.Real{})
	if _, ok := cache.Get("nope"); ok {
		t.Error("expected miss")
	}
}

func TestSnapshotCache_OverwriteRefreshesTTL(t *testing.T) {
	fake := clock.NewFake(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	cache := NewSnapshotCache(fake)

	cache.Put("proj-1", testSnap("proj-1"), 10*time.Second)
	fake.Advance(8 * time.Second)
	cache.Put("proj-1", testSnap("proj-1"), 10*time.Second)
	fake.Advance(8 * time.Second)

	if _, ok := cache.Get("proj-1"); !ok {
		t.Error("second Put must have refreshed the TTL")
	}
}

func TestSnapshotCache_ZeroTTLNotCached(t *testing.T) {
	cache := NewSnapshotCache(clock.Real{})
	cache.Put("proj-1", testSnap("proj-1"), 0)
	if _, ok := cache.Get("proj-1"); ok {
		t.Error("zero ttl must not cache")
	}
}
