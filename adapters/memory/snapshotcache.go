// Package memory provides in-memory implementations of storage and cache
// ports. The snapshot cache is production infrastructure; the store twins
// back tests and single-process deployments.
package memory

import (
	"sync"
	"time"

	"github.com/artpar/coreplane/domain/snapshot"
	"github.com/artpar/coreplane/ports"
)

type cacheEntry struct {
	snap      snapshot.Snapshot
	expiresAt time.Time
}

// SnapshotCache is a TTL-bounded, per-project snapshot cache.
//
// Entries are immutable once written and expire only by TTL; there is no
// invalidation channel. Callers must treat a hit as "true as of up to TTL
// ago". Concurrent misses for one project may race to rebuild - last write
// wins, which is safe because builds are pure reads.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	clock   ports.Clock
}

// NewSnapshotCache creates a snapshot cache using the given clock.
func NewSnapshotCache(clock ports.Clock) *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[string]cacheEntry),
		clock:   clock,
	}
}

// Get returns the cached snapshot for a project, or ok=false on miss or
// expired entry. Expired entries are dropped on access.
func (c *SnapshotCache) Get(projectID string) (snapshot.Snapshot, bool) {
	c.mu.RLock()
	entry, ok := c.entries[projectID]
	c.mu.RUnlock()

	if !ok {
		return snapshot.Snapshot{}, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a fresher entry may have landed.
		if cur, ok := c.entries[projectID]; ok && !c.clock.Now().Before(cur.expiresAt) {
			delete(c.entries, projectID)
		}
		c.mu.Unlock()
		return snapshot.Snapshot{}, false
	}
	return entry.snap, true
}

// Put caches a snapshot for ttl.
func (c *SnapshotCache) Put(projectID string, snap snapshot.Snapshot, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[projectID] = cacheEntry{
		snap:      snap,
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
}

// Len returns the number of live entries (expired entries may be counted
// until next access).
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ensure interface compliance.
var _ ports.SnapshotCache = (*SnapshotCache)(nil)
