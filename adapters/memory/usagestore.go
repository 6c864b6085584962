package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/usage"
	"github.com/artpar/coreplane/ports"
)

// UsageStore is an in-memory implementation of ports.UsageStore.
// Records are append-only; aggregation happens at read time.
type UsageStore struct {
	mu      sync.RWMutex
	records []usage.Record
	byKey   map[string]string // idempotency key -> record id
}

// NewUsageStore creates a new in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{byKey: make(map[string]string)}
}

// Insert appends a record, deduplicating on the idempotency key.
func (s *UsageStore) Insert(ctx context.Context, r usage.Record) (bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.IdempotencyKey != "" {
		if existing, ok := s.byKey[r.IdempotencyKey]; ok {
			return false, existing, nil
		}
		s.byKey[r.IdempotencyKey] = r.ID
	}
	s.records = append(s.records, r)
	return true, r.ID, nil
}

// SumPeriod returns total amount for (project, service) within [start, end).
func (s *UsageStore) SumPeriod(ctx context.Context, projectID string, svc project.Service, start, end time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, r := range s.records {
		if r.ProjectID != projectID || r.Service != svc {
			continue
		}
		if r.RecordedAt.Before(start) || !r.RecordedAt.Before(end) {
			continue
		}
		total += r.Amount
	}
	return total, nil
}

// Count returns the number of stored records (for tests).
func (s *UsageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
