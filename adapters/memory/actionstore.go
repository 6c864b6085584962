package memory

import (
	"context"
	"sync"

	"github.com/artpar/coreplane/ports"
)

// ActionLogStore is an in-memory implementation of ports.ActionLogStore.
type ActionLogStore struct {
	mu      sync.RWMutex
	records []ports.ActionRecord
}

// NewActionLogStore creates a new in-memory action log store.
func NewActionLogStore() *ActionLogStore {
	return &ActionLogStore{}
}

// Append stores an action record.
func (s *ActionLogStore) Append(ctx context.Context, r ports.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// ListByProject returns recent action records for a project, newest first.
func (s *ActionLogStore) ListByProject(ctx context.Context, projectID string, limit int) ([]ports.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.ActionRecord
	for i := len(s.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.records[i].ProjectID == projectID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// All returns every stored record (for tests).
func (s *ActionLogStore) All() []ports.ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ports.ActionRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Ensure interface compliance.
var _ ports.ActionLogStore = (*ActionLogStore)(nil)
