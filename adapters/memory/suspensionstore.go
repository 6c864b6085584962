package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/coreplane/ports"
)

// SuspensionStore is an in-memory implementation of ports.SuspensionStore.
type SuspensionStore struct {
	mu          sync.RWMutex
	suspensions map[string]ports.Suspension // by id
}

// NewSuspensionStore creates a new in-memory suspension store.
func NewSuspensionStore() *SuspensionStore {
	return &SuspensionStore{suspensions: make(map[string]ports.Suspension)}
}

// CreateIfNoneActive stores s unless the project already has an active
// suspension.
func (s *SuspensionStore) CreateIfNoneActive(ctx context.Context, susp ports.Suspension) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.suspensions {
		if existing.ProjectID == susp.ProjectID && existing.Active() {
			return false, nil
		}
	}
	s.suspensions[susp.ID] = susp
	return true, nil
}

// GetActive retrieves the active suspension for a project.
func (s *SuspensionStore) GetActive(ctx context.Context, projectID string) (ports.Suspension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, susp := range s.suspensions {
		if susp.ProjectID == projectID && susp.Active() {
			return susp, nil
		}
	}
	return ports.Suspension{}, ports.ErrNotFound
}

// ListActiveAutomatic returns active suspensions eligible for auto-resume.
func (s *SuspensionStore) ListActiveAutomatic(ctx context.Context) ([]ports.Suspension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.Suspension
	for _, susp := range s.suspensions {
		if susp.Active() && !susp.Manual {
			out = append(out, susp)
		}
	}
	return out, nil
}

// Resolve marks a suspension resolved.
func (s *SuspensionStore) Resolve(ctx context.Context, id string, at time.Time, notes string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	susp, ok := s.suspensions[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	if !susp.Active() {
		return false, nil
	}
	resolved := at
	susp.ResolvedAt = &resolved
	if notes != "" {
		susp.Notes = notes
	}
	s.suspensions[id] = susp
	return true, nil
}

// CountActive returns the number of active suspensions for a project (tests).
func (s *SuspensionStore) CountActive(projectID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, susp := range s.suspensions {
		if susp.ProjectID == projectID && susp.Active() {
			n++
		}
	}
	return n
}

// Ensure interface compliance.
var _ ports.SuspensionStore = (*SuspensionStore)(nil)
