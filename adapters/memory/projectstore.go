package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/ports"
)

// ProjectStore is an in-memory implementation of ports.ProjectStore.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]project.Project
	quotaIDs map[string]bool // project ids that have quota rows
}

// NewProjectStore creates a new in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects: make(map[string]project.Project),
		quotaIDs: make(map[string]bool),
	}
}

// Get retrieves a project by ID.
func (s *ProjectStore) Get(ctx context.Context, id string) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, ports.ErrNotFound
	}
	return cloneProject(p), nil
}

// Create stores a new project.
func (s *ProjectStore) Create(ctx context.Context, p project.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = cloneProject(p)
	return nil
}

// UpdateStatusIf transitions status only when the stored status equals from.
func (s *ProjectStore) UpdateStatusIf(ctx context.Context, id string, from, to project.Status, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = at
	s.projects[id] = p
	return true, nil
}

// SetServiceEnabled flips a per-service toggle.
func (s *ProjectStore) SetServiceEnabled(ctx context.Context, id string, svc project.Service, enabled bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ports.ErrNotFound
	}
	p = cloneProject(p)
	p.Services[svc] = enabled
	p.UpdatedAt = at
	s.projects[id] = p
	return nil
}

// SetKeyDigest records the fingerprint of a regenerated key set.
func (s *ProjectStore) SetKeyDigest(ctx context.Context, id string, digest string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return ports.ErrNotFound
	}
	p.KeyDigest = digest
	p.UpdatedAt = at
	s.projects[id] = p
	return nil
}

// ListIDsWithQuotas returns ids of projects that have at least one quota row.
func (s *ProjectStore) ListIDsWithQuotas(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.quotaIDs))
	for id := range s.quotaIDs {
		if _, ok := s.projects[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// MarkHasQuotas registers a project as having quota rows. The sqlite store
// derives this from the quotas table; the memory twin needs an explicit hook.
func (s *ProjectStore) MarkHasQuotas(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotaIDs[id] = true
}

func cloneProject(p project.Project) project.Project {
	services := make(map[project.Service]bool, len(p.Services))
	for k, v := range p.Services {
		services[k] = v
	}
	p.Services = services
	return p
}

// Ensure interface compliance.
var _ ports.ProjectStore = (*ProjectStore)(nil)
