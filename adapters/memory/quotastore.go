package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/quota"
	"github.com/artpar/coreplane/ports"
)

type quotaKey struct {
	projectID string
	service   project.Service
}

// QuotaStore is an in-memory implementation of ports.QuotaStore.
type QuotaStore struct {
	mu     sync.RWMutex
	quotas map[quotaKey]quota.Quota
}

// NewQuotaStore creates a new in-memory quota store.
func NewQuotaStore() *QuotaStore {
	return &QuotaStore{quotas: make(map[quotaKey]quota.Quota)}
}

// Get retrieves the quota for a project and service.
func (s *QuotaStore) Get(ctx context.Context, projectID string, svc project.Service) (quota.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotas[quotaKey{projectID, svc}]
	if !ok {
		return quota.Quota{}, ports.ErrNotFound
	}
	return q, nil
}

// ListByProject returns all quota rows for a project in service order.
func (s *QuotaStore) ListByProject(ctx context.Context, projectID string) ([]quota.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []quota.Quota
	for _, svc := range project.Services {
		if q, ok := s.quotas[quotaKey{projectID, svc}]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

// Upsert creates or replaces a quota row.
func (s *QuotaStore) Upsert(ctx context.Context, q quota.Quota) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas[quotaKey{q.ProjectID, q.Service}] = q
	return nil
}

// SetHardCap updates the enforcement boundary.
func (s *QuotaStore) SetHardCap(ctx context.Context, projectID string, svc project.Service, hardCap int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := quotaKey{projectID, svc}
	q, ok := s.quotas[k]
	if !ok {
		return ports.ErrNotFound
	}
	q.HardCap = hardCap
	s.quotas[k] = q
	return nil
}

// SetResetAt advances the period boundary.
func (s *QuotaStore) SetResetAt(ctx context.Context, projectID string, svc project.Service, resetAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := quotaKey{projectID, svc}
	q, ok := s.quotas[k]
	if !ok {
		return ports.ErrNotFound
	}
	q.ResetAt = resetAt
	s.quotas[k] = q
	return nil
}

// Ensure interface compliance.
var _ ports.QuotaStore = (*QuotaStore)(nil)
