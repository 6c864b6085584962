// Package snapshot provides the control-plane snapshot value type and its
// structural validation. Snapshots are immutable once built; the relational
// store stays authoritative.
package snapshot

import (
	"fmt"
	"time"

	"github.com/artpar/coreplane/domain/project"
)

// ServiceState is the effective data-plane state of one service.
type ServiceState struct {
	Enabled bool `json:"enabled"`
}

// QuotaSummary carries the quota view the data plane needs for one service.
type QuotaSummary struct {
	Service      project.Service `json:"service"`
	MonthlyLimit int64           `json:"monthly_limit"`
	HardCap      int64           `json:"hard_cap"`
	CurrentUsage int64           `json:"current_usage"`
	ResetAt      time.Time       `json:"reset_at"`
}

// Snapshot is a complete, self-consistent view of one project's state at
// one instant (immutable value type).
type Snapshot struct {
	ProjectID   string                                   `json:"project_id"`
	TenantID    string                                   `json:"tenant_id"`
	Status      project.Status                           `json:"status"`
	Services    map[project.Service]ServiceState         `json:"services"`
	Quotas      []QuotaSummary                           `json:"quotas"`
	KeyDigest   string                                   `json:"key_digest,omitempty"`
	GeneratedAt time.Time                                `json:"generated_at"`
}

// ValidationError reports a structural violation in a built snapshot.
// A snapshot failing validation is a build failure, never returned to callers.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("snapshot validation: %s: %s", e.Field, e.Detail)
}

// Assemble derives a snapshot from a project and its quota summaries.
// Service flags are "status serves traffic AND toggle enabled"; a suspended,
// archived, or deleted project forces every flag off. This is a PURE function.
func Assemble(p project.Project, quotas []QuotaSummary, now time.Time) Snapshot {
	services := make(map[project.Service]ServiceState, len(project.Services))
	for _, s := range project.Services {
		services[s] = ServiceState{Enabled: p.ServiceEnabled(s)}
	}

	return Snapshot{
		ProjectID:   p.ID,
		TenantID:    p.TenantID,
		Status:      p.Status,
		Services:    services,
		Quotas:      quotas,
		KeyDigest:   p.KeyDigest,
		GeneratedAt: now,
	}
}

// Validate checks the structural schema of a snapshot.
// This is a PURE function.
func Validate(s Snapshot) error {
	if !project.ValidateID(s.ProjectID) {
		return &ValidationError{Field: "project_id", Detail: "missing or malformed"}
	}
	if !project.ValidStatus(s.Status) {
		return &ValidationError{Field: "status", Detail: fmt.Sprintf("unknown status %q", s.Status)}
	}
	if s.GeneratedAt.IsZero() {
		return &ValidationError{Field: "generated_at", Detail: "zero timestamp"}
	}

	// Every known service must be present so the data plane never has to
	// guess a default for a missing flag.
	for _, svc := range project.Services {
		if _, ok := s.Services[svc]; !ok {
			return &ValidationError{Field: "services", Detail: fmt.Sprintf("missing entry for %s", svc)}
		}
	}
	for svc := range s.Services {
		if !project.ValidService(svc) {
			return &ValidationError{Field: "services", Detail: fmt.Sprintf("unknown service %q", svc)}
		}
	}

	serving := s.Status == project.StatusActive || s.Status == project.StatusCreated
	if !serving {
		for svc, state := range s.Services {
			if state.Enabled {
				return &ValidationError{Field: "services", Detail: fmt.Sprintf("%s enabled while status is %s", svc, s.Status)}
			}
		}
	}

	seen := make(map[project.Service]bool, len(s.Quotas))
	for _, q := range s.Quotas {
		if !project.ValidService(q.Service) {
			return &ValidationError{Field: "quotas", Detail: fmt.Sprintf("unknown service %q", q.Service)}
		}
		if seen[q.Service] {
			return &ValidationError{Field: "quotas", Detail: fmt.Sprintf("duplicate entry for %s", q.Service)}
		}
		seen[q.Service] = true
		if q.MonthlyLimit < 0 || q.HardCap < 0 || q.CurrentUsage < 0 {
			return &ValidationError{Field: "quotas", Detail: fmt.Sprintf("negative value for %s", q.Service)}
		}
	}

	return nil
}
