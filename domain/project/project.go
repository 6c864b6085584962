// Package project provides project value types and the lifecycle state machine.
// All functions are pure - no side effects, no I/O.
package project

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a project.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusArchived  Status = "ARCHIVED"
	StatusDeleted   Status = "DELETED"
)

// Service identifies a data-plane service.
type Service string

const (
	ServiceDB       Service = "db_queries"
	ServiceAuth     Service = "auth"
	ServiceStorage  Service = "storage"
	ServiceRealtime Service = "realtime"
	ServiceGraphQL  Service = "graphql"
)

// Services lists all data-plane services in a stable order.
var Services = []Service{ServiceDB, ServiceAuth, ServiceStorage, ServiceRealtime, ServiceGraphQL}

// ValidService reports whether s is a known data-plane service.
func ValidService(s Service) bool {
	switch s {
	case ServiceDB, ServiceAuth, ServiceStorage, ServiceRealtime, ServiceGraphQL:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known project status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusCreated, StatusActive, StatusSuspended, StatusArchived, StatusDeleted:
		return true
	}
	return false
}

// Project represents a tenant project (immutable value type).
type Project struct {
	ID        string
	TenantID  string
	Name      string
	Status    Status
	Services  map[Service]bool // per-service enablement toggles
	KeyDigest string           // fingerprint of the current service key set
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServesTraffic reports whether the project status permits any data-plane
// access. Suspended, archived, and deleted projects serve nothing.
func (p Project) ServesTraffic() bool {
	return p.Status == StatusActive || p.Status == StatusCreated
}

// ServiceEnabled reports the effective enablement of a service: the stored
// toggle only counts while the project status serves traffic.
func (p Project) ServiceEnabled(s Service) bool {
	if !p.ServesTraffic() {
		return false
	}
	return p.Services[s]
}

// WritableStatuses lists the statuses that permit tenant writes.
func WritableStatuses() []Status {
	return []Status{StatusCreated, StatusActive}
}

// AllowsWrites reports whether the project status permits tenant writes.
func (p Project) AllowsWrites() bool {
	for _, s := range WritableStatuses() {
		if p.Status == s {
			return true
		}
	}
	return false
}

// transitions is the closed set of valid status transitions.
// ARCHIVED and DELETED are terminal.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusActive, StatusDeleted},
	StatusActive:    {StatusSuspended, StatusArchived, StatusDeleted},
	StatusSuspended: {StatusActive, StatusArchived, StatusDeleted},
}

// InvalidTransitionError reports a rejected status transition.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid project status transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether from -> to is a valid transition.
// This is a PURE function.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns the new status, or an
// *InvalidTransitionError. Stored state must not be mutated on error.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// ValidateID checks a project identifier before any store access.
// IDs are opaque but bounded: 1-64 chars of [a-zA-Z0-9_-].
func ValidateID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
