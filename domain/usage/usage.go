// Package usage provides usage record value types and validation.
// All functions are pure - no side effects.
package usage

import (
	"time"

	"github.com/artpar/coreplane/domain/project"
)

// MetricType categorizes what a usage record measures.
type MetricType string

const (
	MetricRequests     MetricType = "requests"
	MetricStorageBytes MetricType = "storage_bytes"
	MetricEgressBytes  MetricType = "egress_bytes"
	MetricConnections  MetricType = "connections"
	MetricExecutions   MetricType = "executions"
)

// ValidMetric reports whether m is a known metric type.
func ValidMetric(m MetricType) bool {
	switch m {
	case MetricRequests, MetricStorageBytes, MetricEgressBytes, MetricConnections, MetricExecutions:
		return true
	}
	return false
}

// Record represents a single consumption fact (immutable, append-only).
type Record struct {
	ID             string
	ProjectID      string
	Service        project.Service
	MetricType     MetricType
	Amount         int64
	IdempotencyKey string // optional; empty = no dedup
	RecordedAt     time.Time
}

// Validation failure reasons.
const (
	ReasonInvalidProjectID = "invalid_project_id"
	ReasonUnknownService   = "unknown_service"
	ReasonUnknownMetric    = "unknown_metric_type"
	ReasonNegativeAmount   = "negative_amount"
)

// Validate checks a record against the closed enumerations.
// Returns "" when valid, or a machine-readable reason.
// This is a PURE function.
func Validate(r Record) string {
	if !project.ValidateID(r.ProjectID) {
		return ReasonInvalidProjectID
	}
	if !project.ValidService(r.Service) {
		return ReasonUnknownService
	}
	if !ValidMetric(r.MetricType) {
		return ReasonUnknownMetric
	}
	if r.Amount < 0 {
		return ReasonNegativeAmount
	}
	return ""
}
