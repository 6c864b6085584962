package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/quota"
	"github.com/artpar/coreplane/domain/usage"
	"github.com/artpar/coreplane/ports"
	"github.com/rs/zerolog"
)

// Check denial reasons beyond the pure quota evaluation.
const (
	ReasonInvalidRequest    = "invalid_request"
	ReasonProjectNotFound   = "project_not_found"
	ReasonProjectSuspended  = "project_suspended"
	ReasonProjectInactive   = "project_inactive"
	ReasonNoQuotaConfigured = "no_quota_configured"
)

// CheckResult is the outcome of a pre-flight quota check. Denials are data,
// not errors; an error return means the check itself could not run.
type CheckResult struct {
	Allowed         bool            `json:"allowed"`
	Reason          string          `json:"reason,omitempty"`
	Service         project.Service `json:"service"`
	Unlimited       bool            `json:"unlimited,omitempty"`
	CurrentUsage    int64           `json:"current_usage"`
	ProjectedUsage  int64           `json:"projected_usage"`
	MonthlyLimit    int64           `json:"monthly_limit"`
	HardCap         int64           `json:"hard_cap"`
	UsagePercentage float64         `json:"usage_percentage"`
	ResetAt         time.Time       `json:"reset_at,omitzero"`
}

// RecordResult is the outcome of recording a usage event.
type RecordResult struct {
	Tracked bool   `json:"tracked"`
	ID      string `json:"id,omitempty"`
	Reason  string `json:"reason,omitempty"` // validation failure, record not tracked
}

// QuotaDeps contains dependencies for QuotaService.
type QuotaDeps struct {
	Projects ports.ProjectStore
	Quotas   ports.QuotaStore
	Usage    ports.UsageStore
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Log      zerolog.Logger
}

// QuotaConfig contains configuration for QuotaService.
type QuotaConfig struct {
	WarnThresholdPct float64 // advisory warning threshold; 0 = default
}

// QuotaService answers pre-flight quota checks and accumulates usage
// records. A project with no quota row for the requested service is denied:
// metered services must be explicitly provisioned.
type QuotaService struct {
	projects ports.ProjectStore
	quotas   ports.QuotaStore
	usage    ports.UsageStore
	clock    ports.Clock
	idGen    ports.IDGenerator
	log      zerolog.Logger

	warnThresholdPct float64

	// Optional: when set, a denied check for an ACTIVE project suspends it
	// immediately instead of waiting for the next periodic run.
	suspensions *SuspensionService
}

// NewQuotaService creates a new quota service.
func NewQuotaService(deps QuotaDeps, cfg QuotaConfig) *QuotaService {
	return &QuotaService{
		projects:         deps.Projects,
		quotas:           deps.Quotas,
		usage:            deps.Usage,
		clock:            deps.Clock,
		idGen:            deps.IDGen,
		log:              deps.Log,
		warnThresholdPct: cfg.WarnThresholdPct,
	}
}

// SetSuspensionService enables opportunistic suspension on denied checks.
func (s *QuotaService) SetSuspensionService(susp *SuspensionService) {
	s.suspensions = susp
}

// Check evaluates whether a project may consume amount units of a service.
// Suspension is project-wide and checked before any quota math.
func (s *QuotaService) Check(ctx context.Context, projectID string, svc project.Service, amount int64) (CheckResult, error) {
	// 1. Validate inputs before any store access (PURE).
	if !project.ValidateID(projectID) || !project.ValidService(svc) || amount < 0 {
		return CheckResult{Allowed: false, Reason: ReasonInvalidRequest, Service: svc}, nil
	}

	// 2. Load the project (I/O).
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return CheckResult{Allowed: false, Reason: ReasonProjectNotFound, Service: svc}, nil
		}
		return CheckResult{}, fmt.Errorf("load project: %w", err)
	}

	// 3. Project-wide status gate.
	if !p.ServesTraffic() {
		reason := ReasonProjectInactive
		if p.Status == project.StatusSuspended {
			reason = ReasonProjectSuspended
		}
		return CheckResult{Allowed: false, Reason: reason, Service: svc}, nil
	}

	// 4. Load the quota row; absence is a denial, not a default.
	q, err := s.quotas.Get(ctx, projectID, svc)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return CheckResult{Allowed: false, Reason: ReasonNoQuotaConfigured, Service: svc}, nil
		}
		return CheckResult{}, fmt.Errorf("load quota: %w", err)
	}

	// 5. Current-period usage (I/O) + pure evaluation.
	used, err := s.usage.SumPeriod(ctx, projectID, svc, quota.PeriodStart(q.ResetAt), q.ResetAt)
	if err != nil {
		return CheckResult{}, fmt.Errorf("sum usage: %w", err)
	}
	eval := quota.Evaluate(q, used, amount, s.warnThresholdPct)

	result := CheckResult{
		Allowed:         eval.Allowed,
		Reason:          eval.Reason,
		Service:         svc,
		Unlimited:       eval.Unlimited,
		CurrentUsage:    eval.CurrentUsage,
		ProjectedUsage:  eval.ProjectedUsage,
		MonthlyLimit:    eval.MonthlyLimit,
		HardCap:         eval.HardCap,
		UsagePercentage: eval.UsagePercentage,
		ResetAt:         eval.ResetAt,
	}

	// 6. Opportunistic suspension: a breach observed here goes through the
	// same guarded transition as the periodic job. Best effort; the check
	// answer stands either way.
	if !eval.Allowed && s.suspensions != nil && p.Status == project.StatusActive {
		if _, err := s.suspensions.SuspendForBreach(ctx, projectID, svc, used, q.HardCap); err != nil {
			s.log.Error().Err(err).Str("project_id", projectID).Msg("opportunistic suspension failed")
		}
	}

	return result, nil
}

// Record appends a usage record. Records carrying an idempotency key that
// was already seen are acknowledged with Tracked=false and the original
// record's id; re-delivery is never an error.
func (s *QuotaService) Record(ctx context.Context, r usage.Record) (RecordResult, error) {
	if reason := usage.Validate(r); reason != "" {
		return RecordResult{Tracked: false, Reason: reason}, nil
	}

	if r.ID == "" {
		r.ID = s.idGen.New()
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = s.clock.Now()
	}

	inserted, id, err := s.usage.Insert(ctx, r)
	if err != nil {
		return RecordResult{}, fmt.Errorf("insert usage record: %w", err)
	}
	return RecordResult{Tracked: inserted, ID: id}, nil
}
