package app

import (
	"context"
	"fmt"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/quota"
	"github.com/artpar/coreplane/ports"
	"github.com/rs/zerolog"
)

// RunReport summarizes one suspension check run.
type RunReport struct {
	ProjectsChecked   int      `json:"projects_checked"`
	SuspensionsMade   int      `json:"suspensions_made"`
	SuspendedProjects []string `json:"suspended_projects"`
}

// ResumeReport summarizes one auto-resume run.
type ResumeReport struct {
	SuspensionsChecked int      `json:"suspensions_checked"`
	ProjectsResumed    int      `json:"projects_resumed"`
	ResumedProjects    []string `json:"resumed_projects"`
}

// SuspensionDeps contains dependencies for SuspensionService.
type SuspensionDeps struct {
	Projects    ports.ProjectStore
	Quotas      ports.QuotaStore
	Usage       ports.UsageStore
	Suspensions ports.SuspensionStore
	Notifier    ports.Notifier
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Log         zerolog.Logger
}

// SuspensionService drives the project suspension state machine: the
// periodic quota check, auto-resume at period reset, and the manual path.
// Overlapping runs are safe: the store's conditional status update and the
// one-active-suspension guard make every transition apply exactly once.
type SuspensionService struct {
	projects    ports.ProjectStore
	quotas      ports.QuotaStore
	usage       ports.UsageStore
	suspensions ports.SuspensionStore
	notifier    ports.Notifier
	clock       ports.Clock
	idGen       ports.IDGenerator
	log         zerolog.Logger
}

// NewSuspensionService creates a new suspension service.
func NewSuspensionService(deps SuspensionDeps) *SuspensionService {
	return &SuspensionService{
		projects:    deps.Projects,
		quotas:      deps.Quotas,
		usage:       deps.Usage,
		suspensions: deps.Suspensions,
		notifier:    deps.Notifier,
		clock:       deps.Clock,
		idGen:       deps.IDGen,
		log:         deps.Log,
	}
}

// RunCheck examines every project that has quotas configured and suspends
// those whose recorded usage breached a hard cap.
func (s *SuspensionService) RunCheck(ctx context.Context) (RunReport, error) {
	ids, err := s.projects.ListIDsWithQuotas(ctx)
	if err != nil {
		return RunReport{}, fmt.Errorf("list projects: %w", err)
	}

	report := RunReport{SuspendedProjects: []string{}}
	for _, id := range ids {
		p, err := s.projects.Get(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("project_id", id).Msg("check run: load project failed")
			continue
		}
		report.ProjectsChecked++

		// Only ACTIVE projects are candidates; everything else either
		// already serves nothing or is terminal.
		if p.Status != project.StatusActive {
			continue
		}

		quotas, err := s.quotas.ListByProject(ctx, id)
		if err != nil {
			s.log.Error().Err(err).Str("project_id", id).Msg("check run: list quotas failed")
			continue
		}

		for _, q := range quotas {
			if q.Unlimited() {
				continue
			}
			used, err := s.usage.SumPeriod(ctx, id, q.Service, quota.PeriodStart(q.ResetAt), q.ResetAt)
			if err != nil {
				s.log.Error().Err(err).Str("project_id", id).Str("service", string(q.Service)).Msg("check run: sum usage failed")
				continue
			}
			result := quota.Evaluate(q, used, 0, 0)
			if result.Allowed {
				continue
			}

			made, err := s.SuspendForBreach(ctx, id, q.Service, used, q.HardCap)
			if err != nil {
				s.log.Error().Err(err).Str("project_id", id).Msg("check run: suspend failed")
				break
			}
			if made {
				report.SuspensionsMade++
				report.SuspendedProjects = append(report.SuspendedProjects, id)
			}
			break // one suspension per project per run
		}
	}
	return report, nil
}

// SuspendForBreach applies the automatic suspension transition for a hard
// cap breach. Returns false when another run already suspended the project.
func (s *SuspensionService) SuspendForBreach(ctx context.Context, projectID string, svc project.Service, currentValue, limitExceeded int64) (bool, error) {
	now := s.clock.Now()

	// Compare-and-swap: the transition applies only if the project is
	// still ACTIVE when we write.
	applied, err := s.projects.UpdateStatusIf(ctx, projectID, project.StatusActive, project.StatusSuspended, now)
	if err != nil {
		return false, fmt.Errorf("suspend project %s: %w", projectID, err)
	}
	if !applied {
		return false, nil
	}

	created, err := s.suspensions.CreateIfNoneActive(ctx, ports.Suspension{
		ID:            s.idGen.New(),
		ProjectID:     projectID,
		CapExceeded:   svc,
		CurrentValue:  currentValue,
		LimitExceeded: limitExceeded,
		SuspendedAt:   now,
	})
	if err != nil {
		return false, fmt.Errorf("record suspension for %s: %w", projectID, err)
	}
	if !created {
		// Lost the race on the suspension row; the status write above
		// won it, so the project is suspended either way.
		return false, nil
	}

	active, err := s.suspensions.GetActive(ctx, projectID)
	if err == nil {
		s.notify(ctx, active)
	}
	s.log.Warn().
		Str("project_id", projectID).
		Str("service", string(svc)).
		Int64("usage", currentValue).
		Int64("hard_cap", limitExceeded).
		Msg("project suspended for hard cap breach")
	return true, nil
}

// Suspend is the manual path. Manual suspensions are excluded from
// auto-resume and resolve only through a human action.
func (s *SuspensionService) Suspend(ctx context.Context, projectID string, reason string) error {
	now := s.clock.Now()

	applied, err := s.projects.UpdateStatusIf(ctx, projectID, project.StatusActive, project.StatusSuspended, now)
	if err != nil {
		return fmt.Errorf("suspend project %s: %w", projectID, err)
	}
	if !applied {
		p, err := s.projects.Get(ctx, projectID)
		if err != nil {
			return err
		}
		return &project.InvalidTransitionError{From: p.Status, To: project.StatusSuspended}
	}

	susp := ports.Suspension{
		ID:          s.idGen.New(),
		ProjectID:   projectID,
		Manual:      true,
		Notes:       reason,
		SuspendedAt: now,
	}
	if _, err := s.suspensions.CreateIfNoneActive(ctx, susp); err != nil {
		return fmt.Errorf("record suspension for %s: %w", projectID, err)
	}

	s.notify(ctx, susp)
	return nil
}

// RunAutoResume resolves automatic suspensions whose quota period has
// reset, reactivating the project and advancing the period boundary.
func (s *SuspensionService) RunAutoResume(ctx context.Context) (ResumeReport, error) {
	active, err := s.suspensions.ListActiveAutomatic(ctx)
	if err != nil {
		return ResumeReport{}, fmt.Errorf("list active suspensions: %w", err)
	}

	now := s.clock.Now()
	report := ResumeReport{SuspensionsChecked: len(active), ResumedProjects: []string{}}
	for _, susp := range active {
		q, err := s.quotas.Get(ctx, susp.ProjectID, susp.CapExceeded)
		if err != nil {
			s.log.Error().Err(err).Str("project_id", susp.ProjectID).Msg("auto-resume: load quota failed")
			continue
		}
		if now.Before(q.ResetAt) {
			continue // period not over yet
		}

		// Advance the period first so a concurrent check run does not
		// immediately re-suspend against the expired period's usage.
		if err := s.quotas.SetResetAt(ctx, susp.ProjectID, susp.CapExceeded, quota.NextReset(q.ResetAt, now)); err != nil {
			s.log.Error().Err(err).Str("project_id", susp.ProjectID).Msg("auto-resume: advance reset failed")
			continue
		}

		applied, err := s.projects.UpdateStatusIf(ctx, susp.ProjectID, project.StatusSuspended, project.StatusActive, now)
		if err != nil {
			s.log.Error().Err(err).Str("project_id", susp.ProjectID).Msg("auto-resume: reactivate failed")
			continue
		}
		if !applied {
			continue // another run got there first, or an operator intervened
		}

		resolved, err := s.suspensions.Resolve(ctx, susp.ID, now, "quota period reset")
		if err != nil {
			s.log.Error().Err(err).Str("project_id", susp.ProjectID).Msg("auto-resume: resolve failed")
			continue
		}
		if resolved {
			report.ProjectsResumed++
			report.ResumedProjects = append(report.ResumedProjects, susp.ProjectID)
			s.notifyResumed(ctx, susp.ProjectID)
		}
	}
	return report, nil
}

// notify delivers a suspension notification. Delivery failures never affect
// the state transition; they are logged and dropped.
func (s *SuspensionService) notify(ctx context.Context, susp ports.Suspension) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ProjectSuspended(ctx, susp); err != nil {
		s.log.Error().Err(err).Str("project_id", susp.ProjectID).Msg("suspension notification failed")
	}
}

func (s *SuspensionService) notifyResumed(ctx context.Context, projectID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ProjectResumed(ctx, projectID); err != nil {
		s.log.Error().Err(err).Str("project_id", projectID).Msg("resume notification failed")
	}
}
