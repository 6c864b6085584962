package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/coreplane/domain/breakglass"
	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/ports"
	"github.com/rs/zerolog"
)

// Override failure reasons.
const (
	ReasonSessionInvalid     = "session_invalid"
	ReasonNotSuspended       = "project_not_suspended"
	ReasonNoActiveSuspension = "no_active_suspension"
	ReasonCapBelowBreach     = "cap_below_breach"
	ReasonInvalidParams      = "invalid_params"
)

// Override action names recorded in the audit log.
const (
	ActionUnlock             = "unlock"
	ActionOverrideSuspension = "override_suspension"
	ActionRegenerateKeys     = "regenerate_keys"
)

// OverrideResult is the shared outcome shape of break-glass overrides.
// Session is the token validation; Applied is true only when the mutation
// happened and the action record was written.
type OverrideResult struct {
	Session breakglass.Validation `json:"session"`
	Applied bool                  `json:"applied"`
	Reason  string                `json:"reason,omitempty"`

	NewHardCap int64  `json:"new_hard_cap,omitempty"` // override_suspension only
	KeyDigest  string `json:"key_digest,omitempty"`   // regenerate_keys only
}

// OverrideCapInput selects how to raise the hard cap. Exactly one of
// NewHardCap or IncreasePct must be set.
type OverrideCapInput struct {
	NewHardCap  int64   // explicit new cap
	IncreasePct float64 // percentage increase over the current cap
}

// BreakGlassDeps contains dependencies for BreakGlassService.
type BreakGlassDeps struct {
	Sessions    ports.BreakGlassStore
	Projects    ports.ProjectStore
	Quotas      ports.QuotaStore
	Suspensions ports.SuspensionStore
	Actions     ports.ActionLogStore
	Notifier    ports.Notifier
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Log         zerolog.Logger
}

// BreakGlassService is the session authority for human overrides. Every
// mutation goes through a validated session and leaves a before/after
// action record keyed by session and admin.
type BreakGlassService struct {
	sessions    ports.BreakGlassStore
	projects    ports.ProjectStore
	quotas      ports.QuotaStore
	suspensions ports.SuspensionStore
	actions     ports.ActionLogStore
	notifier    ports.Notifier
	clock       ports.Clock
	idGen       ports.IDGenerator
	log         zerolog.Logger
}

// NewBreakGlassService creates a new break-glass service.
func NewBreakGlassService(deps BreakGlassDeps) *BreakGlassService {
	return &BreakGlassService{
		sessions:    deps.Sessions,
		projects:    deps.Projects,
		quotas:      deps.Quotas,
		suspensions: deps.Suspensions,
		actions:     deps.Actions,
		notifier:    deps.Notifier,
		clock:       deps.Clock,
		idGen:       deps.IDGen,
		log:         deps.Log,
	}
}

// Grant creates a new session and returns the raw token exactly once.
func (s *BreakGlassService) Grant(ctx context.Context, adminID, reason, accessMethod, grantedBy string, ttl time.Duration) (string, breakglass.Session, error) {
	raw, sess, err := breakglass.Generate(adminID, reason, accessMethod, grantedBy, s.clock.Now(), ttl)
	if err != nil {
		return "", breakglass.Session{}, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", breakglass.Session{}, fmt.Errorf("store session: %w", err)
	}
	return raw, sess, nil
}

// Validate checks a raw token. Format is checked structurally before any
// store read; a missing session and an expired one are distinct reasons so
// operators can tell a dead token from a mistyped one in the logs.
func (s *BreakGlassService) Validate(ctx context.Context, rawToken string) breakglass.Validation {
	if rawToken == "" {
		return breakglass.Validation{Valid: false, Reason: breakglass.ReasonNoToken}
	}

	prefix, ok := breakglass.ValidateFormat(rawToken)
	if !ok {
		return breakglass.Validation{Valid: false, Reason: breakglass.ReasonInvalidFormat}
	}

	candidates, err := s.sessions.GetByPrefix(ctx, prefix)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		// A store outage is not evidence of a bad token; keep it out of the
		// not_found channel that anomaly monitoring watches.
		s.log.Error().Err(err).Msg("break-glass session lookup failed")
		return breakglass.Validation{Valid: false, Reason: breakglass.ReasonUnavailable}
	}

	for _, sess := range candidates {
		if breakglass.MatchToken(sess, rawToken) {
			v := breakglass.Validate(sess, s.clock.Now())
			if !v.Valid {
				s.log.Warn().Str("session_id", sess.ID).Str("admin_id", sess.AdminID).Msg("expired break-glass token presented")
			}
			return v
		}
	}
	return breakglass.Validation{Valid: false, Reason: breakglass.ReasonNotFound}
}

// Unlock reactivates a suspended project through the state machine and
// resolves its active suspension.
func (s *BreakGlassService) Unlock(ctx context.Context, rawToken, projectID string) (OverrideResult, error) {
	session := s.Validate(ctx, rawToken)
	if !session.Valid {
		return OverrideResult{Session: session, Reason: ReasonSessionInvalid}, nil
	}
	if !project.ValidateID(projectID) {
		return OverrideResult{Session: session, Reason: ReasonInvalidParams}, nil
	}

	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return OverrideResult{Session: session, Reason: ReasonProjectNotFound}, nil
		}
		return OverrideResult{}, fmt.Errorf("load project: %w", err)
	}
	if p.Status != project.StatusSuspended {
		return OverrideResult{Session: session, Reason: ReasonNotSuspended}, nil
	}

	now := s.clock.Now()
	applied, err := s.projects.UpdateStatusIf(ctx, projectID, project.StatusSuspended, project.StatusActive, now)
	if err != nil {
		return OverrideResult{}, fmt.Errorf("unlock project: %w", err)
	}
	if !applied {
		return OverrideResult{Session: session, Reason: ReasonNotSuspended}, nil
	}

	if active, err := s.suspensions.GetActive(ctx, projectID); err == nil {
		notes := fmt.Sprintf("manual override by %s (session %s)", session.AdminID, session.SessionID)
		if _, err := s.suspensions.Resolve(ctx, active.ID, now, notes); err != nil {
			s.log.Error().Err(err).Str("project_id", projectID).Msg("unlock: resolve suspension failed")
		}
	}

	s.appendAction(ctx, session, ActionUnlock, projectID,
		map[string]any{"status": p.Status},
		map[string]any{"status": project.StatusActive})

	if s.notifier != nil {
		if err := s.notifier.ProjectResumed(ctx, projectID); err != nil {
			s.log.Error().Err(err).Str("project_id", projectID).Msg("resume notification failed")
		}
	}
	return OverrideResult{Session: session, Applied: true}, nil
}

// OverrideSuspension raises the breached hard cap and then unlocks the
// project. The new cap may never sit below the usage value that triggered
// the suspension; that would re-suspend the project on the next check run.
func (s *BreakGlassService) OverrideSuspension(ctx context.Context, rawToken, projectID string, input OverrideCapInput) (OverrideResult, error) {
	session := s.Validate(ctx, rawToken)
	if !session.Valid {
		return OverrideResult{Session: session, Reason: ReasonSessionInvalid}, nil
	}
	if !project.ValidateID(projectID) {
		return OverrideResult{Session: session, Reason: ReasonInvalidParams}, nil
	}
	if (input.NewHardCap <= 0) == (input.IncreasePct <= 0) {
		return OverrideResult{Session: session, Reason: ReasonInvalidParams}, nil
	}

	active, err := s.suspensions.GetActive(ctx, projectID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return OverrideResult{Session: session, Reason: ReasonNoActiveSuspension}, nil
		}
		return OverrideResult{}, fmt.Errorf("load suspension: %w", err)
	}
	if active.Manual {
		// Manual suspensions have no breached quota to override.
		return OverrideResult{Session: session, Reason: ReasonInvalidParams}, nil
	}

	q, err := s.quotas.Get(ctx, projectID, active.CapExceeded)
	if err != nil {
		return OverrideResult{}, fmt.Errorf("load quota: %w", err)
	}

	newCap := input.NewHardCap
	if newCap == 0 {
		newCap = q.HardCap + int64(float64(q.HardCap)*input.IncreasePct/100)
	}
	if newCap < active.CurrentValue {
		return OverrideResult{Session: session, Reason: ReasonCapBelowBreach}, nil
	}

	if err := s.quotas.SetHardCap(ctx, projectID, active.CapExceeded, newCap); err != nil {
		return OverrideResult{}, fmt.Errorf("raise hard cap: %w", err)
	}

	s.appendAction(ctx, session, ActionOverrideSuspension, projectID,
		map[string]any{"service": active.CapExceeded, "hard_cap": q.HardCap},
		map[string]any{"service": active.CapExceeded, "hard_cap": newCap})

	unlock, err := s.Unlock(ctx, rawToken, projectID)
	if err != nil {
		return OverrideResult{}, err
	}
	return OverrideResult{Session: session, Applied: unlock.Applied, Reason: unlock.Reason, NewHardCap: newCap}, nil
}

// RegenerateKeys rotates the project's service key fingerprint. Data-plane
// services pick the new digest up on their next snapshot poll.
func (s *BreakGlassService) RegenerateKeys(ctx context.Context, rawToken, projectID string) (OverrideResult, error) {
	session := s.Validate(ctx, rawToken)
	if !session.Valid {
		return OverrideResult{Session: session, Reason: ReasonSessionInvalid}, nil
	}
	if !project.ValidateID(projectID) {
		return OverrideResult{Session: session, Reason: ReasonInvalidParams}, nil
	}

	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return OverrideResult{Session: session, Reason: ReasonProjectNotFound}, nil
		}
		return OverrideResult{}, fmt.Errorf("load project: %w", err)
	}

	digestBytes := make([]byte, 16)
	if _, err := rand.Read(digestBytes); err != nil {
		return OverrideResult{}, fmt.Errorf("generate key digest: %w", err)
	}
	digest := "kd_" + hex.EncodeToString(digestBytes)

	if err := s.projects.SetKeyDigest(ctx, projectID, digest, s.clock.Now()); err != nil {
		return OverrideResult{}, fmt.Errorf("store key digest: %w", err)
	}

	s.appendAction(ctx, session, ActionRegenerateKeys, projectID,
		map[string]any{"key_digest": p.KeyDigest},
		map[string]any{"key_digest": digest})

	return OverrideResult{Session: session, Applied: true, KeyDigest: digest}, nil
}

// ListActions returns recent override actions for a project, newest first.
func (s *BreakGlassService) ListActions(ctx context.Context, projectID string, limit int) ([]ports.ActionRecord, error) {
	return s.actions.ListByProject(ctx, projectID, limit)
}

// CleanupExpired removes sessions past their expiry.
func (s *BreakGlassService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.clock.Now())
}

// appendAction writes the audit row. A failed audit write is logged loudly
// but does not roll the mutation back; the mutation itself is the source of
// truth and the log is forensic.
func (s *BreakGlassService) appendAction(ctx context.Context, session breakglass.Validation, action, projectID string, before, after map[string]any) {
	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)

	err := s.actions.Append(ctx, ports.ActionRecord{
		ID:        s.idGen.New(),
		SessionID: session.SessionID,
		AdminID:   session.AdminID,
		Action:    action,
		ProjectID: projectID,
		Before:    string(beforeJSON),
		After:     string(afterJSON),
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).
			Str("action", action).
			Str("project_id", projectID).
			Str("admin_id", session.AdminID).
			Msg("override action record write failed")
	}
}
