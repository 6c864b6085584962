// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/quota"
	"github.com/artpar/coreplane/domain/snapshot"
	"github.com/artpar/coreplane/ports"
	"github.com/rs/zerolog"
)

// Sentinel errors for the snapshot read path. Anything else coming out of
// Get is an availability failure and the caller must fail closed.
var (
	ErrMalformedProjectID  = errors.New("malformed project id")
	ErrProjectNotFound     = errors.New("project not found")
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
)

// SnapshotResult is the outcome of a successful snapshot read.
type SnapshotResult struct {
	Snapshot snapshot.Snapshot
	CacheHit bool
	TTL      time.Duration
}

// SnapshotDeps contains dependencies for SnapshotService.
type SnapshotDeps struct {
	Projects ports.ProjectStore
	Quotas   ports.QuotaStore
	Usage    ports.UsageStore
	Cache    ports.SnapshotCache
	Clock    ports.Clock
	Log      zerolog.Logger
}

// SnapshotConfig contains configuration for SnapshotService.
type SnapshotConfig struct {
	TTL          time.Duration // cache lifetime per entry
	BuildTimeout time.Duration // upper bound on one assembly
	RetryAfter   time.Duration // hint returned on unavailable
}

// SnapshotService builds and serves project snapshots. The read path is
// fail-closed: when a fresh snapshot cannot be produced the caller gets an
// unavailable error, never a stale-beyond-TTL or default view.
type SnapshotService struct {
	projects ports.ProjectStore
	quotas   ports.QuotaStore
	usage    ports.UsageStore
	cache    ports.SnapshotCache
	clock    ports.Clock
	log      zerolog.Logger

	ttl          time.Duration
	buildTimeout time.Duration
	retryAfter   time.Duration
}

// NewSnapshotService creates a new snapshot service.
func NewSnapshotService(deps SnapshotDeps, cfg SnapshotConfig) *SnapshotService {
	if cfg.TTL == 0 {
		cfg.TTL = 45 * time.Second
	}
	if cfg.BuildTimeout == 0 {
		cfg.BuildTimeout = 2 * time.Second
	}
	if cfg.RetryAfter == 0 {
		cfg.RetryAfter = 10 * time.Second
	}
	return &SnapshotService{
		projects:     deps.Projects,
		quotas:       deps.Quotas,
		usage:        deps.Usage,
		cache:        deps.Cache,
		clock:        deps.Clock,
		log:          deps.Log,
		ttl:          cfg.TTL,
		buildTimeout: cfg.BuildTimeout,
		retryAfter:   cfg.RetryAfter,
	}
}

// RetryAfter returns the retry hint callers should surface alongside
// ErrSnapshotUnavailable.
func (s *SnapshotService) RetryAfter() time.Duration {
	return s.retryAfter
}

// Get returns the current snapshot for a project, from cache when fresh.
func (s *SnapshotService) Get(ctx context.Context, projectID string) (SnapshotResult, error) {
	// 1. Reject malformed ids before any store access (PURE).
	if !project.ValidateID(projectID) {
		return SnapshotResult{}, ErrMalformedProjectID
	}

	// 2. Serve from cache within TTL; a cached snapshot is true as of up
	// to TTL ago by contract.
	if snap, ok := s.cache.Get(projectID); ok {
		return SnapshotResult{Snapshot: snap, CacheHit: true, TTL: s.ttl}, nil
	}

	// 3. Rebuild with a bounded timeout (I/O).
	buildCtx, cancel := context.WithTimeout(ctx, s.buildTimeout)
	defer cancel()

	snap, err := s.build(buildCtx, projectID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return SnapshotResult{}, ErrProjectNotFound
		}
		s.log.Error().Err(err).Str("project_id", projectID).Msg("snapshot build failed")
		return SnapshotResult{}, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}

	// 4. A snapshot that fails structural validation is a build failure,
	// never served.
	if err := snapshot.Validate(snap); err != nil {
		s.log.Error().Err(err).Str("project_id", projectID).Msg("built snapshot failed validation")
		return SnapshotResult{}, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}

	s.cache.Put(projectID, snap, s.ttl)
	return SnapshotResult{Snapshot: snap, CacheHit: false, TTL: s.ttl}, nil
}

// build assembles a snapshot from the system of record.
func (s *SnapshotService) build(ctx context.Context, projectID string) (snapshot.Snapshot, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return snapshot.Snapshot{}, err
	}

	quotas, err := s.quotas.ListByProject(ctx, projectID)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("list quotas: %w", err)
	}

	summaries := make([]snapshot.QuotaSummary, 0, len(quotas))
	for _, q := range quotas {
		used, err := s.usage.SumPeriod(ctx, projectID, q.Service, quota.PeriodStart(q.ResetAt), q.ResetAt)
		if err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("sum usage for %s: %w", q.Service, err)
		}
		summaries = append(summaries, snapshot.QuotaSummary{
			Service:      q.Service,
			MonthlyLimit: q.MonthlyLimit,
			HardCap:      q.HardCap,
			CurrentUsage: used,
			ResetAt:      q.ResetAt,
		})
	}

	return snapshot.Assemble(p, summaries, s.clock.Now()), nil
}
