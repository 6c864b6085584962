// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/coreplane/domain/breakglass"
	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/quota"
	"github.com/artpar/coreplane/domain/ratelimit"
	"github.com/artpar/coreplane/domain/snapshot"
	"github.com/artpar/coreplane/domain/usage"
)

// ErrNotFound is returned by stores when a record does not exist.
// All store implementations return this same sentinel so services can
// distinguish absence from availability failures without knowing the adapter.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ProjectStore persists projects. The store is the system of record for
// project status; status writes go through the conditional update so
// concurrent state-machine runs cannot double-apply a transition.
type ProjectStore interface {
	// Get retrieves a project by ID.
	Get(ctx context.Context, id string) (project.Project, error)

	// Create stores a new project.
	Create(ctx context.Context, p project.Project) error

	// UpdateStatusIf transitions status only when the stored status still
	// equals from (compare-and-swap). Returns false when the guard failed.
	UpdateStatusIf(ctx context.Context, id string, from, to project.Status, at time.Time) (bool, error)

	// SetServiceEnabled flips a per-service toggle.
	SetServiceEnabled(ctx context.Context, id string, svc project.Service, enabled bool, at time.Time) error

	// SetKeyDigest records the fingerprint of a regenerated service key set.
	SetKeyDigest(ctx context.Context, id string, digest string, at time.Time) error

	// ListIDsWithQuotas returns ids of projects that have at least one
	// quota row, for the periodic suspension check.
	ListIDsWithQuotas(ctx context.Context) ([]string, error)
}

// QuotaStore persists per-(project, service) quota rows.
type QuotaStore interface {
	// Get retrieves the quota for a project and service.
	Get(ctx context.Context, projectID string, svc project.Service) (quota.Quota, error)

	// ListByProject returns all quota rows for a project.
	ListByProject(ctx context.Context, projectID string) ([]quota.Quota, error)

	// Upsert creates or replaces a quota row.
	Upsert(ctx context.Context, q quota.Quota) error

	// SetHardCap updates the enforcement boundary (break-glass override path).
	SetHardCap(ctx context.Context, projectID string, svc project.Service, hardCap int64) error

	// SetResetAt advances the period boundary (quota reset job).
	SetResetAt(ctx context.Context, projectID string, svc project.Service, resetAt time.Time) error
}

// UsageStore persists append-only usage records.
type UsageStore interface {
	// Insert appends a record. When the record carries an idempotency key
	// that already exists, no write happens and the stored record's id is
	// returned with inserted=false.
	Insert(ctx context.Context, r usage.Record) (inserted bool, id string, err error)

	// SumPeriod returns the total amount for (project, service) within
	// [start, end).
	SumPeriod(ctx context.Context, projectID string, svc project.Service, start, end time.Time) (int64, error)
}

// Suspension records why a project was taken out of service.
type Suspension struct {
	ID            string
	ProjectID     string
	CapExceeded   project.Service // service whose hard cap was breached
	CurrentValue  int64           // usage at the time of the breach
	LimitExceeded int64           // the hard cap that was breached
	Manual        bool            // created by an operator, excluded from auto-resume
	Notes         string
	SuspendedAt   time.Time
	ResolvedAt    *time.Time // nil = active
}

// Active reports whether the suspension is unresolved.
func (s Suspension) Active() bool {
	return s.ResolvedAt == nil
}

// SuspensionStore persists suspensions. At most one active suspension may
// exist per project; CreateIfNoneActive enforces that with a store-level
// guard, not read-then-write.
type SuspensionStore interface {
	// CreateIfNoneActive stores s unless the project already has an active
	// suspension. Returns false (and no error) when one was already active.
	CreateIfNoneActive(ctx context.Context, s Suspension) (bool, error)

	// GetActive retrieves the active suspension for a project.
	GetActive(ctx context.Context, projectID string) (Suspension, error)

	// ListActiveAutomatic returns active suspensions eligible for
	// auto-resume (Manual=false).
	ListActiveAutomatic(ctx context.Context) ([]Suspension, error)

	// Resolve marks a suspension resolved. Returns false when it was
	// already resolved (concurrent resume runs).
	Resolve(ctx context.Context, id string, at time.Time, notes string) (bool, error)
}

// BreakGlassStore persists break-glass sessions.
type BreakGlassStore interface {
	// Create stores a new session.
	Create(ctx context.Context, s breakglass.Session) error

	// GetByPrefix retrieves sessions matching a token prefix (for
	// validation by hash comparison).
	GetByPrefix(ctx context.Context, prefix string) ([]breakglass.Session, error)

	// DeleteExpired removes sessions past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ActionRecord is the before/after audit row written by every override
// operation.
type ActionRecord struct {
	ID        string
	SessionID string
	AdminID   string
	Action    string
	ProjectID string
	Before    string // JSON of the relevant state before the mutation
	After     string // JSON of the relevant state after the mutation
	CreatedAt time.Time
}

// ActionLogStore persists override action records.
type ActionLogStore interface {
	// Append stores an action record.
	Append(ctx context.Context, r ActionRecord) error

	// ListByProject returns recent action records for a project.
	ListByProject(ctx context.Context, projectID string, limit int) ([]ActionRecord, error)
}

// RateLimitStore persists per-caller trigger rate limit state.
type RateLimitStore interface {
	// Get retrieves current window state for a caller.
	Get(ctx context.Context, caller string) (ratelimit.WindowState, error)

	// Set updates window state for a caller.
	Set(ctx context.Context, caller string, state ratelimit.WindowState) error
}

// -----------------------------------------------------------------------------
// Cache Ports
// -----------------------------------------------------------------------------

// SnapshotCache memoizes built snapshots per project with a TTL. Entries are
// immutable once written; expiry is the only invalidation channel, so a
// cached snapshot is "true as of up to TTL ago" by contract.
type SnapshotCache interface {
	// Get returns the cached snapshot for a project, or ok=false on miss.
	Get(projectID string) (snap snapshot.Snapshot, ok bool)

	// Put caches a snapshot for ttl.
	Put(projectID string, snap snapshot.Snapshot, ttl time.Duration)
}

// -----------------------------------------------------------------------------
// Event Ports
// -----------------------------------------------------------------------------

// Notifier delivers lifecycle notifications to external collaborators.
// Delivery failures are logged by callers, never propagated into state
// transitions.
type Notifier interface {
	// ProjectSuspended announces a new suspension.
	ProjectSuspended(ctx context.Context, s Suspension) error

	// ProjectResumed announces a resolved suspension.
	ProjectResumed(ctx context.Context, projectID string) error
}

// UsageRecorder accepts usage records for asynchronous processing so metered
// services never block their primary path on usage accounting.
type UsageRecorder interface {
	// Record queues a usage record. Non-blocking.
	Record(r usage.Record)

	// Flush forces immediate processing of queued records.
	Flush(ctx context.Context) error

	// Close stops the recorder and flushes remaining records.
	Close() error
}
