package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/quota"
	"github.com/artpar/coreplane/ports"
)

// QuotaStore implements ports.QuotaStore using SQLite.
type QuotaStore struct {
	db *DB
}

// NewQuotaStore creates a new SQLite quota store.
func NewQuotaStore(db *DB) *QuotaStore {
	return &QuotaStore{db: db}
}

// Get retrieves the quota for a project and service.
func (s *QuotaStore) Get(ctx context.Context, projectID string, svc project.Service) (quota.Quota, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT project_id, service, monthly_limit, hard_cap, reset_at
		FROM quotas
		WHERE project_id = ? AND service = ?
	`, projectID, svc)

	return scanQuota(row)
}

// ListByProject returns all quota rows for a project.
func (s *QuotaStore) ListByProject(ctx context.Context, projectID string) ([]quota.Quota, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, service, monthly_limit, hard_cap, reset_at
		FROM quotas
		WHERE project_id = ?
		ORDER BY service
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quota.Quota
	for rows.Next() {
		var q quota.Quota
		if err := rows.Scan(&q.ProjectID, &q.Service, &q.MonthlyLimit, &q.HardCap, &q.ResetAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Upsert creates or replaces a quota row.
func (s *QuotaStore) Upsert(ctx context.Context, q quota.Quota) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quotas (project_id, service, monthly_limit, hard_cap, reset_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, service) DO UPDATE SET
			monthly_limit = excluded.monthly_limit,
			hard_cap = excluded.hard_cap,
			reset_at = excluded.reset_at
	`, q.ProjectID, q.Service, q.MonthlyLimit, q.HardCap, q.ResetAt)
	return err
}

// SetHardCap updates the enforcement boundary.
func (s *QuotaStore) SetHardCap(ctx context.Context, projectID string, svc project.Service, hardCap int64) error {
	return s.updateOne(ctx, `
		UPDATE quotas SET hard_cap = ? WHERE project_id = ? AND service = ?
	`, hardCap, projectID, svc)
}

// SetResetAt advances the period boundary.
func (s *QuotaStore) SetResetAt(ctx context.Context, projectID string, svc project.Service, resetAt time.Time) error {
	return s.updateOne(ctx, `
		UPDATE quotas SET reset_at = ? WHERE project_id = ? AND service = ?
	`, resetAt, projectID, svc)
}

func (s *QuotaStore) updateOne(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanQuota(row *sql.Row) (quota.Quota, error) {
	var q quota.Quota
	err := row.Scan(&q.ProjectID, &q.Service, &q.MonthlyLimit, &q.HardCap, &q.ResetAt)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.Quota{}, ports.ErrNotFound
	}
	if err != nil {
		return quota.Quota{}, err
	}
	return q, nil
}

// Ensure interface compliance.
var _ ports.QuotaStore = (*QuotaStore)(nil)
