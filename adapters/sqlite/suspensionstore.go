package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/coreplane/ports"
)

// SuspensionStore implements ports.SuspensionStore using SQLite.
// The partial unique index on (project_id) WHERE resolved_at IS NULL is the
// at-most-one-active guarantee; concurrent writers race on the index, not on
// application reads.
type SuspensionStore struct {
	db *DB
}

// NewSuspensionStore creates a new SQLite suspension store.
func NewSuspensionStore(db *DB) *SuspensionStore {
	return &SuspensionStore{db: db}
}

// CreateIfNoneActive stores s unless the project already has an active
// suspension. INSERT OR IGNORE turns the unique-index conflict into rows=0.
func (s *SuspensionStore) CreateIfNoneActive(ctx context.Context, susp ports.Suspension) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO suspensions
			(id, project_id, cap_exceeded, current_value, limit_exceeded, manual, notes, suspended_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`, susp.ID, susp.ProjectID, susp.CapExceeded, susp.CurrentValue,
		susp.LimitExceeded, susp.Manual, susp.Notes, susp.SuspendedAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// GetActive retrieves the active suspension for a project.
func (s *SuspensionStore) GetActive(ctx context.Context, projectID string) (ports.Suspension, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, cap_exceeded, current_value, limit_exceeded, manual, notes, suspended_at, resolved_at
		FROM suspensions
		WHERE project_id = ? AND resolved_at IS NULL
	`, projectID)

	return scanSuspension(row.Scan)
}

// ListActiveAutomatic returns active suspensions eligible for auto-resume.
func (s *SuspensionStore) ListActiveAutomatic(ctx context.Context) ([]ports.Suspension, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, cap_exceeded, current_value, limit_exceeded, manual, notes, suspended_at, resolved_at
		FROM suspensions
		WHERE resolved_at IS NULL AND manual = 0
		ORDER BY suspended_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.Suspension
	for rows.Next() {
		susp, err := scanSuspension(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, susp)
	}
	return out, rows.Err()
}

// Resolve marks a suspension resolved. The resolved_at IS NULL guard makes
// concurrent resume runs idempotent.
func (s *SuspensionStore) Resolve(ctx context.Context, id string, at time.Time, notes string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE suspensions
		SET resolved_at = ?,
			notes = CASE WHEN ? != '' THEN ? ELSE notes END
		WHERE id = ? AND resolved_at IS NULL
	`, at, notes, notes, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM suspensions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ports.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func scanSuspension(scan func(...any) error) (ports.Suspension, error) {
	var susp ports.Suspension
	var resolvedAt sql.NullTime

	err := scan(
		&susp.ID, &susp.ProjectID, &susp.CapExceeded, &susp.CurrentValue,
		&susp.LimitExceeded, &susp.Manual, &susp.Notes, &susp.SuspendedAt, &resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Suspension{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Suspension{}, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		susp.ResolvedAt = &t
	}
	return susp, nil
}

// Ensure interface compliance.
var _ ports.SuspensionStore = (*SuspensionStore)(nil)
