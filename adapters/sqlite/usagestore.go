package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/usage"
	"github.com/artpar/coreplane/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
// Records are append-only; aggregation is a read-time concern.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Insert appends a record. Duplicate idempotency keys are suppressed by the
// partial unique index: INSERT OR IGNORE writes nothing and the stored
// record's id is returned instead.
func (s *UsageStore) Insert(ctx context.Context, r usage.Record) (bool, string, error) {
	var key any
	if r.IdempotencyKey != "" {
		key = r.IdempotencyKey
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO usage_records
			(id, project_id, service, metric_type, amount, idempotency_key, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ProjectID, r.Service, r.MetricType, r.Amount, key, r.RecordedAt)
	if err != nil {
		return false, "", err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, "", err
	}
	if rows > 0 {
		return true, r.ID, nil
	}

	if r.IdempotencyKey == "" {
		return false, "", fmt.Errorf("insert usage record %s: no row written", r.ID)
	}

	var existingID string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM usage_records WHERE idempotency_key = ?
	`, r.IdempotencyKey).Scan(&existingID)
	if err == sql.ErrNoRows {
		// Key vanished between insert and select; retention cleanup is the
		// only deleter and runs far behind the dedup horizon.
		return false, "", fmt.Errorf("idempotency key %s: record missing", r.IdempotencyKey)
	}
	if err != nil {
		return false, "", err
	}
	return false, existingID, nil
}

// SumPeriod returns the total amount for (project, service) within [start, end).
func (s *UsageStore) SumPeriod(ctx context.Context, projectID string, svc project.Service, start, end time.Time) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(amount)
		FROM usage_records
		WHERE project_id = ? AND service = ? AND recorded_at >= ? AND recorded_at < ?
	`, projectID, svc, start, end).Scan(&total)
	if err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return total.Int64, nil
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
