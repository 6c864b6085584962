package sqlite

import (
	"context"

	"github.com/artpar/coreplane/ports"
)

// ActionLogStore implements ports.ActionLogStore using SQLite.
type ActionLogStore struct {
	db *DB
}

// NewActionLogStore creates a new SQLite action log store.
func NewActionLogStore(db *DB) *ActionLogStore {
	return &ActionLogStore{db: db}
}

// Append stores an action record.
func (s *ActionLogStore) Append(ctx context.Context, r ports.ActionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO override_actions
			(id, session_id, admin_id, action, project_id, before_state, after_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.SessionID, r.AdminID, r.Action, r.ProjectID, r.Before, r.After, r.CreatedAt)
	return err
}

// ListByProject returns recent action records for a project, newest first.
func (s *ActionLogStore) ListByProject(ctx context.Context, projectID string, limit int) ([]ports.ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, admin_id, action, project_id, before_state, after_state, created_at
		FROM override_actions
		WHERE project_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.ActionRecord
	for rows.Next() {
		var r ports.ActionRecord
		err := rows.Scan(&r.ID, &r.SessionID, &r.AdminID, &r.Action, &r.ProjectID, &r.Before, &r.After, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.ActionLogStore = (*ActionLogStore)(nil)
