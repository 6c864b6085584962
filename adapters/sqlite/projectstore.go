package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/ports"
)

// ProjectStore implements ports.ProjectStore using SQLite.
type ProjectStore struct {
	db *DB
}

// NewProjectStore creates a new SQLite project store.
func NewProjectStore(db *DB) *ProjectStore {
	return &ProjectStore{db: db}
}

// Get retrieves a project with its per-service toggles.
func (s *ProjectStore) Get(ctx context.Context, id string) (project.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, status, key_digest, created_at, updated_at
		FROM projects
		WHERE id = ?
	`, id)

	var p project.Project
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Status, &p.KeyDigest, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, ports.ErrNotFound
	}
	if err != nil {
		return project.Project{}, err
	}

	p.Services = make(map[project.Service]bool)
	rows, err := s.db.QueryContext(ctx, `
		SELECT service, enabled FROM project_services WHERE project_id = ?
	`, id)
	if err != nil {
		return project.Project{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var svc project.Service
		var enabled bool
		if err := rows.Scan(&svc, &enabled); err != nil {
			return project.Project{}, err
		}
		p.Services[svc] = enabled
	}
	return p, rows.Err()
}

// Create stores a new project and its service toggles.
func (s *ProjectStore) Create(ctx context.Context, p project.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, tenant_id, name, status, key_digest, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.TenantID, p.Name, p.Status, p.KeyDigest, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}

	for svc, enabled := range p.Services {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO project_services (project_id, service, enabled, updated_at)
			VALUES (?, ?, ?, ?)
		`, p.ID, svc, enabled, p.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateStatusIf transitions status only when the stored status still equals
// from. The WHERE guard is the concurrency control: overlapping state-machine
// runs see rows=0 instead of double-applying.
func (s *ProjectStore) UpdateStatusIf(ctx context.Context, id string, from, to project.Status, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, to, at, id, from)
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

	// Guard failed: distinguish a lost race from a missing project.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ports.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// SetServiceEnabled flips a per-service toggle.
func (s *ProjectStore) SetServiceEnabled(ctx context.Context, id string, svc project.Service, enabled bool, at time.Time) error {
	if err := s.requireProject(ctx, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_services (project_id, service, enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, service) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, id, svc, enabled, at)
	return err
}

// SetKeyDigest records the fingerprint of a regenerated service key set.
func (s *ProjectStore) SetKeyDigest(ctx context.Context, id string, digest string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET key_digest = ?, updated_at = ? WHERE id = ?
	`, digest, at, id)
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

// ListIDsWithQuotas returns ids of projects that have at least one quota row.
func (s *ProjectStore) ListIDsWithQuotas(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.id
		FROM projects p
		JOIN quotas q ON q.project_id = p.id
		ORDER BY p.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *ProjectStore) requireProject(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.ProjectStore = (*ProjectStore)(nil)
