package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/artpar/coreplane/domain/breakglass"
	"github.com/artpar/coreplane/ports"
)

// BreakGlassStore implements ports.BreakGlassStore using SQLite.
type BreakGlassStore struct {
	db *DB
}

// NewBreakGlassStore creates a new SQLite break-glass session store.
func NewBreakGlassStore(db *DB) *BreakGlassStore {
	return &BreakGlassStore{db: db}
}

// Create stores a new session.
func (s *BreakGlassStore) Create(ctx context.Context, sess breakglass.Session) error {
	var grantedBy any
	if sess.GrantedBy != "" {
		grantedBy = sess.GrantedBy
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO breakglass_sessions
			(id, admin_id, token_hash, token_prefix, reason, access_method, granted_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.AdminID, sess.TokenHash, sess.TokenPrefix, sess.Reason,
		sess.AccessMethod, grantedBy, sess.ExpiresAt, sess.CreatedAt)
	return err
}

// GetByPrefix retrieves sessions matching a token prefix.
func (s *BreakGlassStore) GetByPrefix(ctx context.Context, prefix string) ([]breakglass.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, token_hash, token_prefix, reason, access_method, granted_by, expires_at, created_at
		FROM breakglass_sessions
		WHERE token_prefix = ?
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []breakglass.Session
	for rows.Next() {
		var sess breakglass.Session
		var grantedBy sql.NullString
		err := rows.Scan(
			&sess.ID, &sess.AdminID, &sess.TokenHash, &sess.TokenPrefix, &sess.Reason,
			&sess.AccessMethod, &grantedBy, &sess.ExpiresAt, &sess.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if grantedBy.Valid {
			sess.GrantedBy = grantedBy.String
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteExpired removes sessions past their expiry.
func (s *BreakGlassStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM breakglass_sessions WHERE expires_at <= ?
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ensure interface compliance.
var _ ports.BreakGlassStore = (*BreakGlassStore)(nil)
