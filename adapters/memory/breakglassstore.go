package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/coreplane/domain/breakglass"
	"github.com/artpar/coreplane/ports"
)

// BreakGlassStore is an in-memory implementation of ports.BreakGlassStore.
type BreakGlassStore struct {
	mu       sync.RWMutex
	sessions map[string]breakglass.Session // by id
}

// NewBreakGlassStore creates a new in-memory break-glass session store.
func NewBreakGlassStore() *BreakGlassStore {
	return &BreakGlassStore{sessions: make(map[string]breakglass.Session)}
}

// Create stores a new session.
func (s *BreakGlassStore) Create(ctx context.Context, sess breakglass.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// GetByPrefix retrieves sessions matching a token prefix.
func (s *BreakGlassStore) GetByPrefix(ctx context.Context, prefix string) ([]breakglass.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []breakglass.Session
	for _, sess := range s.sessions {
		if sess.TokenPrefix == prefix {
			out = append(out, sess)
		}
	}
	return out, nil
}

// DeleteExpired removes sessions past their expiry.
func (s *BreakGlassStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Ensure interface compliance.
var _ ports.BreakGlassStore = (*BreakGlassStore)(nil)
