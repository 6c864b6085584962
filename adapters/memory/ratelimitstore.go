package memory

import (
	"context"
	"sync"

	"github.com/artpar/coreplane/domain/ratelimit"
	"github.com/artpar/coreplane/ports"
)

// RateLimitStore is an in-memory implementation of ports.RateLimitStore.
type RateLimitStore struct {
	mu    sync.RWMutex
	state map[string]ratelimit.WindowState
}

// NewRateLimitStore creates a new in-memory rate limit store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{state: make(map[string]ratelimit.WindowState)}
}

// Get retrieves current window state for a caller. Unknown callers get a
// zero state, which Check treats as a fresh window.
func (s *RateLimitStore) Get(ctx context.Context, caller string) (ratelimit.WindowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state[caller], nil
}

// Set updates window state for a caller.
func (s *RateLimitStore) Set(ctx context.Context, caller string, state ratelimit.WindowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[caller] = state
	return nil
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
