package memory

import (
	"context"
	"sync"

	"github.com/artpar/coreplane/ports"
)

// Notifier records notifications instead of delivering them. Used by tests
// and by deployments without an external notification collaborator.
type Notifier struct {
	mu        sync.Mutex
	Suspended []ports.Suspension
	Resumed   []string

	// Fail, when set, makes every call return this error (for testing the
	// "notification failure never blocks a transition" contract).
	Fail error
}

// NewNotifier creates a recording notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// ProjectSuspended records a suspension notification.
func (n *Notifier) ProjectSuspended(ctx context.Context, s ports.Suspension) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Fail != nil {
		return n.Fail
	}
	n.Suspended = append(n.Suspended, s)
	return nil
}

// ProjectResumed records a resumption notification.
func (n *Notifier) ProjectResumed(ctx context.Context, projectID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Fail != nil {
		return n.Fail
	}
	n.Resumed = append(n.Resumed, projectID)
	return nil
}

// ResumedCount returns the number of recorded resumptions.
func (n *Notifier) ResumedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Resumed)
}

// Ensure interface compliance.
var _ ports.Notifier = (*Notifier)(nil)
