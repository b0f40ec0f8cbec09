package bridge

import (
	"sync"

	"github.com/tabpilot/tabpilot/pkg/models"
)

// PendingRegistry maps in-flight request ids to their one-shot reply
// channels. Register must happen before the action_request leaves the
// process; otherwise a fast extension could reply before anyone is waiting.
type PendingRegistry struct {
	mu      sync.RWMutex
	pending map[string]chan models.ActionResult
}

// NewPendingRegistry creates an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{pending: make(map[string]chan models.ActionResult)}
}

// Register creates the reply channel for a request id. The channel is
// buffered so Complete never blocks on a receiver that already gave up.
func (r *PendingRegistry) Register(requestID string) <-chan models.ActionResult {
	ch := make(chan models.ActionResult, 1)
	r.mu.Lock()
	r.pending[requestID] = ch
	r.mu.Unlock()
	return ch
}

// Complete resolves a pending request. Returns false when the id is unknown,
// which covers late replies after a timeout and duplicate results; removal
// under the lock guarantees at most one resolution per id.
func (r *PendingRegistry) Complete(requestID string, result models.ActionResult) bool {
	r.mu.Lock()
	ch, ok := r.pending[requestID]
	if ok {
		delete(r.pending, requestID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	ch <- result
	return true
}

// Remove discards a pending entry without resolving it. Idempotent.
func (r *PendingRegistry) Remove(requestID string) {
	r.mu.Lock()
	delete(r.pending, requestID)
	r.mu.Unlock()
}

// Len returns the number of in-flight requests.
func (r *PendingRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}
