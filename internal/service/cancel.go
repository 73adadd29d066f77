package service

import "sync"

// CancelToken is the cancellation flag of one task execution. It is
// cooperative: the executor polls Err at its suspension points.
type CancelToken struct {
	mu        sync.Mutex
	requested bool
}

// Cancel sets the flag.
func (t *CancelToken) Cancel() {
	t.mu.Lock()
	t.requested = true
	t.mu.Unlock()
}

// Err returns ErrTaskCancelled once cancellation was requested.
func (t *CancelToken) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.requested {
		return ErrTaskCancelled
	}
	return nil
}

// CancelRegistry maps task ids to their cancellation tokens. A request for
// a task that is not running yet is kept and observed when it starts.
type CancelRegistry struct {
	mu     sync.Mutex
	tokens map[string]*CancelToken
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{tokens: make(map[string]*CancelToken)}
}

// Request asks the executor of taskID to stop at its next suspension point.
func (r *CancelRegistry) Request(taskID string) {
	r.token(taskID).Cancel()
}

// Acquire returns the token for taskID, creating it if needed.
func (r *CancelRegistry) Acquire(taskID string) *CancelToken {
	return r.token(taskID)
}

// Requested reports whether a stop was requested for taskID.
func (r *CancelRegistry) Requested(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[taskID]
	return ok && t.Err() != nil
}

// Clear forgets taskID. Called when execution ends, whatever the outcome.
func (r *CancelRegistry) Clear(taskID string) {
	r.mu.Lock()
	delete(r.tokens, taskID)
	r.mu.Unlock()
}

func (r *CancelRegistry) token(taskID string) *CancelToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[taskID]
	if !ok {
		t = &CancelToken{}
		r.tokens[taskID] = t
	}
	return t
}
