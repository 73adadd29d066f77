package service

import "errors"

var (
	// ErrTaskCancelled is returned by a cancellation token once a stop was
	// requested for its task. It is control flow, never a task failure.
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrTaskVanished indicates the task row disappeared while the task was
	// running, so progress could not be persisted.
	ErrTaskVanished = errors.New("task vanished during execution")

	// ErrTaskAlreadyRunning is returned when a second executor tries to run
	// a task id that already has an active executor.
	ErrTaskAlreadyRunning = errors.New("task already running")

	// ErrGroupsNotFound is the soft resolution error for "no such groups".
	ErrGroupsNotFound = errors.New("groups not found")

	// ErrBadGroupRequest is the soft resolution error for a malformed
	// group selection, e.g. SELECTED scope with no ids.
	ErrBadGroupRequest = errors.New("bad group request")
)

// isSoftResolutionError reports whether a resolver error degrades to an
// empty group list instead of failing the run.
func isSoftResolutionError(err error) bool {
	return errors.Is(err, ErrGroupsNotFound) || errors.Is(err, ErrBadGroupRequest)
}
