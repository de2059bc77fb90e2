package entity

import (
	"errors"
	"fmt"
)

// Error taxonomy of the orchestration engine. Callers match with errors.Is.
var (
	// ErrResourceExhausted means no session became free within the caller's
	// timeout. Retryable by the caller.
	ErrResourceExhausted = errors.New("no browser session available")

	// ErrProvisionFailed means a new browser could not be started even after
	// the bounded retries.
	ErrProvisionFailed = errors.New("browser session provisioning failed")

	// ErrSlotBusy means the slot already has a non-terminal run.
	ErrSlotBusy = errors.New("slot already has an active run")

	// ErrNotFound means no run with the given id is known.
	ErrNotFound = errors.New("run not found")

	// ErrAwaitTimeout means the run did not reach a terminal phase within
	// the wait timeout.
	ErrAwaitTimeout = errors.New("run did not finish in time")

	// ErrShuttingDown means the manager refuses new work because shutdown
	// has begun.
	ErrShuttingDown = errors.New("manager is shutting down")
)

// SessionLostError marks an action error as session-fatal: the browser
// process crashed or became unresponsive and the session must not be reused.
type SessionLostError struct {
	Err error
}

func (e *SessionLostError) Error() string {
	return fmt.Sprintf("browser session lost: %v", e.Err)
}

func (e *SessionLostError) Unwrap() error { return e.Err }

// IsSessionLost reports whether err is classified as session-fatal.
func IsSessionLost(err error) bool {
	var sl *SessionLostError
	return errors.As(err, &sl)
}
