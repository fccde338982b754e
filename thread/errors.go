package thread

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned by Run when the thread is already running.
// Re-entrant runs are not supported; the caller or session registry guards
// against them.
var ErrRunInProgress = errors.New("thread: run already in progress")

// RunFailedError reports an explicit RUN_ERROR event from the backend.
type RunFailedError struct {
	Message string
	Code    string
}

// Error returns a formatted error message including the backend's message.
func (e *RunFailedError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("thread: run failed (%s): %s", e.Code, e.Message)
	}
	return "thread: run failed: " + e.Message
}

// ProtocolError reports a protocol state fault: the event stream drove a
// buffer into an invalid transition, which indicates a genuine
// desynchronization between sender and receiver.
type ProtocolError struct {
	Err error
}

// Error returns a formatted error message including the underlying fault.
func (e *ProtocolError) Error() string {
	return "thread: protocol fault: " + e.Err.Error()
}

// Unwrap returns the underlying fault for use with errors.Is and errors.As.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}
