package buffer

import "fmt"

// ErrMessageActive is returned when Start is called while a message is
// already accumulating.
type ErrMessageActive struct {
	ActiveID string
	NewID    string
}

// Error returns a formatted error message including both message ids.
func (e *ErrMessageActive) Error() string {
	return fmt.Sprintf("buffer: message %s already active; complete or reset before starting %s", e.ActiveID, e.NewID)
}

// ErrNoActiveMessage is returned when Append or Complete is called with no
// message accumulating.
type ErrNoActiveMessage struct {
	Op string
}

// Error returns a formatted error message including the violating operation.
func (e *ErrNoActiveMessage) Error() string {
	return fmt.Sprintf("buffer: no active message; call Start before %s", e.Op)
}

// ErrToolCallActive is returned when a tool call id is started twice.
type ErrToolCallActive struct {
	ID string
}

// Error returns a formatted error message including the duplicate call id.
func (e *ErrToolCallActive) Error() string {
	return fmt.Sprintf("buffer: tool call %s already active", e.ID)
}

// ErrUnknownToolCall is returned when an operation references a tool call id
// that was never started or has been removed.
type ErrUnknownToolCall struct {
	ID string
	Op string
}

// Error returns a formatted error message including the unknown call id.
func (e *ErrUnknownToolCall) Error() string {
	return fmt.Sprintf("buffer: unknown tool call %s in %s", e.ID, e.Op)
}
