package session

// State is the lifecycle state of a room session.
//
// Transitions:
//
//	active       -> streaming     StartRun
//	active       -> backgrounded  Background (UI switched away)
//	streaming    -> active        run completed
//	streaming    -> backgrounded  Background (run cancelled)
//	streaming    -> disposed      unrecoverable error, or disposal
//	backgrounded -> active        Foreground (UI returned)
//	backgrounded -> suspended     inactivity timeout
//	backgrounded -> disposed      explicit removal, or LRU eviction
//	suspended    -> disposed      cleanup sweep, or manual removal
//
// disposed is terminal.
type State string

const (
	StateActive       State = "active"
	StateStreaming    State = "streaming"
	StateBackgrounded State = "backgrounded"
	StateSuspended    State = "suspended"
	StateDisposed     State = "disposed"
)
