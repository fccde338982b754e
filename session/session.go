// Package session manages the process-wide pool of agent connections: one
// ServerConnection per backend, each holding a bounded set of room sessions.
//
// A session's identity is the (serverID, roomID) pair. Sessions move
// through the lifecycle in [State]; a background sweep suspends and
// disposes inactive sessions, and an LRU cap bounds how many backgrounded
// sessions a server keeps alive. The registry is the sole authority for
// disposing sessions and their threads.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ai "github.com/spetersoncode/strand"
	"github.com/spetersoncode/strand/thread"
)

// ErrDisposed is returned by operations on a disposed session.
var ErrDisposed = errors.New("session: disposed")

// ErrNotRunnable is returned by StartRun when the session is not in the
// active state.
type ErrNotRunnable struct {
	State State
}

// Error returns a formatted error message including the offending state.
func (e *ErrNotRunnable) Error() string {
	return fmt.Sprintf("session: cannot start run in state %s", e.State)
}

// RoomSession binds one room's thread to its lifecycle state.
type RoomSession struct {
	serverID string
	roomID   string

	mu         sync.Mutex
	thread     *thread.Thread
	state      State
	lastActive time.Time
	cancelRun  context.CancelFunc

	clock ai.Clock
}

// ServerID returns the owning server's id.
func (s *RoomSession) ServerID() string { return s.serverID }

// RoomID returns the room id.
func (s *RoomSession) RoomID() string { return s.roomID }

// Thread returns the session's conversation thread, or nil once disposed.
func (s *RoomSession) Thread() *thread.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread
}

// State returns the session's lifecycle state.
func (s *RoomSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive returns when the session last saw activity.
func (s *RoomSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// touchLocked records activity. Callers hold s.mu.
func (s *RoomSession) touchLocked() {
	s.lastActive = s.clock.Now()
}

// StartRun runs the thread through one request, holding the session in the
// streaming state for the duration. Only an active session can start a run;
// re-entrant runs are rejected by state.
//
// A completed run (success or an explicit backend run error) returns the
// session to active. An unrecoverable transport or protocol fault disposes
// the session. A run cancelled by Background leaves the session
// backgrounded.
func (s *RoomSession) StartRun(ctx context.Context, input thread.RunInput) error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	if s.state != StateActive {
		st := s.state
		s.mu.Unlock()
		return &ErrNotRunnable{State: st}
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.state = StateStreaming
	s.touchLocked()
	th := s.thread
	s.mu.Unlock()

	err := th.Run(runCtx, input)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRun = nil
	if s.state != StateStreaming {
		// Background or Dispose already moved the session on.
		return err
	}
	s.touchLocked()

	var runFailed *thread.RunFailedError
	switch {
	case err == nil, errors.As(err, &runFailed):
		s.state = StateActive
	case errors.Is(err, context.Canceled):
		s.state = StateActive
	default:
		// Unrecoverable transport or protocol fault.
		s.disposeLocked()
	}
	return err
}

// background moves the session out of the foreground, cancelling any
// in-flight run. Returns false if the session is disposed.
func (s *RoomSession) background() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return false
	}
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.state = StateBackgrounded
	s.touchLocked()
	return true
}

// foreground returns a backgrounded or suspended session to active.
// Returns false if the session is disposed.
func (s *RoomSession) foreground() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return false
	}
	s.state = StateActive
	s.touchLocked()
	return true
}

// suspend moves a backgrounded session to suspended.
func (s *RoomSession) suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateBackgrounded {
		s.state = StateSuspended
	}
}

// dispose cancels any in-flight run and releases the thread and its
// buffers. Disposal is terminal and idempotent.
func (s *RoomSession) dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposeLocked()
}

func (s *RoomSession) disposeLocked() {
	if s.state == StateDisposed {
		return
	}
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	if s.thread != nil {
		s.thread.Reset()
		s.thread = nil
	}
	s.state = StateDisposed
}
