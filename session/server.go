package session

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	ai "github.com/spetersoncode/strand"
	"github.com/spetersoncode/strand/thread"
	"github.com/spetersoncode/strand/tool"
	"github.com/spetersoncode/strand/transport"
)

// ServerConnection holds one backend's transport client and its pool of
// room sessions.
type ServerConnection struct {
	serverID string
	client   *transport.Client
	registry *tool.Registry
	clock    ai.Clock

	mu           sync.Mutex
	sessions     map[string]*RoomSession
	backgrounded *lru.Cache[string, *RoomSession]
	lastActive   time.Time
}

func newServerConnection(serverID string, client *transport.Client, registry *tool.Registry, cap int, clock ai.Clock) (*ServerConnection, error) {
	sc := &ServerConnection{
		serverID: serverID,
		client:   client,
		registry: registry,
		clock:    clock,
		sessions: make(map[string]*RoomSession),
	}
	// Evicting the least-recently-used backgrounded session disposes it.
	// The callback also fires on manual Remove, so it checks that the
	// session is still backgrounded before disposing.
	cache, err := lru.NewWithEvict(cap, func(roomID string, s *RoomSession) {
		if s.State() == StateBackgrounded {
			s.dispose()
			sc.forget(roomID)
		}
	})
	if err != nil {
		return nil, err
	}
	sc.backgrounded = cache
	sc.lastActive = clock.Now()
	return sc, nil
}

// ID returns the server id.
func (sc *ServerConnection) ID() string { return sc.serverID }

// Client returns the server's transport client.
func (sc *ServerConnection) Client() *transport.Client { return sc.client }

// LastActive returns when any of the server's sessions last saw activity.
func (sc *ServerConnection) LastActive() time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lastActive
}

// Session returns the room's session, creating an active one if absent.
func (sc *ServerConnection) Session(roomID string) *RoomSession {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lastActive = sc.clock.Now()

	if s, ok := sc.sessions[roomID]; ok && s.State() != StateDisposed {
		return s
	}
	s := &RoomSession{
		serverID: sc.serverID,
		roomID:   roomID,
		thread:   thread.New(ai.GenerateThreadID(), roomID, sc.client, sc.registry),
		state:    StateActive,
		clock:    sc.clock,
	}
	s.lastActive = sc.clock.Now()
	sc.sessions[roomID] = s
	return s
}

// Get returns the room's session without creating one.
func (sc *ServerConnection) Get(roomID string) (*RoomSession, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	s, ok := sc.sessions[roomID]
	return s, ok
}

// Background moves the room's session out of the foreground and into the
// backgrounded LRU, evicting the least-recently-used excess session.
func (sc *ServerConnection) Background(roomID string) {
	sc.mu.Lock()
	s, ok := sc.sessions[roomID]
	sc.lastActive = sc.clock.Now()
	sc.mu.Unlock()
	if !ok || !s.background() {
		return
	}
	sc.backgrounded.Add(roomID, s)
}

// Foreground returns the room's backgrounded session to active.
func (sc *ServerConnection) Foreground(roomID string) (*RoomSession, bool) {
	sc.mu.Lock()
	s, ok := sc.sessions[roomID]
	sc.lastActive = sc.clock.Now()
	sc.mu.Unlock()
	if !ok || !s.foreground() {
		return nil, false
	}
	// State is active again, so the evict callback will not dispose it.
	sc.backgrounded.Remove(roomID)
	return s, true
}

// Remove disposes the room's session and forgets it.
func (sc *ServerConnection) Remove(roomID string) {
	sc.mu.Lock()
	s, ok := sc.sessions[roomID]
	sc.mu.Unlock()
	if !ok {
		return
	}
	s.dispose()
	sc.backgrounded.Remove(roomID)
	sc.forget(roomID)
}

// Len returns the number of live sessions.
func (sc *ServerConnection) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.sessions)
}

// hasLiveRuns reports whether any session is currently streaming.
func (sc *ServerConnection) hasLiveRuns() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for _, s := range sc.sessions {
		if s.State() == StateStreaming {
			return true
		}
	}
	return false
}

// snapshot returns the current sessions for sweep evaluation.
func (sc *ServerConnection) snapshot() []*RoomSession {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	out := make([]*RoomSession, 0, len(sc.sessions))
	for _, s := range sc.sessions {
		out = append(out, s)
	}
	return out
}

// forget drops a disposed session from the map.
func (sc *ServerConnection) forget(roomID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if s, ok := sc.sessions[roomID]; ok && s.State() == StateDisposed {
		delete(sc.sessions, roomID)
	}
}

// disposeAll disposes every session, for server removal.
func (sc *ServerConnection) disposeAll() {
	for _, s := range sc.snapshot() {
		s.dispose()
	}
	sc.backgrounded.Purge()
	sc.mu.Lock()
	sc.sessions = make(map[string]*RoomSession)
	sc.mu.Unlock()
}
