package session

import (
	"log/slog"
	"sync"
	"time"

	ai "github.com/spetersoncode/strand"
	"github.com/spetersoncode/strand/tool"
	"github.com/spetersoncode/strand/transport"
)

// Default lifecycle policy values.
const (
	DefaultSweepInterval      = 5 * time.Minute
	DefaultRoomIdleTimeout    = 30 * time.Minute
	DefaultServerIdleTimeout  = time.Hour
	DefaultSuspendAfter       = 24 * time.Hour
	DefaultBackgroundedPerSrv = 5
)

// Config holds lifecycle policy for a Registry.
type Config struct {
	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration

	// RoomIdleTimeout backgrounds an active session with no activity.
	RoomIdleTimeout time.Duration

	// ServerIdleTimeout removes a server connection whose sessions have all
	// been idle, provided none is streaming.
	ServerIdleTimeout time.Duration

	// SuspendAfter suspends a backgrounded session with no activity.
	SuspendAfter time.Duration

	// BackgroundedPerServer caps backgrounded sessions per server; the
	// least-recently-used excess is disposed.
	BackgroundedPerServer int

	// Registry is the tool registry given to new threads. May be nil.
	Registry *tool.Registry

	// Clock is used for inactivity evaluation. A nil Clock means time.Now.
	Clock ai.Clock

	// Logger receives sweep activity. Defaults to slog.Default.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.RoomIdleTimeout <= 0 {
		c.RoomIdleTimeout = DefaultRoomIdleTimeout
	}
	if c.ServerIdleTimeout <= 0 {
		c.ServerIdleTimeout = DefaultServerIdleTimeout
	}
	if c.SuspendAfter <= 0 {
		c.SuspendAfter = DefaultSuspendAfter
	}
	if c.BackgroundedPerServer <= 0 {
		c.BackgroundedPerServer = DefaultBackgroundedPerSrv
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Registry is the process-wide session pool, keyed by server id.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	servers map[string]*ServerConnection

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRegistry creates a session registry and starts its background sweep.
// Call Close to stop the sweep and dispose every session.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		cfg:     cfg.withDefaults(),
		servers: make(map[string]*ServerConnection),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// AddServer registers a backend under serverID with its transport client.
// Adding an id that already exists returns the existing connection.
func (r *Registry) AddServer(serverID string, client *transport.Client) (*ServerConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sc, ok := r.servers[serverID]; ok {
		return sc, nil
	}
	sc, err := newServerConnection(serverID, client, r.cfg.Registry, r.cfg.BackgroundedPerServer, r.cfg.Clock)
	if err != nil {
		return nil, err
	}
	r.servers[serverID] = sc
	return sc, nil
}

// Server returns the connection for serverID.
func (r *Registry) Server(serverID string) (*ServerConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.servers[serverID]
	return sc, ok
}

// Session returns the session identified by (serverID, roomID), creating
// it when the server is known. The second return is false for unknown
// servers.
func (r *Registry) Session(serverID, roomID string) (*RoomSession, bool) {
	sc, ok := r.Server(serverID)
	if !ok {
		return nil, false
	}
	return sc.Session(roomID), true
}

// RemoveServer disposes all of a server's sessions and forgets it.
func (r *Registry) RemoveServer(serverID string) {
	r.mu.Lock()
	sc, ok := r.servers[serverID]
	delete(r.servers, serverID)
	r.mu.Unlock()
	if ok {
		sc.disposeAll()
	}
}

// Len returns the number of registered servers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.servers)
}

// Close stops the sweep and disposes every session. It is idempotent.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.done
		r.mu.Lock()
		servers := make([]*ServerConnection, 0, len(r.servers))
		for _, sc := range r.servers {
			servers = append(servers, sc)
		}
		r.servers = make(map[string]*ServerConnection)
		r.mu.Unlock()
		for _, sc := range servers {
			sc.disposeAll()
		}
	})
}

func (r *Registry) sweepLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep evaluates inactivity policy once. It runs on the sweep interval but
// is exported so hosts and tests can force an evaluation.
func (r *Registry) Sweep() {
	now := r.cfg.Clock.Now()

	r.mu.Lock()
	servers := make(map[string]*ServerConnection, len(r.servers))
	for id, sc := range r.servers {
		servers[id] = sc
	}
	r.mu.Unlock()

	for id, sc := range servers {
		for _, s := range sc.snapshot() {
			idle := now.Sub(s.LastActive())
			switch s.State() {
			case StateActive:
				if idle >= r.cfg.RoomIdleTimeout {
					r.cfg.Logger.Debug("session: backgrounding idle room",
						"server", id, "room", s.RoomID(), "idle", idle)
					sc.Background(s.RoomID())
				}
			case StateBackgrounded:
				if idle >= r.cfg.SuspendAfter {
					r.cfg.Logger.Debug("session: suspending room",
						"server", id, "room", s.RoomID(), "idle", idle)
					s.suspend()
				}
			case StateSuspended:
				r.cfg.Logger.Debug("session: disposing suspended room",
					"server", id, "room", s.RoomID())
				sc.Remove(s.RoomID())
			}
		}

		if now.Sub(sc.LastActive()) >= r.cfg.ServerIdleTimeout && !sc.hasLiveRuns() {
			r.cfg.Logger.Info("session: removing idle server", "server", id)
			r.RemoveServer(id)
		}
	}
}
