package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// RunRequest mirrors the strand run request body.
type RunRequest struct {
	Message string         `json:"message"`
	State   map[string]any `json:"state,omitempty"`
}

// RunHandler serves POST /api/v1/rooms/{roomId}/agui/{threadId}/{runId},
// streaming a scripted AG-UI run over SSE.
type RunHandler struct {
	config *Config
}

// NewRunHandler creates a handler with the given configuration.
func NewRunHandler(cfg *Config) *RunHandler {
	return &RunHandler{config: cfg}
}

// ServeHTTP streams one scripted run.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.config.Token != "" {
		if r.Header.Get("Authorization") != "Bearer "+h.config.Token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	roomID := r.PathValue("roomId")
	threadID := r.PathValue("threadId")
	runID := r.PathValue("runId")

	var input RunRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	log := slog.With("room_id", roomID, "thread_id", threadID, "run_id", runID)
	log.Info("run started", "message", input.Message)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	s := &streamer{w: w, flusher: flusher, delay: h.config.ChunkDelay, ctx: r.Context()}
	script(s, threadID, runID, input)

	log.Info("run completed", "duration_ms", time.Since(start).Milliseconds())
}

// streamer writes SSE records with a per-chunk delay to simulate token
// streaming.
type streamer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	delay   time.Duration
	ctx     interface{ Done() <-chan struct{} }
	failed  bool
}

// event writes one AG-UI SDK event as an SSE record.
func (s *streamer) event(ev aguievents.Event) {
	if s.failed {
		return
	}
	data, err := ev.ToJSON()
	if err != nil {
		slog.Error("failed to serialize event", "error", err, "event_type", ev.Type())
		s.failed = true
		return
	}
	s.raw(string(data))
}

// raw writes an SSE record from a pre-encoded JSON payload. Used for event
// types the SDK does not construct, such as state snapshots.
func (s *streamer) raw(payload string) {
	if s.failed {
		return
	}
	select {
	case <-s.ctx.Done():
		s.failed = true
		return
	case <-time.After(s.delay):
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		s.failed = true
		return
	}
	s.flusher.Flush()
}

// rawf writes a formatted SSE record.
func (s *streamer) rawf(format string, args ...any) {
	s.raw(fmt.Sprintf(format, args...))
}

// corsMiddleware adds CORS headers for cross-origin frontend requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// healthHandler returns a simple health check response.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// jsonEscape encodes a string for embedding in a raw SSE payload.
func jsonEscape(s string) string {
	b, _ := json.Marshal(s)
	return strings.Trim(string(b), `"`)
}
