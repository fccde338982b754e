package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	ai "github.com/spetersoncode/strand"
	"github.com/spetersoncode/strand/event"
	"github.com/spetersoncode/strand/sse"
)

// RunRequest is the body of an AG-UI run request.
type RunRequest struct {
	Message string         `json:"message"`
	State   map[string]any `json:"state,omitempty"`
}

// StreamEvent is one item of a run stream. Exactly one of Event or Err is
// meaningful; an item with a non-nil Err is the stream's final item.
type StreamEvent struct {
	Event event.Event
	Err   error
}

// ErrStreamIdle is the watchdog fault: no event arrived within the idle
// timeout.
type ErrStreamIdle struct {
	Timeout time.Duration
}

// Error returns a formatted error message including the timeout.
func (e *ErrStreamIdle) Error() string {
	return fmt.Sprintf("transport: no event received for %s", e.Timeout)
}

// RunAgent starts an AG-UI run and streams its events.
//
// The request is POST /api/v1/rooms/{roomId}/agui/{threadId}/{runId} with
// Accept: text/event-stream. Events are delivered on the returned channel
// in stream order; a terminal transport error is delivered as the final
// item with Err set, and the channel is closed when the stream ends for any
// reason. Cancelling ctx aborts the underlying request.
//
// A connection attempt that fails before any event has been delivered is
// retried: the initial attempt is followed by up to StreamRetries retries
// with linear backoff. A failure after the first event is surfaced
// immediately: the caller cannot safely distinguish a resumed stream from a
// restarted one. An idle watchdog fault is a timeout, not a connection
// failure, and is surfaced without retry.
func (c *Client) RunAgent(ctx context.Context, roomID, threadID, runID string, req RunRequest) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go c.runStream(ctx, roomID, threadID, runID, req, out)
	return out
}

func (c *Client) runStream(ctx context.Context, roomID, threadID, runID string, req RunRequest, out chan<- StreamEvent) {
	defer close(out)

	path := fmt.Sprintf("/api/v1/rooms/%s/agui/%s/%s", roomID, threadID, runID)
	body, err := json.Marshal(req)
	if err != nil {
		out <- StreamEvent{Err: ai.NewPermanentError("transport: encode run request", 0, err)}
		return
	}

	// The initial attempt plus up to c.retries retries, waiting
	// backoff*n before retry n.
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				out <- StreamEvent{Err: ctx.Err()}
				return
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		delivered, err := c.consumeStream(ctx, path, body, out)
		if err == nil {
			return
		}
		var idle *ErrStreamIdle
		if delivered > 0 || ctx.Err() != nil || !ai.IsTransient(err) || errors.As(err, &idle) {
			out <- StreamEvent{Err: err}
			return
		}
		lastErr = err
	}
	out <- StreamEvent{Err: lastErr}
}

// consumeStream opens the SSE stream once and forwards its events,
// returning how many events were delivered before the stream ended.
// A nil error means the stream closed cleanly (or ctx was cancelled after
// delivery started).
func (c *Client) consumeStream(ctx context.Context, path string, body []byte, out chan<- StreamEvent) (delivered int, err error) {
	// The watchdog aborts a silent stream by cancelling the request context.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resp, err := c.doAuthenticated(streamCtx, http.MethodPost, path, body, map[string]string{
		"Accept": "text/event-stream",
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var idle *time.Timer
	timedOut := make(chan struct{})
	if c.idleTimeout > 0 {
		idle = time.AfterFunc(c.idleTimeout, func() {
			close(timedOut)
			cancel()
		})
		defer idle.Stop()
	}

	dec := sse.NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			return delivered, nil
		}
		if err != nil {
			select {
			case <-timedOut:
				return delivered, ai.NewTransientError("transport: stream idle", 0, &ErrStreamIdle{Timeout: c.idleTimeout})
			default:
			}
			if ctx.Err() != nil {
				// Caller cancellation ends delivery without a transport fault.
				return delivered, ctx.Err()
			}
			return delivered, ai.NewTransientError("transport: stream read", 0, err)
		}
		if idle != nil {
			idle.Reset(c.idleTimeout)
		}

		select {
		case out <- StreamEvent{Event: ev}:
			delivered++
		case <-ctx.Done():
			return delivered, ctx.Err()
		}
	}
}
