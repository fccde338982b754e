// Package transport owns the HTTP/SSE connection to one agent backend.
//
// A Client performs authenticated GET/POST requests and opens AG-UI run
// streams. Two recovery policies live here:
//
//   - Authentication expiry: a 401 triggers a credential refresh, collapsed
//     across concurrent requests through a single-flight group, and the
//     original request is retried exactly once. A second 401 on the retry
//     is terminal for that request.
//
//   - Stream retry: a run stream that fails before delivering any event is
//     retried after the initial attempt, up to three retries with linear
//     backoff (500ms times the retry number). Once at least one event has
//     been delivered the stream is never retried; mid-stream resumption
//     would duplicate or lose partially delivered content.
//
// An idle watchdog aborts a stream when no event arrives within the
// configured timeout (default two minutes). The watchdog fault is surfaced
// without retry.
package transport
