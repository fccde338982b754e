package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	ai "github.com/spetersoncode/strand"
	"github.com/spetersoncode/strand/internal/retry"
)

// Doer abstracts the underlying HTTP client so platform implementations and
// tests can be injected.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RefreshFunc exchanges expired credentials for a fresh header set.
// It is invoked at most once per concurrent burst of 401 responses.
type RefreshFunc func(ctx context.Context) (map[string]string, error)

// Default policy values.
const (
	DefaultStreamRetries = 3
	DefaultRetryBackoff  = 500 * time.Millisecond
	DefaultIdleTimeout   = 2 * time.Minute
)

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the backend's base URL, without a trailing slash.
	BaseURL string

	// HTTPClient is the underlying HTTP client. Defaults to http.DefaultClient.
	HTTPClient Doer

	// Headers are the initial request headers (authorization and friends).
	Headers map[string]string

	// Refresh exchanges expired credentials for new headers on a 401.
	// When nil, a 401 is terminal immediately.
	Refresh RefreshFunc

	// StreamRetries is the number of retries, after the initial attempt,
	// for a run stream connection that has not yet delivered an event.
	// Defaults to DefaultStreamRetries.
	StreamRetries int

	// RetryBackoff is the linear backoff unit between stream attempts:
	// the wait before attempt n+1 is RetryBackoff * n.
	// Defaults to DefaultRetryBackoff.
	RetryBackoff time.Duration

	// IdleTimeout aborts a run stream when no event arrives within it.
	// Defaults to DefaultIdleTimeout; negative disables the watchdog.
	IdleTimeout time.Duration
}

// Client is an authenticated HTTP/SSE client for one agent backend.
// Header state is the only cross-request shared mutable state; all mutation
// of it goes through the single-flight refresh path.
type Client struct {
	baseURL string
	http    Doer
	refresh RefreshFunc

	retries     int
	backoff     time.Duration
	idleTimeout time.Duration

	mu      sync.RWMutex
	headers map[string]string
	sf      singleflight.Group
}

// New creates a Client from cfg, applying defaults for unset fields.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	retries := cfg.StreamRetries
	if retries <= 0 {
		retries = DefaultStreamRetries
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	idle := cfg.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		http:        httpClient,
		refresh:     cfg.Refresh,
		retries:     retries,
		backoff:     backoff,
		idleTimeout: idle,
		headers:     headers,
	}
}

// Headers returns a copy of the current request headers.
func (c *Client) Headers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}

// Get performs an authenticated GET and decodes the JSON response into out.
// GET is idempotent, so transient failures are retried with backoff.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	_, err := retry.Do(ctx, retry.DefaultConfig(), func() (struct{}, error) {
		return struct{}{}, c.doJSON(ctx, http.MethodGet, path, nil, out)
	})
	return err
}

// Post performs an authenticated POST with a JSON body and decodes the JSON
// response into out. A nil out discards the response body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return ai.NewPermanentError("transport: encode request", 0, err)
		}
	}

	resp, err := c.doAuthenticated(ctx, method, path, payload, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ai.NewTransientError("transport: read response", resp.StatusCode, err)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return ai.NewPermanentError("transport: decode response", resp.StatusCode, err)
	}
	return nil
}

// doAuthenticated sends one request with the current headers, driving the
// 401 refresh-and-retry-once protocol. extraHeaders are applied after the
// shared header set.
func (c *Client) doAuthenticated(ctx context.Context, method, path string, body []byte, extraHeaders map[string]string) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, body, extraHeaders)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return checkStatus(resp)
	}

	// Authentication expired. Refresh once (single-flight across
	// concurrent requests) and retry exactly once.
	drain(resp)
	if c.refresh == nil {
		return nil, ai.NewAuthError("transport: unauthorized", http.StatusUnauthorized, nil)
	}
	if err := c.refreshCredentials(ctx); err != nil {
		return nil, err
	}

	resp, err = c.send(ctx, method, path, body, extraHeaders)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		return nil, ai.NewAuthError("transport: unauthorized after refresh", http.StatusUnauthorized, nil)
	}
	return checkStatus(resp)
}

// refreshCredentials runs the refresh callback, deduplicated so that a
// concurrent burst of 401s triggers exactly one refresh. Every waiter
// observes the refreshed headers.
func (c *Client) refreshCredentials(ctx context.Context) error {
	_, err, _ := c.sf.Do("refresh", func() (any, error) {
		headers, err := c.refresh(ctx)
		if err != nil {
			return nil, ai.NewAuthError("transport: credential refresh failed", 0, err)
		}
		c.mu.Lock()
		c.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			c.headers[k] = v
		}
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// send issues a single HTTP request with the current header set.
func (c *Client) send(ctx context.Context, method, path string, body []byte, extraHeaders map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, ai.NewPermanentError("transport: build request", 0, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	c.mu.RUnlock()
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ai.NewTransientError(fmt.Sprintf("transport: %s %s", method, path), 0, err)
	}
	return resp, nil
}

// checkStatus maps non-2xx responses to categorized errors.
func checkStatus(resp *http.Response) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	msg := fmt.Sprintf("transport: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, ai.NewTransientError(msg, resp.StatusCode, nil)
	}
	return nil, ai.NewPermanentError(msg, resp.StatusCode, nil)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
