// Package watchdog talks to the companion HTTP service that supervises the
// pipeline process. It is independent of the persistent message connection:
// the pipeline can be running while the socket is down, and vice versa.
package watchdog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lotas/gestured/internal/types"
)

// DefaultBaseURL is where the watchdog listens.
const DefaultBaseURL = "http://127.0.0.1:8766"

// ErrNotRunning marks a connection-level failure reaching the watchdog.
// Surfaced to users as "pipeline not running", which is a different
// situation than "running but unreachable over the socket".
var ErrNotRunning = errors.New("watchdog unreachable; pipeline not running")

// RequestError is a non-2xx answer from the watchdog.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("watchdog: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("watchdog: status %d", e.StatusCode)
}

// StartResult is the watchdog's answer to POST /start.
type StartResult struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"` // "started" or "already_running"
	PID    int    `json:"pid,omitempty"`
}

// StopResult is the watchdog's answer to POST /stop.
type StopResult struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"` // "stopped" or "not_running"
}

// Client calls the watchdog endpoints.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a client with a bounded transport.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Status asks whether the pipeline process is up.
func (c *Client) Status(ctx context.Context) (types.WatchdogStatus, error) {
	var st types.WatchdogStatus
	err := c.request(ctx, http.MethodGet, "/status", &st)
	return st, err
}

// Start launches the pipeline process (idempotent on the watchdog side).
func (c *Client) Start(ctx context.Context) (StartResult, error) {
	var res StartResult
	err := c.request(ctx, http.MethodPost, "/start", &res)
	return res, err
}

// Stop terminates the pipeline process.
func (c *Client) Stop(ctx context.Context) (StopResult, error) {
	var res StopResult
	err := c.request(ctx, http.MethodPost, "/stop", &res)
	return res, err
}

// Config fetches the full config snapshot the watchdog reads from disk.
// Used as the fallback config source while the socket is down.
func (c *Client) Config(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.request(ctx, http.MethodGet, "/config", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) request(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.Unmarshal(body, &e)
		msg := e.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &RequestError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
