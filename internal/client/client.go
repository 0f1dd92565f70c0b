// Package client is the CLI side of the bridge daemon's HTTP API. Every
// subcommand except "run" goes through here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/lotas/gestured/internal/recording"
	"github.com/lotas/gestured/internal/storage"
	"github.com/lotas/gestured/internal/types"
)

// DefaultBaseURL matches the daemon's default listen address.
const DefaultBaseURL = "http://127.0.0.1:8977"

// ErrDaemonDown wraps transport-level failures. For a localhost API that
// means one thing: the daemon is not running.
var ErrDaemonDown = errors.New("bridge daemon is not running")

// RequestError is a non-2xx reply from the daemon.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// Client talks to a running bridge daemon.
type Client struct {
	baseURL string
	client  *http.Client
}

// New builds a client for the given base URL ("" uses the default).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Status mirrors the daemon's /v1/status reply.
type Status struct {
	OK              bool                  `json:"ok"`
	Connection      string                `json:"connection"`
	UserStopped     bool                  `json:"user_stopped"`
	PipelineURL     string                `json:"pipeline_url"`
	GesturesEnabled bool                  `json:"gestures_enabled"`
	PipelineStatus  string                `json:"pipeline_status"`
	FPS             float64               `json:"fps"`
	LastGesture     *types.LastGesture    `json:"last_gesture"`
	Watchdog        *types.WatchdogStatus `json:"watchdog"`
	Recording       recording.Snapshot    `json:"recording"`
	Stats           types.StatsSnapshot   `json:"stats"`
	Subscribers     int                   `json:"subscribers"`
}

// PipelineResult is the daemon's answer to a pipeline start/stop.
type PipelineResult struct {
	Status string `json:"status"`
	PID    int    `json:"pid"`
}

// Event is one frame from the daemon's event feed.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) Health(ctx context.Context) error {
	return c.request(ctx, http.MethodGet, "/v1/health", nil, nil)
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.request(ctx, http.MethodGet, "/v1/status", nil, &st)
	return st, err
}

func (c *Client) SetGesturesEnabled(ctx context.Context, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.request(ctx, http.MethodPost, "/v1/gestures/enabled", body, nil)
}

func (c *Client) Reconnect(ctx context.Context) error {
	return c.request(ctx, http.MethodPost, "/v1/connection/reconnect", nil, nil)
}

func (c *Client) StartPipeline(ctx context.Context) (PipelineResult, error) {
	var res PipelineResult
	err := c.request(ctx, http.MethodPost, "/v1/pipeline/start", nil, &res)
	return res, err
}

func (c *Client) StopPipeline(ctx context.Context) (PipelineResult, error) {
	var res PipelineResult
	err := c.request(ctx, http.MethodPost, "/v1/pipeline/stop", nil, &res)
	return res, err
}

func (c *Client) Bindings(ctx context.Context) (map[string]string, error) {
	var env struct {
		Bindings map[string]string `json:"bindings"`
	}
	if err := c.request(ctx, http.MethodGet, "/v1/bindings", nil, &env); err != nil {
		return nil, err
	}
	return env.Bindings, nil
}

func (c *Client) UpdateBinding(ctx context.Context, gestureID, actionID string) error {
	body := map[string]string{"gesture_id": gestureID, "action_id": actionID}
	return c.request(ctx, http.MethodPost, "/v1/bindings", body, nil)
}

func (c *Client) ResetBindings(ctx context.Context) (map[string]string, error) {
	var env struct {
		Bindings map[string]string `json:"bindings"`
	}
	if err := c.request(ctx, http.MethodPost, "/v1/bindings/reset", nil, &env); err != nil {
		return nil, err
	}
	return env.Bindings, nil
}

func (c *Client) SaveCustomGesture(ctx context.Context, gestureID string, data json.RawMessage) (types.CustomGesture, error) {
	body := map[string]any{"data": data}
	var env struct {
		Gesture types.CustomGesture `json:"gesture"`
	}
	err := c.request(ctx, http.MethodPut, "/v1/gestures/custom/"+gestureID, body, &env)
	return env.Gesture, err
}

func (c *Client) DeleteCustomGesture(ctx context.Context, gestureID string) error {
	return c.request(ctx, http.MethodDelete, "/v1/gestures/custom/"+gestureID, nil, nil)
}

func (c *Client) Mappings(ctx context.Context) (map[string]types.ExtensionMapping, error) {
	var env struct {
		Mappings map[string]types.ExtensionMapping `json:"mappings"`
	}
	if err := c.request(ctx, http.MethodGet, "/v1/mappings", nil, &env); err != nil {
		return nil, err
	}
	return env.Mappings, nil
}

func (c *Client) SaveMapping(ctx context.Context, gestureID, kind, target string, newTab bool) (types.ExtensionMapping, error) {
	body := map[string]any{"kind": kind, "target": target, "open_in_new_tab": newTab}
	var env struct {
		Mapping types.ExtensionMapping `json:"mapping"`
	}
	err := c.request(ctx, http.MethodPut, "/v1/mappings/"+gestureID, body, &env)
	return env.Mapping, err
}

func (c *Client) DeleteMapping(ctx context.Context, gestureID string) (bool, error) {
	var env struct {
		Deleted bool `json:"deleted"`
	}
	err := c.request(ctx, http.MethodDelete, "/v1/mappings/"+gestureID, nil, &env)
	return env.Deleted, err
}

func (c *Client) StartRecording(ctx context.Context, gestureID, label, kind, hand string) (recording.Snapshot, error) {
	body := map[string]string{"gesture_id": gestureID, "label": label, "type": kind, "hand": hand}
	var env struct {
		Recording recording.Snapshot `json:"recording"`
	}
	err := c.request(ctx, http.MethodPost, "/v1/recording/start", body, &env)
	return env.Recording, err
}

func (c *Client) CancelRecording(ctx context.Context) (recording.Snapshot, error) {
	var env struct {
		Recording recording.Snapshot `json:"recording"`
	}
	err := c.request(ctx, http.MethodPost, "/v1/recording/cancel", nil, &env)
	return env.Recording, err
}

func (c *Client) UpdateSetting(ctx context.Context, key string, value json.RawMessage) error {
	body := map[string]any{"key": key, "value": value}
	return c.request(ctx, http.MethodPost, "/v1/settings", body, nil)
}

func (c *Client) Config(ctx context.Context) (types.ConfigSnapshot, error) {
	var env struct {
		Config types.ConfigSnapshot `json:"config"`
	}
	err := c.request(ctx, http.MethodGet, "/v1/config", nil, &env)
	return env.Config, err
}

func (c *Client) Archives(ctx context.Context, limit int) ([]storage.ArchiveEntry, error) {
	path := "/v1/archive"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var env struct {
		Archives []storage.ArchiveEntry `json:"archives"`
	}
	err := c.request(ctx, http.MethodGet, path, nil, &env)
	return env.Archives, err
}

func (c *Client) Archive(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.request(ctx, http.MethodGet, "/v1/archive/"+id, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// EventStream is a live subscription to the daemon's event feed.
type EventStream struct {
	conn *websocket.Conn
}

// Events subscribes to the feed. The first frames are primers carrying the
// full current state.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/v1/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonDown, err)
	}
	conn.SetReadLimit(8 << 20)
	return &EventStream{conn: conn}, nil
}

// Next blocks until the next frame arrives.
func (s *EventStream) Next(ctx context.Context) (Event, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event frame: %w", err)
	}
	return ev, nil
}

func (s *EventStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		rd = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonDown, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode >= 400 {
		var er struct {
			Error string `json:"error"`
		}
		json.Unmarshal(payload, &er)
		msg := er.Error
		if msg == "" {
			msg = strings.TrimSpace(string(payload))
		}
		return &RequestError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}
