package types

import (
	"encoding/json"
	"sync"
)

// ConnState is the lifecycle state of the pipeline connection.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Pipeline status values carried by STATUS messages.
const (
	PipelineRunning = "running"
	PipelineNoHands = "no_hands"
	PipelineError   = "error"
)

// Sentinel action ids understood by the binding layer.
const (
	// ActionNone marks a gesture as unbound.
	ActionNone = "none"
	// ActionDelegate tells the pipeline "the consumer resolves this
	// gesture locally via its extension mapping."
	ActionDelegate = "extension_custom"
)

// RecordingTargetSamples is how many calibration samples the pipeline
// captures per recording session.
const RecordingTargetSamples = 6

// Hand labels as reported by the pipeline.
const (
	HandLeft  = "Left"
	HandRight = "Right"
	HandBoth  = "Both"
)

// LastGesture is the most recent ACTION seen, kept for consumer display.
type LastGesture struct {
	GestureID string  `json:"gesture_id"`
	ActionID  string  `json:"action_id"`
	Hand      string  `json:"hand,omitempty"`
	Magnitude float64 `json:"magnitude,omitempty"`
	Timestamp float64 `json:"timestamp"`
}

// CustomGesture describes a user-recorded gesture as the pipeline reports it.
type CustomGesture struct {
	Label       string `json:"label"`
	Kind        string `json:"type"` // "static" or "dynamic"
	Hand        string `json:"hand,omitempty"`
	SampleCount int    `json:"samples,omitempty"`
	Enabled     bool   `json:"enabled,omitempty"`
}

// MappingKind distinguishes the two extension-mapping flavors.
type MappingKind string

const (
	MappingURL      MappingKind = "url"
	MappingShortcut MappingKind = "shortcut"
)

// ExtensionMapping is a consumer-side-only association of a gesture to a
// URL or keyboard shortcut, resolved locally instead of by the pipeline.
type ExtensionMapping struct {
	Kind         MappingKind `json:"kind"`
	Target       string      `json:"target"`
	OpenInNewTab bool        `json:"open_in_new_tab,omitempty"`
	Title        string      `json:"title,omitempty"` // resolved page title for url mappings
}

// WatchdogStatus is the watchdog's view of the pipeline process.
type WatchdogStatus struct {
	Running bool `json:"running"`
	PID     int  `json:"pid,omitempty"`
}

// ConfigSnapshot is the pipeline's full configuration as pushed on connect
// and on demand. Actions and gestures are opaque to the bridge; bindings
// and custom gestures are the shadow copies it actively maintains.
type ConfigSnapshot struct {
	Settings       map[string]json.RawMessage `json:"settings,omitempty"`
	Actions        map[string]json.RawMessage `json:"actions,omitempty"`
	Gestures       map[string]json.RawMessage `json:"gestures,omitempty"`
	Bindings       map[string]string          `json:"bindings,omitempty"`
	CustomGestures map[string]CustomGesture   `json:"custom_gestures,omitempty"`
}

// DefaultBindings returns the built-in gesture→action defaults restored by
// a bindings reset. Custom-gesture bindings are never part of this table.
func DefaultBindings() map[string]string {
	return map[string]string{
		"SWIPE_DOWN":       "window_minimize",
		"SWIPE_UP":         "window_maximize",
		"SWIPE_LEFT":       "tab_switch_left",
		"SWIPE_RIGHT":      "tab_switch_right",
		"INDEX_ONLY":       "tab_new",
		"FIST":             "tab_close",
		"THUMBS_UP":        "fullscreen_toggle",
		"TWO_FISTS":        ActionNone,
		"DOUBLE_THUMBS_UP": ActionNone,
		"HIGH_FIVE":        ActionNone,
		"PALM":             ActionNone,
		"PEACE":            ActionNone,
		"OK":               ActionNone,
		"POINTING_UP":      ActionNone,
		"POINTING_DOWN":    ActionNone,
		"WAVE":             ActionNone,
	}
}

// Stats counts bridge activity for a single process lifetime. Messages and
// commands are monotonic; errors reset on every successful connect.
type Stats struct {
	mu       sync.Mutex
	messages int64
	commands int64
	errors   int64
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	MessagesReceived int64 `json:"messages_received"`
	CommandsExecuted int64 `json:"commands_executed"`
	Errors           int64 `json:"errors"`
}

func (s *Stats) AddMessage() {
	s.mu.Lock()
	s.messages++
	s.mu.Unlock()
}

func (s *Stats) AddCommand() {
	s.mu.Lock()
	s.commands++
	s.mu.Unlock()
}

func (s *Stats) AddError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

func (s *Stats) ResetErrors() {
	s.mu.Lock()
	s.errors = 0
	s.mu.Unlock()
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		MessagesReceived: s.messages,
		CommandsExecuted: s.commands,
		Errors:           s.errors,
	}
}
