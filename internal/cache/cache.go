// Package cache is the bridge's local shadow of pipeline configuration and
// telemetry. Reads are synchronous against the last-known snapshot. Writes
// are either authoritative replaces (CONFIG_SNAPSHOT) or optimistic edits:
// callers verify connectivity and send first, then mutate, so no rollback
// path exists here.
package cache

import (
	"database/sql"
	"encoding/json"
	"sort"
	"sync"

	"github.com/lotas/gestured/internal/applog"
	"github.com/lotas/gestured/internal/storage"
	"github.com/lotas/gestured/internal/types"
)

// Persisted key names. The kv store is the only place these strings live.
const (
	KeyLastGesture     = "lastGesture"
	KeyPipelineStatus  = "pipelineStatus"
	KeyFPS             = "fps"
	KeyGesturesEnabled = "gesturesEnabled"
	KeyRecordingEvent  = "recordingEvent"
	KeyRecordingActive = "recordingActive"
	KeyBindings        = "cfgBindings"
	KeyActions         = "cfgActions"
	KeyGestures        = "cfgGestures"
	KeyCustom          = "cfgCustom"
	KeySettings        = "cfgSettings"
	KeyMappings        = "customMappings"
	KeyHTTPStatus      = "pipelineHttpStatus"
)

// Cache owns the persisted local state. All methods are safe for concurrent
// use; persistence is write-through and best-effort (failures are logged,
// the in-memory state stays the source for readers).
type Cache struct {
	mu sync.Mutex
	db *sql.DB

	lastGesture     *types.LastGesture
	pipelineStatus  string
	fps             float64
	gesturesEnabled bool
	recordingEvent  json.RawMessage
	recordingActive bool
	bindings        map[string]string
	actions         map[string]json.RawMessage
	gestures        map[string]json.RawMessage
	custom          map[string]types.CustomGesture
	settings        map[string]json.RawMessage
	mappings        map[string]types.ExtensionMapping
	httpStatus      *types.WatchdogStatus

	onChange func(keys []string)
}

// Open loads the persisted state from db into a ready Cache. A fresh store
// starts with gestures enabled and empty config shadows.
func Open(db *sql.DB) (*Cache, error) {
	c := &Cache{
		db:              db,
		gesturesEnabled: true,
		bindings:        map[string]string{},
		actions:         map[string]json.RawMessage{},
		gestures:        map[string]json.RawMessage{},
		custom:          map[string]types.CustomGesture{},
		settings:        map[string]json.RawMessage{},
		mappings:        map[string]types.ExtensionMapping{},
	}

	all, err := storage.LoadAll(db)
	if err != nil {
		return nil, err
	}
	for key, raw := range all {
		c.restore(key, raw)
	}
	return c, nil
}

func (c *Cache) restore(key string, raw json.RawMessage) {
	var err error
	switch key {
	case KeyLastGesture:
		var g types.LastGesture
		if err = json.Unmarshal(raw, &g); err == nil {
			c.lastGesture = &g
		}
	case KeyPipelineStatus:
		err = json.Unmarshal(raw, &c.pipelineStatus)
	case KeyFPS:
		err = json.Unmarshal(raw, &c.fps)
	case KeyGesturesEnabled:
		err = json.Unmarshal(raw, &c.gesturesEnabled)
	case KeyRecordingEvent:
		c.recordingEvent = append(json.RawMessage(nil), raw...)
	case KeyRecordingActive:
		err = json.Unmarshal(raw, &c.recordingActive)
	case KeyBindings:
		err = json.Unmarshal(raw, &c.bindings)
	case KeyActions:
		err = json.Unmarshal(raw, &c.actions)
	case KeyGestures:
		err = json.Unmarshal(raw, &c.gestures)
	case KeyCustom:
		err = json.Unmarshal(raw, &c.custom)
	case KeySettings:
		err = json.Unmarshal(raw, &c.settings)
	case KeyMappings:
		err = json.Unmarshal(raw, &c.mappings)
	case KeyHTTPStatus:
		var s types.WatchdogStatus
		if err = json.Unmarshal(raw, &s); err == nil {
			c.httpStatus = &s
		}
	default:
		// Stale keys from older versions are left alone.
		return
	}
	if err != nil {
		applog.Error("cache.restore", err, "key", key)
	}
}

// SetOnChange installs the change hook. The hook runs outside the cache
// lock, once per mutation, with every persisted key that mutation wrote.
func (c *Cache) SetOnChange(fn func(keys []string)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// persist writes keys through to the store and fires the change hook.
// Callers must not hold the lock.
func (c *Cache) persist(values map[string]any) {
	if err := storage.SetValues(c.db, values); err != nil {
		applog.Error("cache.persist", err, "keys", len(values))
	}
	c.mu.Lock()
	hook := c.onChange
	c.mu.Unlock()
	if hook != nil {
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		hook(keys)
	}
}

// SetLastGesture records the most recent ACTION for consumer display.
func (c *Cache) SetLastGesture(g types.LastGesture) {
	c.mu.Lock()
	c.lastGesture = &g
	c.mu.Unlock()
	c.persist(map[string]any{KeyLastGesture: g})
}

// LastGesture returns a copy of the last recorded gesture, or nil.
func (c *Cache) LastGesture() *types.LastGesture {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastGesture == nil {
		return nil
	}
	g := *c.lastGesture
	return &g
}

// SetTelemetry updates the pipeline status and fps from a STATUS message.
func (c *Cache) SetTelemetry(status string, fps float64) {
	c.mu.Lock()
	c.pipelineStatus = status
	c.fps = fps
	c.mu.Unlock()
	c.persist(map[string]any{KeyPipelineStatus: status, KeyFPS: fps})
}

// Telemetry returns the last pipeline status and fps.
func (c *Cache) Telemetry() (string, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipelineStatus, c.fps
}

// SetGesturesEnabled flips the global side-effect gate. The gate never
// blocks cache updates, only command dispatch.
func (c *Cache) SetGesturesEnabled(enabled bool) {
	c.mu.Lock()
	c.gesturesEnabled = enabled
	c.mu.Unlock()
	c.persist(map[string]any{KeyGesturesEnabled: enabled})
}

// GesturesEnabled reports the global side-effect gate.
func (c *Cache) GesturesEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gesturesEnabled
}

// SetRecordingEvent stores the latest recording progress payload and the
// derived active flag.
func (c *Cache) SetRecordingEvent(raw json.RawMessage, active bool) {
	c.mu.Lock()
	c.recordingEvent = append(json.RawMessage(nil), raw...)
	c.recordingActive = active
	c.mu.Unlock()
	c.persist(map[string]any{
		KeyRecordingEvent:  json.RawMessage(raw),
		KeyRecordingActive: active,
	})
}

// RecordingEvent returns the last recording payload and the active flag.
func (c *Cache) RecordingEvent() (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(json.RawMessage(nil), c.recordingEvent...), c.recordingActive
}

// SetHTTPStatus stores the watchdog's latest /status answer.
func (c *Cache) SetHTTPStatus(s types.WatchdogStatus) {
	c.mu.Lock()
	c.httpStatus = &s
	c.mu.Unlock()
	c.persist(map[string]any{KeyHTTPStatus: s})
}

// HTTPStatus returns the watchdog's latest /status answer, or nil if the
// watchdog has never been reached.
func (c *Cache) HTTPStatus() *types.WatchdogStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpStatus == nil {
		return nil
	}
	s := *c.httpStatus
	return &s
}

// ApplyConfigSnapshot is the authoritative replace: the pipeline's snapshot
// overwrites every config shadow, including optimistic local edits.
func (c *Cache) ApplyConfigSnapshot(cs types.ConfigSnapshot) {
	bindings := cs.Bindings
	if bindings == nil {
		bindings = map[string]string{}
	}
	actions := cs.Actions
	if actions == nil {
		actions = map[string]json.RawMessage{}
	}
	gestures := cs.Gestures
	if gestures == nil {
		gestures = map[string]json.RawMessage{}
	}
	custom := cs.CustomGestures
	if custom == nil {
		custom = map[string]types.CustomGesture{}
	}
	settings := cs.Settings
	if settings == nil {
		settings = map[string]json.RawMessage{}
	}

	c.mu.Lock()
	c.bindings = bindings
	c.actions = actions
	c.gestures = gestures
	c.custom = custom
	c.settings = settings
	c.mu.Unlock()

	c.persist(map[string]any{
		KeyBindings: bindings,
		KeyActions:  actions,
		KeyGestures: gestures,
		KeyCustom:   custom,
		KeySettings: settings,
	})
}

// Bindings returns a copy of the gesture→action shadow.
func (c *Cache) Bindings() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.bindings))
	for k, v := range c.bindings {
		out[k] = v
	}
	return out
}

// CustomGestures returns a copy of the custom-gesture shadow.
func (c *Cache) CustomGestures() map[string]types.CustomGesture {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]types.CustomGesture, len(c.custom))
	for k, v := range c.custom {
		out[k] = v
	}
	return out
}

// Config returns a copy of the full config shadow.
func (c *Cache) Config() types.ConfigSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs := types.ConfigSnapshot{
		Settings:       make(map[string]json.RawMessage, len(c.settings)),
		Actions:        make(map[string]json.RawMessage, len(c.actions)),
		Gestures:       make(map[string]json.RawMessage, len(c.gestures)),
		Bindings:       make(map[string]string, len(c.bindings)),
		CustomGestures: make(map[string]types.CustomGesture, len(c.custom)),
	}
	for k, v := range c.settings {
		cs.Settings[k] = v
	}
	for k, v := range c.actions {
		cs.Actions[k] = v
	}
	for k, v := range c.gestures {
		cs.Gestures[k] = v
	}
	for k, v := range c.bindings {
		cs.Bindings[k] = v
	}
	for k, v := range c.custom {
		cs.CustomGestures[k] = v
	}
	return cs
}

// SetSetting is the optimistic edit paired with an UPDATE_SETTING send.
func (c *Cache) SetSetting(key string, value json.RawMessage) {
	c.mu.Lock()
	c.settings[key] = append(json.RawMessage(nil), value...)
	settings := make(map[string]json.RawMessage, len(c.settings))
	for k, v := range c.settings {
		settings[k] = v
	}
	c.mu.Unlock()
	c.persist(map[string]any{KeySettings: settings})
}

// SetBinding is the optimistic edit paired with an UPDATE_BINDING send.
func (c *Cache) SetBinding(gestureID, actionID string) {
	c.mu.Lock()
	c.bindings[gestureID] = actionID
	bindings := copyBindings(c.bindings)
	c.mu.Unlock()
	c.persist(map[string]any{KeyBindings: bindings})
}

// ResetBindings restores the built-in defaults locally. Bindings outside
// the default table (custom gestures) are left untouched, matching the
// pipeline's reset behavior.
func (c *Cache) ResetBindings() {
	defaults := types.DefaultBindings()
	c.mu.Lock()
	for g, a := range defaults {
		c.bindings[g] = a
	}
	bindings := copyBindings(c.bindings)
	c.mu.Unlock()
	c.persist(map[string]any{KeyBindings: bindings})
}

// SaveCustomGesture stores an imported or re-uploaded custom gesture. A new
// gesture also gains an unbound binding entry, matching what the pipeline
// does on its side of the save.
func (c *Cache) SaveCustomGesture(gestureID string, g types.CustomGesture) {
	c.mu.Lock()
	c.custom[gestureID] = g
	custom := make(map[string]types.CustomGesture, len(c.custom))
	for k, v := range c.custom {
		custom[k] = v
	}
	values := map[string]any{KeyCustom: custom}
	if _, bound := c.bindings[gestureID]; !bound {
		c.bindings[gestureID] = types.ActionNone
		values[KeyBindings] = copyBindings(c.bindings)
	}
	c.mu.Unlock()
	c.persist(values)
}

// DeleteCustomGesture removes the gesture and its binding as one mutation,
// so no reader ever sees a binding pointing at a gone gesture.
func (c *Cache) DeleteCustomGesture(gestureID string) {
	c.mu.Lock()
	delete(c.custom, gestureID)
	delete(c.bindings, gestureID)
	bindings := copyBindings(c.bindings)
	custom := make(map[string]types.CustomGesture, len(c.custom))
	for k, v := range c.custom {
		custom[k] = v
	}
	c.mu.Unlock()
	c.persist(map[string]any{KeyBindings: bindings, KeyCustom: custom})
}

// Mapping looks up the extension mapping for a gesture.
func (c *Cache) Mapping(gestureID string) (types.ExtensionMapping, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.mappings[gestureID]
	return m, ok
}

// Mappings returns a copy of all extension mappings, keyed by gesture id.
func (c *Cache) Mappings() map[string]types.ExtensionMapping {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]types.ExtensionMapping, len(c.mappings))
	for k, v := range c.mappings {
		out[k] = v
	}
	return out
}

// SaveMapping stores an extension mapping, last write wins.
func (c *Cache) SaveMapping(gestureID string, m types.ExtensionMapping) {
	c.mu.Lock()
	c.mappings[gestureID] = m
	mappings := c.copyMappingsLocked()
	c.mu.Unlock()
	c.persist(map[string]any{KeyMappings: mappings})
}

// DeleteMapping removes a mapping; reports whether it existed.
func (c *Cache) DeleteMapping(gestureID string) bool {
	c.mu.Lock()
	_, existed := c.mappings[gestureID]
	delete(c.mappings, gestureID)
	mappings := c.copyMappingsLocked()
	c.mu.Unlock()
	if existed {
		c.persist(map[string]any{KeyMappings: mappings})
	}
	return existed
}

// SetMappingTitle attaches a resolved page title to a URL mapping. A no-op
// if the mapping was deleted or rewritten while the title fetch ran.
func (c *Cache) SetMappingTitle(gestureID, target, title string) {
	c.mu.Lock()
	m, ok := c.mappings[gestureID]
	if !ok || m.Kind != types.MappingURL || m.Target != target {
		c.mu.Unlock()
		return
	}
	m.Title = title
	c.mappings[gestureID] = m
	mappings := c.copyMappingsLocked()
	c.mu.Unlock()
	c.persist(map[string]any{KeyMappings: mappings})
}

func (c *Cache) copyMappingsLocked() map[string]types.ExtensionMapping {
	out := make(map[string]types.ExtensionMapping, len(c.mappings))
	for k, v := range c.mappings {
		out[k] = v
	}
	return out
}

func copyBindings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
