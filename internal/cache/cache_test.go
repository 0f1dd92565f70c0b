package cache

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"

	"github.com/lotas/gestured/internal/storage"
	"github.com/lotas/gestured/internal/types"
)

func testCache(t *testing.T) (*Cache, *sql.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c, err := Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c, db
}

func TestOpenDefaults(t *testing.T) {
	c, _ := testCache(t)

	if !c.GesturesEnabled() {
		t.Error("fresh cache should start with gestures enabled")
	}
	if c.LastGesture() != nil {
		t.Error("fresh cache has a last gesture")
	}
	if len(c.Bindings()) != 0 {
		t.Error("fresh cache has bindings")
	}
}

func TestRestoreAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}

	c, err := Open(db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c.SetGesturesEnabled(false)
	c.SetTelemetry(types.PipelineRunning, 28.4)
	c.SetLastGesture(types.LastGesture{GestureID: "FIST", ActionID: "tab_close", Timestamp: 100})
	c.SaveMapping("WAVE", types.ExtensionMapping{Kind: types.MappingURL, Target: "https://example.com"})
	db.Close()

	db, err = storage.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("reopen OpenDB: %v", err)
	}
	defer db.Close()
	c2, err := Open(db)
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}

	if c2.GesturesEnabled() {
		t.Error("gesturesEnabled=false did not survive reopen")
	}
	status, fps := c2.Telemetry()
	if status != types.PipelineRunning || fps != 28.4 {
		t.Errorf("telemetry = %q, %v", status, fps)
	}
	if g := c2.LastGesture(); g == nil || g.GestureID != "FIST" {
		t.Errorf("last gesture = %+v", g)
	}
	if m, ok := c2.Mapping("WAVE"); !ok || m.Target != "https://example.com" {
		t.Errorf("mapping = %+v, ok=%v", m, ok)
	}
}

func TestApplyConfigSnapshotOverwritesOptimisticEdits(t *testing.T) {
	c, _ := testCache(t)

	c.SetBinding("WAVE", "tab_close") // optimistic local edit

	c.ApplyConfigSnapshot(types.ConfigSnapshot{
		Bindings: map[string]string{"wave": "scroll_down"},
		Actions:  map[string]json.RawMessage{"scroll_down": json.RawMessage(`{}`)},
		Gestures: map[string]json.RawMessage{"wave": json.RawMessage(`{}`)},
	})

	got := c.Bindings()
	if len(got) != 1 || got["wave"] != "scroll_down" {
		t.Errorf("bindings after snapshot = %v, want map[wave:scroll_down]", got)
	}
}

func TestDeleteCustomGestureRemovesBoth(t *testing.T) {
	c, _ := testCache(t)

	c.ApplyConfigSnapshot(types.ConfigSnapshot{
		Bindings: map[string]string{
			"custom_1": "tab_close",
			"FIST":     "tab_close",
		},
		CustomGestures: map[string]types.CustomGesture{
			"custom_1": {Label: "Circle", Kind: "dynamic"},
		},
	})

	c.DeleteCustomGesture("custom_1")

	if _, ok := c.CustomGestures()["custom_1"]; ok {
		t.Error("custom gesture still present after delete")
	}
	bindings := c.Bindings()
	if _, ok := bindings["custom_1"]; ok {
		t.Error("binding still present after delete")
	}
	if bindings["FIST"] != "tab_close" {
		t.Error("unrelated binding was lost")
	}
}

func TestSaveCustomGestureBindsNewGesturesToNone(t *testing.T) {
	c, _ := testCache(t)

	c.SaveCustomGesture("custom_1", types.CustomGesture{Label: "Circle", Kind: "dynamic", SampleCount: 6, Enabled: true})

	if g, ok := c.CustomGestures()["custom_1"]; !ok || g.Label != "Circle" {
		t.Errorf("custom gesture = %+v, ok=%v", g, ok)
	}
	if got := c.Bindings()["custom_1"]; got != types.ActionNone {
		t.Errorf(`new gesture bound to %q, want %q`, got, types.ActionNone)
	}
}

func TestSaveCustomGestureKeepsExistingBinding(t *testing.T) {
	c, _ := testCache(t)

	c.ApplyConfigSnapshot(types.ConfigSnapshot{
		Bindings: map[string]string{"custom_1": "tab_close"},
		CustomGestures: map[string]types.CustomGesture{
			"custom_1": {Label: "Circle", Kind: "dynamic", SampleCount: 3},
		},
	})

	// Re-import with more samples; the user's binding must survive.
	c.SaveCustomGesture("custom_1", types.CustomGesture{Label: "Circle", Kind: "dynamic", SampleCount: 6})

	if got := c.Bindings()["custom_1"]; got != "tab_close" {
		t.Errorf("binding after re-save = %q, want tab_close", got)
	}
	if g := c.CustomGestures()["custom_1"]; g.SampleCount != 6 {
		t.Errorf("sample count after re-save = %d, want 6", g.SampleCount)
	}
}

func TestResetBindingsKeepsCustomBindings(t *testing.T) {
	c, _ := testCache(t)

	c.ApplyConfigSnapshot(types.ConfigSnapshot{
		Bindings: map[string]string{
			"FIST":     "window_minimize", // user override of a default
			"custom_1": "scroll_down",     // custom gesture binding
		},
	})

	c.ResetBindings()

	bindings := c.Bindings()
	if bindings["FIST"] != "tab_close" {
		t.Errorf("FIST = %q after reset, want tab_close", bindings["FIST"])
	}
	if bindings["custom_1"] != "scroll_down" {
		t.Errorf("custom_1 = %q after reset, want scroll_down", bindings["custom_1"])
	}
	if bindings["SWIPE_UP"] != "window_maximize" {
		t.Errorf("SWIPE_UP = %q after reset, want window_maximize", bindings["SWIPE_UP"])
	}
}

func TestSetMappingTitleIgnoresStaleFetches(t *testing.T) {
	c, _ := testCache(t)

	c.SaveMapping("WAVE", types.ExtensionMapping{Kind: types.MappingURL, Target: "https://old.example"})
	// Mapping is rewritten while the title fetch for the old target runs.
	c.SaveMapping("WAVE", types.ExtensionMapping{Kind: types.MappingURL, Target: "https://new.example"})

	c.SetMappingTitle("WAVE", "https://old.example", "Old Title")

	m, _ := c.Mapping("WAVE")
	if m.Title != "" {
		t.Errorf("stale title applied: %q", m.Title)
	}

	c.SetMappingTitle("WAVE", "https://new.example", "New Title")
	m, _ = c.Mapping("WAVE")
	if m.Title != "New Title" {
		t.Errorf("title = %q, want New Title", m.Title)
	}
}

func TestOnChangeReportsKeysPerMutation(t *testing.T) {
	c, _ := testCache(t)

	var calls [][]string
	c.SetOnChange(func(keys []string) { calls = append(calls, keys) })

	c.SetTelemetry(types.PipelineNoHands, 12)

	if len(calls) != 1 {
		t.Fatalf("hook fired %d times, want once per mutation", len(calls))
	}
	got := calls[0]
	sort.Strings(got)
	want := []string{KeyFPS, KeyPipelineStatus}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("changed keys = %v, want %v", got, want)
	}
}

func TestSetSettingUpdatesShadow(t *testing.T) {
	c, _ := testCache(t)

	c.SetSetting("camera_index", json.RawMessage(`1`))

	cfg := c.Config()
	if string(cfg.Settings["camera_index"]) != `1` {
		t.Errorf("settings shadow = %v", cfg.Settings)
	}
}
