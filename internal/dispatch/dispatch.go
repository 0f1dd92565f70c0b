// Package dispatch resolves pipeline executions and locally-stored
// extension mappings into concrete browser commands for the consumer feed.
package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lotas/gestured/internal/applog"
	"github.com/lotas/gestured/internal/shortcut"
	"github.com/lotas/gestured/internal/types"
	"github.com/lotas/gestured/internal/wire"
)

// Command names page executors switch on. Scroll and screenshot commands
// arrive from the pipeline with their params intact; the navigation and
// keyboard commands are also produced locally from extension mappings.
const (
	CmdKeyboardShortcut    = "KEYBOARD_SHORTCUT"
	CmdScroll              = "SCROLL"
	CmdScrollStop          = "SCROLL_STOP"
	CmdPasteAndEnter       = "PASTE_AND_ENTER"
	CmdAreaScreenshotStart = "AREA_SCREENSHOT_START"
	CmdAreaScreenshotDrag  = "AREA_SCREENSHOT_DRAG"
	CmdAreaScreenshotStop  = "AREA_SCREENSHOT_STOP"
	CmdMinimizeWindow      = "MINIMIZE_WINDOW"
	CmdMaximizeWindow      = "MAXIMIZE_WINDOW"
	CmdNavigateURL         = "NAVIGATE_URL"
	CmdExtensionCustom     = "EXTENSION_CUSTOM"
)

var vocabulary = map[string]bool{
	CmdKeyboardShortcut:        true,
	CmdScroll:                  true,
	CmdScrollStop:              true,
	CmdPasteAndEnter:           true,
	CmdAreaScreenshotStart:     true,
	CmdAreaScreenshotDrag:      true,
	CmdAreaScreenshotStop:      true,
	CmdMinimizeWindow:          true,
	CmdMaximizeWindow:          true,
	CmdNavigateURL:             true,
	CmdExtensionCustom:         true,
	shortcut.CmdTabNew:         true,
	shortcut.CmdTabClose:       true,
	shortcut.CmdTabReopen:      true,
	shortcut.CmdTabNext:        true,
	shortcut.CmdTabPrev:        true,
	shortcut.CmdRefresh:        true,
	shortcut.CmdFullscreen:     true,
	shortcut.CmdHistoryBack:    true,
	shortcut.CmdHistoryForward: true,
}

// Known reports whether a command name is in the executor vocabulary.
func Known(name string) bool {
	return vocabulary[name]
}

// Command is one fully-resolved instruction for page executors, carried on
// the consumer feed. The id correlates command delivery across surfaces.
type Command struct {
	ID        string          `json:"id"`
	Name      string          `json:"command"`
	ActionID  string          `json:"action_id,omitempty"`
	GestureID string          `json:"gesture_id,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// FromExecution lifts an inbound EXECUTION into a feed command. Executions
// that only report a pipeline-side outcome carry no command and yield false.
// Params pass through verbatim; the executor owns their schema.
func FromExecution(msg *wire.Execution) (Command, bool) {
	if msg.Command == "" {
		return Command{}, false
	}
	if !Known(msg.Command) {
		applog.Info("dispatch.unfamiliar_command", "command", msg.Command, "action", msg.ActionID)
	}
	return Command{
		ID:       uuid.NewString(),
		Name:     msg.Command,
		ActionID: msg.ActionID,
		Params:   msg.Params,
	}, true
}

type navigateParams struct {
	URL    string `json:"url"`
	NewTab bool   `json:"new_tab,omitempty"`
}

// ResolveMapping turns a stored extension mapping into the command it
// stands for. Shortcut targets consult the well-known table first; only
// combos outside it become raw key injections.
func ResolveMapping(gestureID string, m types.ExtensionMapping) (Command, error) {
	switch m.Kind {
	case types.MappingURL:
		if m.Target == "" {
			return Command{}, fmt.Errorf("mapping for %s: empty url", gestureID)
		}
		params, err := json.Marshal(navigateParams{URL: m.Target, NewTab: m.OpenInNewTab})
		if err != nil {
			return Command{}, fmt.Errorf("mapping for %s: %w", gestureID, err)
		}
		return Command{
			ID:        uuid.NewString(),
			Name:      CmdNavigateURL,
			ActionID:  types.ActionDelegate,
			GestureID: gestureID,
			Params:    params,
		}, nil

	case types.MappingShortcut:
		combo, err := shortcut.Parse(m.Target)
		if err != nil {
			return Command{}, fmt.Errorf("mapping for %s: %w", gestureID, err)
		}
		cmd := Command{
			ID:        uuid.NewString(),
			ActionID:  types.ActionDelegate,
			GestureID: gestureID,
		}
		if intent := shortcut.Resolve(combo); intent != "" {
			cmd.Name = intent
			return cmd, nil
		}
		params, err := json.Marshal(combo)
		if err != nil {
			return Command{}, fmt.Errorf("mapping for %s: %w", gestureID, err)
		}
		cmd.Name = CmdKeyboardShortcut
		cmd.Params = params
		return cmd, nil

	default:
		return Command{}, fmt.Errorf("mapping for %s: unknown kind %q", gestureID, m.Kind)
	}
}
