package dispatch

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/lotas/gestured/internal/types"
	"github.com/lotas/gestured/internal/wire"
)

func TestFromExecution(t *testing.T) {
	params := json.RawMessage(`{"direction":"down","amount":120}`)
	cmd, ok := FromExecution(&wire.Execution{
		Success:  true,
		ActionID: "scroll_down",
		Command:  CmdScroll,
		Params:   params,
	})
	if !ok {
		t.Fatal("execution with a command yielded no dispatch")
	}
	if cmd.Name != CmdScroll || cmd.ActionID != "scroll_down" {
		t.Errorf("cmd = %+v", cmd)
	}
	if string(cmd.Params) != string(params) {
		t.Errorf("params = %s, want verbatim passthrough", cmd.Params)
	}
	if cmd.ID == "" {
		t.Error("command id not assigned")
	}
}

func TestFromExecutionResultOnly(t *testing.T) {
	if _, ok := FromExecution(&wire.Execution{Success: true, ActionID: "tab_new"}); ok {
		t.Error("result-only execution produced a command")
	}
}

func TestResolveMappingURL(t *testing.T) {
	cmd, err := ResolveMapping("WAVE", types.ExtensionMapping{
		Kind:         types.MappingURL,
		Target:       "https://news.ycombinator.com",
		OpenInNewTab: true,
	})
	if err != nil {
		t.Fatalf("ResolveMapping: %v", err)
	}
	if cmd.Name != CmdNavigateURL || cmd.GestureID != "WAVE" {
		t.Errorf("cmd = %+v", cmd)
	}
	if cmd.ActionID != types.ActionDelegate {
		t.Errorf("action id = %q, want delegate sentinel", cmd.ActionID)
	}
	var p struct {
		URL    string `json:"url"`
		NewTab bool   `json:"new_tab"`
	}
	if err := json.Unmarshal(cmd.Params, &p); err != nil {
		t.Fatalf("params: %v", err)
	}
	if p.URL != "https://news.ycombinator.com" || !p.NewTab {
		t.Errorf("params = %+v", p)
	}
}

func TestResolveMappingShortcut(t *testing.T) {
	tests := []struct {
		target     string
		wantName   string
		wantParams string // substring of marshaled params, "" for none
	}{
		{"ctrl+t", "TAB_NEW", ""},
		{"Ctrl+Shift+T", "TAB_REOPEN", ""},
		{"alt+left", "HISTORY_BACK", ""},
		{"ctrl+shift+k", CmdKeyboardShortcut, `"key":"k"`},
		{"meta+enter", CmdKeyboardShortcut, `"meta":true`},
	}
	for _, tt := range tests {
		cmd, err := ResolveMapping("PEACE", types.ExtensionMapping{
			Kind:   types.MappingShortcut,
			Target: tt.target,
		})
		if err != nil {
			t.Errorf("ResolveMapping(%q): %v", tt.target, err)
			continue
		}
		if cmd.Name != tt.wantName {
			t.Errorf("ResolveMapping(%q) name = %q, want %q", tt.target, cmd.Name, tt.wantName)
		}
		if tt.wantParams == "" {
			if len(cmd.Params) != 0 {
				t.Errorf("ResolveMapping(%q) params = %s, want none", tt.target, cmd.Params)
			}
		} else if !strings.Contains(string(cmd.Params), tt.wantParams) {
			t.Errorf("ResolveMapping(%q) params = %s, want %q", tt.target, cmd.Params, tt.wantParams)
		}
	}
}

func TestResolveMappingErrors(t *testing.T) {
	tests := []struct {
		name string
		m    types.ExtensionMapping
	}{
		{"empty url", types.ExtensionMapping{Kind: types.MappingURL}},
		{"bad shortcut", types.ExtensionMapping{Kind: types.MappingShortcut, Target: "ctrl+a+b"}},
		{"unknown kind", types.ExtensionMapping{Kind: "macro", Target: "x"}},
	}
	for _, tt := range tests {
		if _, err := ResolveMapping("FIST", tt.m); err == nil {
			t.Errorf("%s: no error", tt.name)
		}
	}
}

func TestKnown(t *testing.T) {
	for _, name := range []string{CmdScroll, CmdNavigateURL, "TAB_NEW", "HISTORY_FORWARD"} {
		if !Known(name) {
			t.Errorf("Known(%q) = false", name)
		}
	}
	if Known("FORMAT_DISK") {
		t.Error(`Known("FORMAT_DISK") = true`)
	}
}
