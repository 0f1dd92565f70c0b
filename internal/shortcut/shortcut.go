// Package shortcut parses human-readable key combos ("Ctrl+Shift+T") into
// structured descriptors and resolves the well-known browser shortcuts to
// high-level intents.
package shortcut

import (
	"fmt"
	"strings"
)

// Combo is a parsed key combination: the modifier set plus exactly one
// main key, lowercased.
type Combo struct {
	Ctrl  bool   `json:"ctrl"`
	Alt   bool   `json:"alt"`
	Shift bool   `json:"shift"`
	Meta  bool   `json:"meta"`
	Key   string `json:"key"`
}

// Browser-level intents produced when a combo matches the well-known table.
// These map to dedicated consumer operations instead of raw key simulation.
const (
	CmdTabNew         = "TAB_NEW"
	CmdTabClose       = "TAB_CLOSE"
	CmdTabReopen      = "TAB_REOPEN"
	CmdTabNext        = "TAB_NEXT"
	CmdTabPrev        = "TAB_PREV"
	CmdRefresh        = "REFRESH"
	CmdFullscreen     = "FULLSCREEN"
	CmdHistoryBack    = "HISTORY_BACK"
	CmdHistoryForward = "HISTORY_FORWARD"
)

var wellKnown = map[string]string{
	"ctrl+t":         CmdTabNew,
	"ctrl+w":         CmdTabClose,
	"ctrl+shift+t":   CmdTabReopen,
	"ctrl+tab":       CmdTabNext,
	"ctrl+shift+tab": CmdTabPrev,
	"ctrl+r":         CmdRefresh,
	"f5":             CmdRefresh,
	"f11":            CmdFullscreen,
	"alt+left":       CmdHistoryBack,
	"alt+right":      CmdHistoryForward,
}

var keyAliases = map[string]string{
	"esc":    "escape",
	"return": "enter",
	"del":    "delete",
	"spc":    "space",
}

// Parse decodes a case-insensitive "+"-joined combo string. Exactly one
// non-modifier token must be present; none or several is a validation
// error, never a silent guess.
func Parse(s string) (Combo, error) {
	var c Combo
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return c, fmt.Errorf("shortcut: empty combo")
	}

	for _, tok := range strings.Split(trimmed, "+") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			return Combo{}, fmt.Errorf("shortcut %q: empty token (write \"plus\" for the + key)", s)
		}
		switch tok {
		case "ctrl", "control":
			c.Ctrl = true
		case "alt", "opt", "option":
			c.Alt = true
		case "shift":
			c.Shift = true
		case "meta", "cmd", "command", "super", "win":
			c.Meta = true
		default:
			if alias, ok := keyAliases[tok]; ok {
				tok = alias
			}
			if c.Key != "" {
				return Combo{}, fmt.Errorf("shortcut %q: multiple main keys (%q and %q)", s, c.Key, tok)
			}
			c.Key = tok
		}
	}

	if c.Key == "" {
		return Combo{}, fmt.Errorf("shortcut %q: no main key", s)
	}
	return c, nil
}

// Normalize renders a combo in canonical order, the form the well-known
// table is keyed by.
func (c Combo) Normalize() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Meta {
		parts = append(parts, "meta")
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}

// Resolve returns the well-known browser intent for a combo, or "" when the
// combo should be forwarded as a raw key injection.
func Resolve(c Combo) string {
	return wellKnown[c.Normalize()]
}
