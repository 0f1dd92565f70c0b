package shortcut

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Combo
		ok    bool
	}{
		{"Ctrl+Shift+T", Combo{Ctrl: true, Shift: true, Key: "t"}, true},
		{"ctrl+w", Combo{Ctrl: true, Key: "w"}, true},
		{"CMD+Shift+R", Combo{Meta: true, Shift: true, Key: "r"}, true},
		{"alt+Left", Combo{Alt: true, Key: "left"}, true},
		{"F11", Combo{Key: "f11"}, true},
		{"option+Esc", Combo{Alt: true, Key: "escape"}, true},
		{" ctrl + n ", Combo{Ctrl: true, Key: "n"}, true},
		{"ctrl+a+b", Combo{}, false},   // two main keys
		{"ctrl+shift", Combo{}, false}, // modifiers only
		{"", Combo{}, false},
		{"ctrl++t", Combo{}, false},
	}
	for _, tt := range tests {
		got, err := Parse(tt.input)
		if tt.ok != (err == nil) {
			t.Errorf("Parse(%q) err = %v; want ok=%v", tt.input, err, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v; want %+v", tt.input, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ctrl+t", CmdTabNew},
		{"Ctrl+Shift+T", CmdTabReopen},
		{"ctrl+w", CmdTabClose},
		{"CTRL+TAB", CmdTabNext},
		{"ctrl+shift+tab", CmdTabPrev},
		{"F5", CmdRefresh},
		{"alt+right", CmdHistoryForward},
		{"ctrl+shift+i", ""}, // devtools is not ours; raw injection
		{"x", ""},
	}
	for _, tt := range tests {
		c, err := Parse(tt.input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.input, err)
		}
		if got := Resolve(c); got != tt.want {
			t.Errorf("Resolve(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}
}

func TestNormalizeOrdering(t *testing.T) {
	// Token order in the input must not matter for table lookups.
	a, err := Parse("shift+ctrl+t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse("ctrl+shift+t")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.Normalize() != b.Normalize() {
		t.Errorf("Normalize mismatch: %q vs %q", a.Normalize(), b.Normalize())
	}
	if Resolve(a) != CmdTabReopen {
		t.Errorf("Resolve(shift+ctrl+t) = %q; want %q", Resolve(a), CmdTabReopen)
	}
}
